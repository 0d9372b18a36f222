package jobstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on top of a jobs table so job state survives
// restarts and is inspectable with external tooling. The schema lives in the
// pg package migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by the given connection pool.
// The pool's lifecycle is owned by the caller.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("connection pool cannot be nil")
	}
	return &PostgresStore{pool: pool}, nil
}

// CreateJob implements Store. IDs come from a bigserial column, so they are
// strictly increasing per database.
func (ps *PostgresStore) CreateJob(ctx context.Context, jobType string, initial map[string]any) (int64, error) {
	if jobType == "" {
		return 0, ErrJobTypeRequired
	}
	if initial == nil {
		initial = map[string]any{}
	}

	var id int64
	err := ps.pool.QueryRow(ctx,
		`INSERT INTO jobs (type, status, context) VALUES ($1, 'created', $2) RETURNING id`,
		jobType, initial,
	).Scan(&id)
	if err != nil {
		return 0, errors.Join(ErrFailedToCreateJob, err)
	}

	return id, nil
}

// GetJob implements Store.
func (ps *PostgresStore) GetJob(ctx context.Context, id int64) (*Job, error) {
	var job Job
	err := ps.pool.QueryRow(ctx,
		`SELECT id, type, status, context, created_at, updated_at FROM jobs WHERE id = $1`,
		id,
	).Scan(&job.ID, &job.Type, &job.Status, &job.Context, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job %d: %w", id, err)
	}

	return &job, nil
}

// UpdateJob implements Store. The jsonb concatenation operator gives the same
// shallow key merge the memory backend performs; the whole statement is a
// single-row atomic update.
func (ps *PostgresStore) UpdateJob(ctx context.Context, id int64, update Update) error {
	if update.Empty() {
		return ErrEmptyUpdate
	}

	mergeCtx := update.Context
	if mergeCtx == nil {
		mergeCtx = map[string]any{}
	}

	tag, err := ps.pool.Exec(ctx,
		`UPDATE jobs
		 SET type = COALESCE($2, type),
		     status = COALESCE($3, status),
		     context = context || $4::jsonb,
		     updated_at = now()
		 WHERE id = $1`,
		id, update.Type, update.Status, mergeCtx,
	)
	if err != nil {
		return errors.Join(ErrFailedToUpdateJob, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}

	return nil
}

// ListJobs implements Store. Results are ordered by id ascending to match the
// memory backend.
func (ps *PostgresStore) ListJobs(ctx context.Context, filter Filter) ([]Job, error) {
	query := `SELECT id, type, status, context, created_at, updated_at FROM jobs
	          WHERE ($1 = '' OR type = $1) AND ($2 = '' OR status = $2)
	          ORDER BY id ASC`
	args := []any{filter.Type, filter.Status}

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, filter.Offset)
	}

	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Join(ErrFailedToListJobs, err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Type, &job.Status, &job.Context, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, errors.Join(ErrFailedToListJobs, err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrFailedToListJobs, err)
	}

	return jobs, nil
}
