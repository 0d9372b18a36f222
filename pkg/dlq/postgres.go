package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresQueue implements Queue on top of a dlq_items table so recorded
// failures survive restarts. The schema lives in the pg package migrations.
//
// Every status transition is a single conditional UPDATE, so concurrent
// operators can never produce a torn record or an illegal transition.
type PostgresQueue struct {
	pool        *pgxpool.Pool
	newestFirst bool
}

// PostgresQueueOption configures a PostgresQueue.
type PostgresQueueOption func(*PostgresQueue)

// WithNewestFirstPg makes GetPending and List return most-recent items first.
func WithNewestFirstPg() PostgresQueueOption {
	return func(pq *PostgresQueue) { pq.newestFirst = true }
}

// NewPostgresQueue creates a queue backed by the given connection pool.
// The pool's lifecycle is owned by the caller.
func NewPostgresQueue(pool *pgxpool.Pool, opts ...PostgresQueueOption) (*PostgresQueue, error) {
	if pool == nil {
		return nil, errors.New("connection pool cannot be nil")
	}
	pq := &PostgresQueue{pool: pool}
	for _, opt := range opts {
		opt(pq)
	}
	return pq, nil
}

// Enqueue implements Queue.
func (pq *PostgresQueue) Enqueue(ctx context.Context, component, operation, errorType, errorMessage string, payload json.RawMessage) (int64, error) {
	if component == "" {
		return 0, ErrComponentRequired
	}
	if operation == "" {
		return 0, ErrOperationRequired
	}
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}

	var id int64
	err := pq.pool.QueryRow(ctx,
		`INSERT INTO dlq_items (component, operation, error_type, error_message, context, status)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		component, operation, errorType, errorMessage, payload, StatusPending,
	).Scan(&id)
	if err != nil {
		return 0, errors.Join(ErrFailedToEnqueue, err)
	}

	return id, nil
}

// GetPending implements Queue.
func (pq *PostgresQueue) GetPending(ctx context.Context, component string, limit int) ([]Item, error) {
	items, _, err := pq.List(ctx, ListFilter{
		Component: component,
		Status:    StatusPending,
		Limit:     limit,
	})
	return items, err
}

// List implements Queue.
func (pq *PostgresQueue) List(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	var total int
	err := pq.pool.QueryRow(ctx,
		`SELECT count(*) FROM dlq_items
		 WHERE ($1 = '' OR component = $1) AND ($2 = '' OR status = $2)`,
		filter.Component, string(filter.Status),
	).Scan(&total)
	if err != nil {
		return nil, 0, errors.Join(ErrFailedToListItems, err)
	}

	order := "ASC"
	if pq.newestFirst {
		order = "DESC"
	}
	query := fmt.Sprintf(
		`SELECT id, component, operation, error_type, error_message, context,
		        created_at, retry_count, status, resolved_at, resolution_note
		 FROM dlq_items
		 WHERE ($1 = '' OR component = $1) AND ($2 = '' OR status = $2)
		 ORDER BY id %s LIMIT $3 OFFSET $4`, order)

	rows, err := pq.pool.Query(ctx, query,
		filter.Component, string(filter.Status), clampLimit(filter.Limit), max(filter.Offset, 0))
	if err != nil {
		return nil, 0, errors.Join(ErrFailedToListItems, err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, errors.Join(ErrFailedToListItems, err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Join(ErrFailedToListItems, err)
	}

	return items, total, nil
}

// GetByID implements Queue.
func (pq *PostgresQueue) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := pq.pool.QueryRow(ctx,
		`SELECT id, component, operation, error_type, error_message, context,
		        created_at, retry_count, status, resolved_at, resolution_note
		 FROM dlq_items WHERE id = $1`, id)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get dead letter item %d: %w", id, err)
	}

	return item, nil
}

// MarkRetrying implements Queue.
func (pq *PostgresQueue) MarkRetrying(ctx context.Context, id int64) error {
	tag, err := pq.pool.Exec(ctx,
		`UPDATE dlq_items SET status = $2, retry_count = retry_count + 1
		 WHERE id = $1 AND status IN ($3, $4)`,
		id, StatusRetrying, StatusPending, StatusFailed)
	if err != nil {
		return fmt.Errorf("failed to mark item %d retrying: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return pq.transitionFailure(ctx, id)
	}

	return nil
}

// Resolve implements Queue. The note overwrites any previous resolution note.
func (pq *PostgresQueue) Resolve(ctx context.Context, id int64, note string) error {
	tag, err := pq.pool.Exec(ctx,
		`UPDATE dlq_items SET status = $2, resolved_at = now(), resolution_note = $3
		 WHERE id = $1 AND status <> $2`,
		id, StatusResolved, notePtr(note))
	if err != nil {
		return fmt.Errorf("failed to resolve item %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return pq.transitionFailure(ctx, id)
	}

	return nil
}

// MarkFailed implements Queue.
func (pq *PostgresQueue) MarkFailed(ctx context.Context, id int64, note string) error {
	tag, err := pq.pool.Exec(ctx,
		`UPDATE dlq_items
		 SET status = $2, resolution_note = COALESCE($3, resolution_note)
		 WHERE id = $1 AND status <> $4`,
		id, StatusFailed, notePtr(note), StatusResolved)
	if err != nil {
		return fmt.Errorf("failed to mark item %d failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return pq.transitionFailure(ctx, id)
	}

	return nil
}

// Delete implements Queue.
func (pq *PostgresQueue) Delete(ctx context.Context, id int64) error {
	tag, err := pq.pool.Exec(ctx, `DELETE FROM dlq_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}

	return nil
}

// Stats implements Queue.
func (pq *PostgresQueue) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByStatus:    make(map[Status]int),
		ByComponent: make(map[string]int),
		ByErrorType: make(map[string]int),
	}

	rows, err := pq.pool.Query(ctx,
		`SELECT status, component, error_type, count(*)
		 FROM dlq_items GROUP BY status, component, error_type`)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadStats, err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, component, errorType string
		var count int
		if err := rows.Scan(&status, &component, &errorType, &count); err != nil {
			return nil, errors.Join(ErrFailedToLoadStats, err)
		}
		stats.Total += count
		stats.ByStatus[Status(status)] += count
		stats.ByComponent[component] += count
		if errorType != "" {
			stats.ByErrorType[errorType] += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrFailedToLoadStats, err)
	}

	return stats, nil
}

// transitionFailure distinguishes "item missing" from "life cycle forbids it"
// after a conditional update touched no rows.
func (pq *PostgresQueue) transitionFailure(ctx context.Context, id int64) error {
	var exists bool
	if err := pq.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM dlq_items WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check item %d: %w", id, err)
	}
	if !exists {
		return ErrItemNotFound
	}
	return ErrInvalidTransition
}

func scanItem(row pgx.Row) (*Item, error) {
	var item Item
	err := row.Scan(
		&item.ID, &item.Component, &item.Operation, &item.ErrorType, &item.ErrorMessage,
		&item.Context, &item.CreatedAt, &item.RetryCount, &item.Status,
		&item.ResolvedAt, &item.ResolutionNote,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
