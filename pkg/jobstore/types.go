package jobstore

import (
	"context"
	"time"
)

// Job is a durable record of one pipeline run. The store treats Status as an
// opaque string; the scheduling core owns its vocabulary.
type Job struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Status    string         `json:"status"`
	Context   map[string]any `json:"context,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Update describes a partial job mutation. Nil fields are left untouched.
// Context keys are merged into the existing context payload, never replacing
// keys that the update does not mention.
type Update struct {
	Type    *string
	Status  *string
	Context map[string]any
}

// Empty reports whether the update mentions no fields.
func (u Update) Empty() bool {
	return u.Type == nil && u.Status == nil && len(u.Context) == 0
}

// Filter narrows ListJobs results. Zero values match everything.
type Filter struct {
	Type   string
	Status string
	Limit  int
	Offset int
}

// Store is the job ledger contract shared by all backends.
type Store interface {
	// CreateJob persists a new job and returns its strictly increasing id.
	CreateJob(ctx context.Context, jobType string, initial map[string]any) (int64, error)

	// GetJob returns the job with the given id or ErrJobNotFound.
	GetJob(ctx context.Context, id int64) (*Job, error)

	// UpdateJob merges the given fields into an existing job record.
	UpdateJob(ctx context.Context, id int64, update Update) error

	// ListJobs returns jobs matching the filter ordered by id ascending.
	ListJobs(ctx context.Context, filter Filter) ([]Job, error)
}
