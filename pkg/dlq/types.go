package dlq

import (
	"context"
	"encoding/json"
	"time"
)

// Status represents the triage state of a dead letter item.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRetrying Status = "retrying"
	StatusResolved Status = "resolved"
	StatusFailed   Status = "failed"
)

// Valid checks if the status is one of the known constants.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRetrying, StatusResolved, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status permits no further automatic transitions.
// FAILED items may still be moved back to RETRYING by an operator.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusFailed
}

// List pagination bounds. Limits outside the range are clamped rather than
// rejected so dashboard callers cannot accidentally pull the whole table.
const (
	MinListLimit     = 1
	MaxListLimit     = 1000
	DefaultListLimit = 50
)

// Item is one recorded failure. Context carries whatever structured payload
// the failing component needs to retry the operation.
type Item struct {
	ID             int64           `json:"id"`
	Component      string          `json:"component"`
	Operation      string          `json:"operation"`
	ErrorType      string          `json:"error_type"`
	ErrorMessage   string          `json:"error_message"`
	Context        json.RawMessage `json:"context,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	RetryCount     int             `json:"retry_count"`
	Status         Status          `json:"status"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
	ResolutionNote *string         `json:"resolution_note,omitempty"`
}

// ListFilter narrows and pages List results. Zero values match everything.
type ListFilter struct {
	Component string
	Status    Status
	Limit     int
	Offset    int
}

// Stats aggregates item counts. The per-status counts always sum to Total.
type Stats struct {
	Total       int            `json:"total"`
	ByStatus    map[Status]int `json:"by_status"`
	ByComponent map[string]int `json:"by_component"`
	ByErrorType map[string]int `json:"by_error_type"`
}

// Queue is the dead letter ledger contract shared by all backends.
type Queue interface {
	// Enqueue records a failure and returns the new item's id. New items
	// start in PENDING.
	Enqueue(ctx context.Context, component, operation, errorType, errorMessage string, payload json.RawMessage) (int64, error)

	// GetPending returns PENDING items, optionally filtered by component,
	// limited to limit items in the queue's configured order.
	GetPending(ctx context.Context, component string, limit int) ([]Item, error)

	// List returns items matching the filter plus the total match count
	// before pagination.
	List(ctx context.Context, filter ListFilter) ([]Item, int, error)

	// GetByID returns the item with the given id or ErrItemNotFound.
	GetByID(ctx context.Context, id int64) (*Item, error)

	// MarkRetrying moves a PENDING or FAILED item to RETRYING and increments
	// its retry count.
	MarkRetrying(ctx context.Context, id int64) error

	// Resolve moves any non-RESOLVED item to RESOLVED, stamps ResolvedAt and
	// overwrites the resolution note.
	Resolve(ctx context.Context, id int64, note string) error

	// MarkFailed moves any non-RESOLVED item to FAILED.
	MarkFailed(ctx context.Context, id int64, note string) error

	// Delete removes an item permanently. Administrative use only.
	Delete(ctx context.Context, id int64) error

	// Stats aggregates counts by status, component and error type.
	Stats(ctx context.Context) (*Stats, error)
}

func clampLimit(limit int) int {
	if limit < MinListLimit {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func notePtr(note string) *string {
	if note == "" {
		return nil
	}
	return &note
}
