package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Task is the payload handed to the primary work queue when a dead letter
// item is resubmitted. DLQItemID lets the consumer resolve the item after the
// re-run succeeds.
type Task struct {
	DLQItemID int64           `json:"dlq_item_id"`
	Component string          `json:"component"`
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Submitter feeds tasks into the primary work queue. The queue package never
// executes work itself; this is its only outbound capability.
type Submitter interface {
	Submit(ctx context.Context, task Task) error
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, task Task) error

func (f SubmitterFunc) Submit(ctx context.Context, task Task) error {
	return f(ctx, task)
}

// Resubmitter reads dead letter items and pushes their underlying operations
// back onto the primary work queue, marking each item RETRYING on the way out.
type Resubmitter struct {
	queue     Queue
	submitter Submitter
	logger    *slog.Logger
}

// ResubmitterOption configures a Resubmitter.
type ResubmitterOption func(*Resubmitter)

// WithResubmitLogger overrides the default slog logger.
func WithResubmitLogger(logger *slog.Logger) ResubmitterOption {
	return func(r *Resubmitter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResubmitter creates a Resubmitter over the given queue and submitter.
func NewResubmitter(queue Queue, submitter Submitter, opts ...ResubmitterOption) (*Resubmitter, error) {
	if queue == nil {
		return nil, ErrQueueNil
	}
	if submitter == nil {
		return nil, ErrSubmitterNil
	}

	r := &Resubmitter{
		queue:     queue,
		submitter: submitter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Resubmit marks the item RETRYING and submits its operation to the primary
// work queue tagged with the item id. The caller resolves the item once the
// re-run reports success; Resubmit itself never waits for the outcome.
func (r *Resubmitter) Resubmit(ctx context.Context, id int64) error {
	item, err := r.queue.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := r.queue.MarkRetrying(ctx, id); err != nil {
		return err
	}

	task := Task{
		DLQItemID: item.ID,
		Component: item.Component,
		Operation: item.Operation,
		Payload:   item.Context,
	}
	if err := r.submitter.Submit(ctx, task); err != nil {
		// Park the item back in FAILED so it stays visible for triage instead
		// of looking permanently in-flight.
		if failErr := r.queue.MarkFailed(ctx, id, "resubmission failed: "+err.Error()); failErr != nil {
			r.logger.ErrorContext(ctx, "failed to record resubmission failure",
				slog.Int64("item_id", id),
				slog.String("error", failErr.Error()))
		}
		return fmt.Errorf("failed to resubmit item %d: %w", id, err)
	}

	r.logger.InfoContext(ctx, "dead letter item resubmitted",
		slog.Int64("item_id", id),
		slog.String("component", item.Component),
		slog.String("operation", item.Operation),
		slog.Int("retry_count", item.RetryCount+1))

	return nil
}

// RedisSubmitter pushes JSON-encoded tasks onto a Redis list that the primary
// work queue consumes with BRPOP.
type RedisSubmitter struct {
	client *redis.Client
	list   string
}

// NewRedisSubmitter creates a submitter writing to the named list. The client's
// lifecycle is owned by the caller.
func NewRedisSubmitter(client *redis.Client, list string) (*RedisSubmitter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if list == "" {
		return nil, fmt.Errorf("list name cannot be empty")
	}
	return &RedisSubmitter{client: client, list: list}, nil
}

// Submit implements Submitter.
func (s *RedisSubmitter) Submit(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task for item %d: %w", task.DLQItemID, err)
	}

	if err := s.client.LPush(ctx, s.list, payload).Err(); err != nil {
		return fmt.Errorf("failed to push task for item %d to %q: %w", task.DLQItemID, s.list, err)
	}

	return nil
}
