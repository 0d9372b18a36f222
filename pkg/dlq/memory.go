package dlq

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryQueue implements Queue with an in-process map. State does not survive
// a restart; intended for tests and ephemeral runs.
type MemoryQueue struct {
	mu          sync.RWMutex
	items       map[int64]*Item
	nextID      int64
	newestFirst bool
}

// MemoryQueueOption configures a MemoryQueue.
type MemoryQueueOption func(*MemoryQueue)

// WithNewestFirst makes GetPending and List return most-recent items first.
// The default is oldest-first so triage drains the backlog in arrival order.
func WithNewestFirst() MemoryQueueOption {
	return func(mq *MemoryQueue) { mq.newestFirst = true }
}

// NewMemoryQueue creates an empty in-memory dead letter queue.
func NewMemoryQueue(opts ...MemoryQueueOption) *MemoryQueue {
	mq := &MemoryQueue{
		items:  make(map[int64]*Item),
		nextID: 1,
	}
	for _, opt := range opts {
		opt(mq)
	}
	return mq
}

// Enqueue implements Queue.
func (mq *MemoryQueue) Enqueue(ctx context.Context, component, operation, errorType, errorMessage string, payload json.RawMessage) (int64, error) {
	if component == "" {
		return 0, ErrComponentRequired
	}
	if operation == "" {
		return 0, ErrOperationRequired
	}

	mq.mu.Lock()
	defer mq.mu.Unlock()

	item := &Item{
		ID:           mq.nextID,
		Component:    component,
		Operation:    operation,
		ErrorType:    errorType,
		ErrorMessage: errorMessage,
		Context:      append(json.RawMessage(nil), payload...),
		CreatedAt:    time.Now(),
		Status:       StatusPending,
	}

	mq.items[item.ID] = item
	mq.nextID++

	return item.ID, nil
}

// GetPending implements Queue.
func (mq *MemoryQueue) GetPending(ctx context.Context, component string, limit int) ([]Item, error) {
	items, _, err := mq.List(ctx, ListFilter{
		Component: component,
		Status:    StatusPending,
		Limit:     limit,
	})
	return items, err
}

// List implements Queue. The returned total counts all matches before
// pagination so a dashboard can render page controls.
func (mq *MemoryQueue) List(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	mq.mu.RLock()
	defer mq.mu.RUnlock()

	matched := make([]*Item, 0, len(mq.items))
	for _, item := range mq.items {
		if filter.Component != "" && item.Component != filter.Component {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		matched = append(matched, item)
	}

	sort.Slice(matched, func(i, j int) bool {
		if mq.newestFirst {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	limit := clampLimit(filter.Limit)
	if limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]Item, 0, len(matched))
	for _, item := range matched {
		out = append(out, *cloneItem(item))
	}

	return out, total, nil
}

// GetByID implements Queue.
func (mq *MemoryQueue) GetByID(ctx context.Context, id int64) (*Item, error) {
	mq.mu.RLock()
	defer mq.mu.RUnlock()

	item, ok := mq.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}

	return cloneItem(item), nil
}

// MarkRetrying implements Queue.
func (mq *MemoryQueue) MarkRetrying(ctx context.Context, id int64) error {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	item, ok := mq.items[id]
	if !ok {
		return ErrItemNotFound
	}

	if item.Status != StatusPending && item.Status != StatusFailed {
		return ErrInvalidTransition
	}

	item.Status = StatusRetrying
	item.RetryCount++

	return nil
}

// Resolve implements Queue. Repeated retry-then-resolve cycles overwrite the
// resolution note; only the latest note is kept.
func (mq *MemoryQueue) Resolve(ctx context.Context, id int64, note string) error {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	item, ok := mq.items[id]
	if !ok {
		return ErrItemNotFound
	}

	if item.Status == StatusResolved {
		return ErrInvalidTransition
	}

	now := time.Now()
	item.Status = StatusResolved
	item.ResolvedAt = &now
	item.ResolutionNote = notePtr(note)

	return nil
}

// MarkFailed implements Queue.
func (mq *MemoryQueue) MarkFailed(ctx context.Context, id int64, note string) error {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	item, ok := mq.items[id]
	if !ok {
		return ErrItemNotFound
	}

	if item.Status == StatusResolved {
		return ErrInvalidTransition
	}

	item.Status = StatusFailed
	if note != "" {
		item.ResolutionNote = notePtr(note)
	}

	return nil
}

// Delete implements Queue.
func (mq *MemoryQueue) Delete(ctx context.Context, id int64) error {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if _, ok := mq.items[id]; !ok {
		return ErrItemNotFound
	}
	delete(mq.items, id)

	return nil
}

// Stats implements Queue.
func (mq *MemoryQueue) Stats(ctx context.Context) (*Stats, error) {
	mq.mu.RLock()
	defer mq.mu.RUnlock()

	stats := &Stats{
		ByStatus:    make(map[Status]int),
		ByComponent: make(map[string]int),
		ByErrorType: make(map[string]int),
	}

	for _, item := range mq.items {
		stats.Total++
		stats.ByStatus[item.Status]++
		stats.ByComponent[item.Component]++
		if item.ErrorType != "" {
			stats.ByErrorType[item.ErrorType]++
		}
	}

	return stats, nil
}

func cloneItem(item *Item) *Item {
	itemCopy := *item
	itemCopy.Context = append(json.RawMessage(nil), item.Context...)
	if item.ResolvedAt != nil {
		at := *item.ResolvedAt
		itemCopy.ResolvedAt = &at
	}
	if item.ResolutionNote != nil {
		note := *item.ResolutionNote
		itemCopy.ResolutionNote = &note
	}
	return &itemCopy
}
