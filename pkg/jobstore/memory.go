package jobstore

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-process map. State does not survive
// a restart; intended for tests and ephemeral runs.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[int64]*Job
	nextID int64
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[int64]*Job),
		nextID: 1,
	}
}

// CreateJob implements Store.
func (ms *MemoryStore) CreateJob(ctx context.Context, jobType string, initial map[string]any) (int64, error) {
	if jobType == "" {
		return 0, ErrJobTypeRequired
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	job := &Job{
		ID:        ms.nextID,
		Type:      jobType,
		Status:    "created",
		Context:   maps.Clone(initial),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if job.Context == nil {
		job.Context = make(map[string]any)
	}

	ms.jobs[job.ID] = job
	ms.nextID++

	return job.ID, nil
}

// GetJob implements Store. The returned job is a copy; callers cannot mutate
// stored state through it.
func (ms *MemoryStore) GetJob(ctx context.Context, id int64) (*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	job, ok := ms.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}

	return cloneJob(job), nil
}

// UpdateJob implements Store. Context keys are merged into the stored payload;
// keys absent from the update keep their previous values.
func (ms *MemoryStore) UpdateJob(ctx context.Context, id int64, update Update) error {
	if update.Empty() {
		return ErrEmptyUpdate
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[id]
	if !ok {
		return ErrJobNotFound
	}

	if update.Type != nil {
		job.Type = *update.Type
	}
	if update.Status != nil {
		job.Status = *update.Status
	}
	for k, v := range update.Context {
		job.Context[k] = v
	}
	job.UpdatedAt = time.Now()

	return nil
}

// ListJobs implements Store. Results are ordered by id ascending.
func (ms *MemoryStore) ListJobs(ctx context.Context, filter Filter) ([]Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	matched := make([]*Job, 0, len(ms.jobs))
	for _, job := range ms.jobs {
		if filter.Type != "" && job.Type != filter.Type {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		matched = append(matched, job)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	out := make([]Job, 0, len(matched))
	for _, job := range matched {
		out = append(out, *cloneJob(job))
	}

	return out, nil
}

func cloneJob(job *Job) *Job {
	jobCopy := *job
	jobCopy.Context = maps.Clone(job.Context)
	return &jobCopy
}
