package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// KeyedLock provides scoped, bounded-wait exclusive locks over named shared
// resources. Stage bodies that must exclusively mutate an external resource
// acquire the resource's key here; an acquisition that times out surfaces as
// a lock-contention failure, which callers typically pair with a more patient
// retry policy than a plain execution failure.
type KeyedLock struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewKeyedLock creates an empty lock registry.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{slots: make(map[string]chan struct{})}
}

// Acquire takes the exclusive lock for key, waiting at most timeout. On
// success it returns an idempotent release function. On timeout it returns a
// StageError of kind lock contention wrapping ErrLockTimeout.
func (kl *KeyedLock) Acquire(ctx context.Context, stage, key string, timeout time.Duration) (func(), error) {
	kl.mu.Lock()
	slot, ok := kl.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		kl.slots[key] = slot
	}
	kl.mu.Unlock()

	releaser := func() func() {
		var once sync.Once
		return func() {
			once.Do(func() { <-slot })
		}
	}

	// A free slot is always granted, even with a degenerate timeout.
	select {
	case slot <- struct{}{}:
		return releaser(), nil
	default:
	}

	// A non-positive timeout means try-once: the slot is busy, so report
	// contention without arming a timer that would fire immediately.
	if timeout <= 0 {
		return nil, LockContentionError(stage, fmt.Errorf("%w: key %q is held", ErrLockTimeout, key))
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return releaser(), nil
	case <-timer.C:
		return nil, LockContentionError(stage, fmt.Errorf("%w: key %q after %s", ErrLockTimeout, key, timeout))
	case <-ctx.Done():
		return nil, LockContentionError(stage, fmt.Errorf("%w: key %q: %v", ErrLockTimeout, key, ctx.Err()))
	}
}
