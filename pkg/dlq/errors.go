package dlq

import "errors"

var (
	// ErrItemNotFound is returned when no item exists with the requested id.
	ErrItemNotFound = errors.New("dead letter item not found")

	// ErrInvalidTransition is returned for a status change the life cycle forbids.
	ErrInvalidTransition = errors.New("invalid dead letter status transition")

	// ErrComponentRequired is returned when enqueueing without a component name.
	ErrComponentRequired = errors.New("component cannot be empty")

	// ErrOperationRequired is returned when enqueueing without an operation name.
	ErrOperationRequired = errors.New("operation cannot be empty")

	// ErrSubmitterNil is returned when a resubmitter is built without a submitter.
	ErrSubmitterNil = errors.New("submitter cannot be nil")

	// ErrQueueNil is returned when a resubmitter is built without a queue.
	ErrQueueNil = errors.New("queue cannot be nil")

	// ErrFailedToEnqueue is returned when the backend rejects a new item.
	ErrFailedToEnqueue = errors.New("failed to enqueue dead letter item")

	// ErrFailedToListItems is returned when the backend cannot list items.
	ErrFailedToListItems = errors.New("failed to list dead letter items")

	// ErrFailedToLoadStats is returned when the backend cannot aggregate stats.
	ErrFailedToLoadStats = errors.New("failed to load dead letter stats")
)
