package retry

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when a policy allows fewer than one attempt.
	ErrInvalidMaxAttempts = errors.New("max attempts must be at least 1")

	// ErrInvalidStrategy is returned when the backoff strategy is unknown.
	ErrInvalidStrategy = errors.New("unknown retry strategy")

	// ErrInvalidDelay is returned when a backoff delay is negative.
	ErrInvalidDelay = errors.New("delay durations must not be negative")
)
