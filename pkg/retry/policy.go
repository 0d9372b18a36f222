package retry

import "time"

// Strategy selects how the delay between attempts grows.
type Strategy string

const (
	// StrategyImmediate retries without waiting.
	StrategyImmediate Strategy = "immediate"
	// StrategyExponentialBackoff doubles the delay per attempt up to MaxDelay.
	StrategyExponentialBackoff Strategy = "exponential_backoff"
)

// Valid checks if the strategy is one of the known constants.
func (s Strategy) Valid() bool {
	return s == StrategyImmediate || s == StrategyExponentialBackoff
}

// Policy describes the retry budget and backoff schedule for one unit of work.
// The zero value is not usable; build policies via NoRetry or ExponentialBackoff,
// or construct one literally and call Validate.
type Policy struct {
	MaxAttempts  int           `json:"max_attempts"`
	Strategy     Strategy      `json:"strategy"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
}

// NoRetry permits exactly one attempt.
func NoRetry() Policy {
	return Policy{MaxAttempts: 1, Strategy: StrategyImmediate}
}

// Immediate permits maxAttempts attempts with no delay between them.
func Immediate(maxAttempts int) Policy {
	return Policy{MaxAttempts: maxAttempts, Strategy: StrategyImmediate}
}

// ExponentialBackoff permits maxAttempts attempts with delays doubling from
// initial up to the max ceiling.
func ExponentialBackoff(maxAttempts int, initial, max time.Duration) Policy {
	return Policy{
		MaxAttempts:  maxAttempts,
		Strategy:     StrategyExponentialBackoff,
		InitialDelay: initial,
		MaxDelay:     max,
	}
}

// Validate reports whether the policy is internally consistent.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if !p.Strategy.Valid() {
		return ErrInvalidStrategy
	}
	if p.InitialDelay < 0 || p.MaxDelay < 0 {
		return ErrInvalidDelay
	}
	return nil
}

// Delay returns how long to wait after the given failed attempt before the
// next one. Attempts are counted from 1.
func (p Policy) Delay(attempt int) time.Duration {
	if p.Strategy != StrategyExponentialBackoff {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	d := p.InitialDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// ShouldRetry reports whether another attempt is allowed after attempt failures.
// The error is accepted for interface symmetry but never inspected: the policy
// owns "how many more tries", not "is this failure worth retrying".
func (p Policy) ShouldRetry(attempt int, _ error) bool {
	return attempt < p.MaxAttempts
}
