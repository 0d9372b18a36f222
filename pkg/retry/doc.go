// Package retry defines attempt-budget policies with pluggable backoff
// strategies for pipeline stage execution.
//
// A Policy is a pure value: given an attempt number it answers "how long to
// wait before the next try" and "is another try allowed". It deliberately
// ignores the kind of failure — classifying errors as retryable or not is the
// caller's job (see the pipeline package's error taxonomy). Policies are
// stateless and safe to share across stages and runs.
//
// # Usage
//
//	policy := retry.ExponentialBackoff(5, time.Second, 30*time.Second)
//
//	for attempt := 1; ; attempt++ {
//	    err := doWork()
//	    if err == nil {
//	        break
//	    }
//	    if !policy.ShouldRetry(attempt, err) {
//	        return err
//	    }
//	    time.Sleep(policy.Delay(attempt))
//	}
package retry
