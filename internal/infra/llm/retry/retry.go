// Package retry wraps provider operations with bounded, jittered
// exponential backoff. Retryability is decided by the aierr classifier
// unless the caller supplies its own predicate.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rezoom-ai/promptgate/internal/core/aierr"
	"github.com/rezoom-ai/promptgate/internal/metrics"
)

// Policy defines retry behavior. Constructed once per Executor, immutable.
type Policy struct {
	MaxRetries        int           // additional attempts after the first; 0 = single attempt
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultPolicy provides sensible defaults.
var DefaultPolicy = Policy{
	MaxRetries:        3,
	InitialDelay:      500 * time.Millisecond,
	MaxDelay:          30 * time.Second,
	BackoffMultiplier: 2.0,
}

// jitterFraction bounds the random perturbation added to each delay.
// Randomization avoids synchronized retry bursts across concurrent callers.
const jitterFraction = 0.3

// Operation is a retryable unit of work.
type Operation func(ctx context.Context) (any, error)

// Predicate overrides the default retry decision. attempt is the
// zero-based index of the attempt that just failed.
type Predicate func(err error, attempt int) bool

// Executor runs operations under a single retry policy.
type Executor struct {
	policy Policy
}

// NewExecutor creates an Executor, normalizing invalid policy values.
func NewExecutor(policy Policy) *Executor {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = DefaultPolicy.InitialDelay
	}
	if policy.MaxDelay < policy.InitialDelay {
		policy.MaxDelay = policy.InitialDelay
	}
	if policy.BackoffMultiplier <= 1 {
		policy.BackoffMultiplier = DefaultPolicy.BackoffMultiplier
	}
	return &Executor{policy: policy}
}

// Policy returns the executor's policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Do executes op, retrying classified-retryable failures.
func (e *Executor) Do(ctx context.Context, op Operation) (any, error) {
	return e.DoWith(ctx, op, nil)
}

// DoWith executes op with a custom retry predicate. A nil predicate falls
// back to the classifier's retryable flag. The last error is propagated,
// classified, once attempts are exhausted or the error is non-retryable.
func (e *Executor) DoWith(ctx context.Context, op Operation, shouldRetry Predicate) (any, error) {
	var lastErr *aierr.Error

	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = aierr.Classify(err)

		retryable := lastErr.Retryable
		if shouldRetry != nil {
			retryable = shouldRetry(err, attempt)
		}
		if !retryable || attempt >= e.policy.MaxRetries {
			return nil, lastErr
		}

		metrics.RetryAttemptsTotal.Inc()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.delay(attempt)):
		}
	}
}

// delay computes the wait before the attempt following the given
// zero-based failed attempt: min(initial*multiplier^attempt + jitter, max)
// with jitter uniform in [0, jitterFraction*base).
func (e *Executor) delay(attempt int) time.Duration {
	base := float64(e.policy.InitialDelay) * math.Pow(e.policy.BackoffMultiplier, float64(attempt))
	if base > float64(e.policy.MaxDelay) {
		base = float64(e.policy.MaxDelay)
	}

	jitter := rand.Float64() * jitterFraction * base

	delay := base + jitter
	if delay > float64(e.policy.MaxDelay) {
		delay = float64(e.policy.MaxDelay)
	}
	return time.Duration(delay)
}
