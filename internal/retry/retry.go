// Package retry runs an operation with classified exponential backoff.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/vietddude/rewriter/internal/core/apierror"
	"github.com/vietddude/rewriter/internal/core/domain"
	"github.com/vietddude/rewriter/internal/metrics"
)

// Operation is a single unit of retryable work. The context is passed
// through to the operation; a per-attempt timeout does not cancel it
// (see Executor.Execute).
type Operation func(ctx context.Context) (any, error)

// Policy defines retry behavior.
type Policy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterFactor      float64
	AttemptTimeout    time.Duration
	// RetryableCodes widens the default retryable set from apierror.
	RetryableCodes []domain.ErrorCode
}

// DefaultPolicy provides sensible defaults.
var DefaultPolicy = Policy{
	MaxRetries:        3,
	BaseDelay:         1 * time.Second,
	MaxDelay:          30 * time.Second,
	BackoffMultiplier: 2.0,
	JitterFactor:      0.1,
	AttemptTimeout:    30 * time.Second,
}

// Attempt records one execution attempt. Err is nil for the successful
// attempt; for failed attempts it is a sanitized snapshot carrying only
// code, status and message, never the raw cause.
type Attempt struct {
	Number int
	Delay  time.Duration
	Err    *apierror.Error
	At     time.Time
}

// Result is the terminal outcome of an Execute call. Immutable once
// returned.
type Result struct {
	Success  bool
	Value    any
	Err      *apierror.Error
	Attempts []Attempt
	Elapsed  time.Duration
}

// Executor runs operations under a Policy. Instances are cheap and safe
// for concurrent use; callers construct and inject their own rather than
// sharing a process-wide default.
type Executor struct {
	policy Policy
	log    *slog.Logger
}

// NewExecutor creates an executor with the given policy.
func NewExecutor(policy Policy, log *slog.Logger) *Executor {
	if policy.BackoffMultiplier <= 0 {
		policy.BackoffMultiplier = DefaultPolicy.BackoffMultiplier
	}
	if policy.AttemptTimeout <= 0 {
		policy.AttemptTimeout = DefaultPolicy.AttemptTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Executor{policy: policy, log: log}
}

// Execute runs op up to MaxRetries+1 times. Attempt 1 starts
// immediately; each later attempt waits for a backoff delay first. An
// attempt that outlives AttemptTimeout counts as a TIMEOUT failure, but
// the operation itself is not interrupted; a late result is discarded.
func (e *Executor) Execute(ctx context.Context, op Operation, label string) *Result {
	start := time.Now()
	maxAttempts := e.policy.MaxRetries + 1
	attempts := make([]Attempt, 0, maxAttempts)

	var delay time.Duration
	for n := 1; n <= maxAttempts; n++ {
		if delay > 0 {
			select {
			case <-ctx.Done():
				aerr := apierror.New(domain.ErrTimeout, ctx.Err())
				return e.finish(attempts, nil, aerr, start)
			case <-time.After(delay):
			}
		}

		value, err := e.runAttempt(ctx, op)
		if err == nil {
			attempts = append(attempts, Attempt{Number: n, Delay: delay, At: time.Now()})
			if n > 1 {
				e.log.Info("operation succeeded after retry",
					"label", label, "attempts", n)
			}
			return e.finish(attempts, value, nil, start)
		}

		aerr := apierror.From(err)
		attempts = append(attempts, Attempt{
			Number: n,
			Delay:  delay,
			Err:    snapshot(aerr),
			At:     time.Now(),
		})
		metrics.RetryAttempts.WithLabelValues(string(aerr.Code)).Inc()

		if n == maxAttempts || !e.retryable(aerr.Code) {
			if n == maxAttempts {
				e.log.Warn("operation failed after all attempts",
					"label", label, "attempts", n, "code", aerr.Code)
			}
			return e.finish(attempts, nil, aerr, start)
		}

		delay = e.backoff(n)
		e.log.Debug("retrying operation",
			"label", label, "attempt", n, "code", aerr.Code, "delay", delay)
	}

	// Unreachable: the loop always returns.
	return e.finish(attempts, nil, apierror.New(domain.ErrInternal, nil), start)
}

func (e *Executor) finish(attempts []Attempt, value any, aerr *apierror.Error, start time.Time) *Result {
	return &Result{
		Success:  aerr == nil,
		Value:    value,
		Err:      aerr,
		Attempts: attempts,
		Elapsed:  time.Since(start),
	}
}

// runAttempt races op against the per-attempt timeout. The op goroutine
// keeps running on timeout; its buffered channel lets it finish and be
// collected without a receiver.
func (e *Executor) runAttempt(ctx context.Context, op Operation) (any, error) {
	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := op(ctx)
		done <- outcome{v, err}
	}()

	timer := time.NewTimer(e.policy.AttemptTimeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.value, out.err
	case <-timer.C:
		return nil, apierror.New(domain.ErrTimeout,
			fmt.Errorf("attempt exceeded %s", e.policy.AttemptTimeout))
	case <-ctx.Done():
		return nil, apierror.New(domain.ErrTimeout, ctx.Err())
	}
}

func (e *Executor) retryable(code domain.ErrorCode) bool {
	if apierror.Retryable(code) {
		return true
	}
	for _, c := range e.policy.RetryableCodes {
		if c == code {
			return true
		}
	}
	return false
}

// backoff computes the delay before attempt n+1:
// min(base × multiplier^(n-1), max), perturbed by ±delay×jitter×U with
// U drawn from [-0.5, 0.5], floored at zero.
func (e *Executor) backoff(n int) time.Duration {
	d := float64(e.policy.BaseDelay) * math.Pow(e.policy.BackoffMultiplier, float64(n-1))
	if d > float64(e.policy.MaxDelay) {
		d = float64(e.policy.MaxDelay)
	}
	if e.policy.JitterFactor > 0 {
		d += d * e.policy.JitterFactor * (rand.Float64() - 0.5)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// snapshot copies an error without its wrapped cause or context, so the
// attempt log retains only code, status and user message.
func snapshot(aerr *apierror.Error) *apierror.Error {
	return &apierror.Error{
		Code:    aerr.Code,
		Status:  aerr.Status,
		Message: aerr.Message,
	}
}
