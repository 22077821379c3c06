// Package retry gives externally-backed operations uniform timeout,
// retry and error-capture semantics. Transient failures (timeouts, rate
// limits, 5xx) are retried with exponential backoff; permanent failures
// surface immediately.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults applied when no option overrides them.
const (
	DefaultMaxAttempts     = 3
	DefaultTimeout         = 2 * time.Minute
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 30 * time.Second
)

// Sleeper waits for the given duration or until the context is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Task wraps a named unit of external work. It carries no state across
// calls and never mutates anything beyond invoking the operation.
type Task struct {
	name        string
	maxAttempts int
	timeout     time.Duration
	initial     time.Duration
	maxInterval time.Duration
	classify    func(error) bool
	sleep       Sleeper
	log         *slog.Logger
}

// Option configures a Task.
type Option func(*Task)

// WithMaxAttempts sets the total attempt limit (first try included).
func WithMaxAttempts(n int) Option {
	return func(t *Task) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

// WithTimeout sets the per-attempt timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(t *Task) { t.timeout = d }
}

// WithBackoff sets the initial and maximum backoff intervals.
func WithBackoff(initial, max time.Duration) Option {
	return func(t *Task) {
		if initial > 0 {
			t.initial = initial
		}
		if max > 0 {
			t.maxInterval = max
		}
	}
}

// WithClassifier replaces the transient-error classifier.
func WithClassifier(f func(error) bool) Option {
	return func(t *Task) {
		if f != nil {
			t.classify = f
		}
	}
}

// WithSleeper replaces the inter-attempt wait, letting tests observe
// delays instead of sleeping through them.
func WithSleeper(s Sleeper) Option {
	return func(t *Task) {
		if s != nil {
			t.sleep = s
		}
	}
}

// New creates a task with the given name for logging and error context.
func New(name string, log *slog.Logger, opts ...Option) *Task {
	if log == nil {
		log = slog.Default()
	}
	t := &Task{
		name:        name,
		maxAttempts: DefaultMaxAttempts,
		timeout:     DefaultTimeout,
		initial:     DefaultInitialInterval,
		maxInterval: DefaultMaxInterval,
		classify:    IsTransient,
		sleep:       sleepContext,
		log:         log,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Do executes op, retrying transient failures up to the attempt limit.
// Each attempt runs under its own timeout. The returned error wraps the
// last attempt's error, so errors.Is/As still see the cause.
func (t *Task) Do(ctx context.Context, op func(context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.initial
	bo.MaxInterval = t.maxInterval
	bo.MaxElapsedTime = 0
	bo.Reset()

	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}

		attemptCtx := ctx
		cancel := func() {}
		if t.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, t.timeout)
		}
		err := op(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if !t.classify(err) {
			return fmt.Errorf("%s: %w", t.name, err)
		}
		if attempt == t.maxAttempts {
			break
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			break
		}
		// A provider's Retry-After hint overrides a shorter backoff.
		if hint, ok := retryAfterHint(err); ok && hint > delay {
			delay = hint
		}

		t.log.Debug("transient failure, retrying",
			"task", t.name, "attempt", attempt, "delay", delay, "error", err)

		if sleepErr := t.sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("%s: %w", t.name, sleepErr)
		}
	}

	return fmt.Errorf("%s: %d attempts exhausted: %w", t.name, t.maxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
