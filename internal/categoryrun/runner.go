// Package categoryrun executes one category operation for one user. It is
// the atomicity boundary shared by the access and deletion processors:
// operations on the same (user, category) never overlap.
package categoryrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"dsrengine/internal/platform/metrics"
	"dsrengine/internal/platform/tracer"
	id "dsrengine/pkg/domain"
	dErrors "dsrengine/pkg/domain-errors"
	"dsrengine/pkg/platform/sentinel"
	platformsync "dsrengine/pkg/platform/sync"
)

// Operation names the category routine being executed.
type Operation string

const (
	OpCollect   Operation = "collect"
	OpErase     Operation = "erase"
	OpAnonymize Operation = "anonymize"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 200 * time.Millisecond
	DefaultTimeout    = 30 * time.Second
)

// CategoryError reports a category operation that failed for good. Transient
// is true when the cause was a retryable failure that exhausted its retries.
type CategoryError struct {
	Category  string
	Operation Operation
	Attempts  int
	Transient bool
	Err       error
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("category %s: %s failed after %d attempt(s): %v", e.Category, e.Operation, e.Attempts, e.Err)
}

func (e *CategoryError) Unwrap() error { return e.Err }

// AsCategoryError extracts a *CategoryError from err.
func AsCategoryError(err error) (*CategoryError, bool) {
	var ce *CategoryError
	ok := errors.As(err, &ce)
	return ce, ok
}

// Runner applies lock, timeout, retry and instrumentation to category routines.
type Runner struct {
	locks      *platformsync.ShardedMutex
	maxRetries uint64
	baseDelay  time.Duration
	timeout    time.Duration
	tracer     tracer.Tracer
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*Runner)

// WithMaxRetries bounds retries of transient failures. Total attempts are n+1.
func WithMaxRetries(n int) Option {
	return func(r *Runner) {
		if n >= 0 {
			r.maxRetries = uint64(n)
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.baseDelay = d
		}
	}
}

// WithTimeout bounds each attempt. Exceeding it fails the category without retry.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(r *Runner) {
		r.tracer = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func New(opts ...Option) *Runner {
	r := &Runner{
		locks:      platformsync.NewShardedMutex(),
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		timeout:    DefaultTimeout,
		tracer:     tracer.NewNoop(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes fn under the (user, category) lock. Failures wrapping
// sentinel.ErrUnavailable are retried with exponential backoff; any other
// failure, an attempt timeout, or retry exhaustion returns a *CategoryError.
func (r *Runner) Run(ctx context.Context, userID id.UserID, category string, op Operation, fn func(ctx context.Context) error) (err error) {
	ctx, span := r.tracer.Start(ctx, tracer.SpanCategoryRun,
		tracer.String(tracer.AttrCategory, category),
		tracer.String(tracer.AttrOperation, string(op)),
	)
	start := time.Now()
	outcome := "ok"
	defer func() {
		r.metrics.ObserveCategoryRun(string(op), outcome, time.Since(start))
		span.End(err)
	}()

	key := platformsync.Key(userID.String(), category)
	r.locks.Lock(key)
	defer r.locks.Unlock(key)

	attempts := 0
	var timedOut, transient bool
	backoff := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.baseDelay))
	runErr := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			r.metrics.IncCategoryRetry(string(op))
			span.AddEvent(tracer.EventRetry, tracer.Int(tracer.AttrAttempt, attempts))
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			timedOut = true
			return dErrors.Wrap(err, dErrors.CodeTimeout, fmt.Sprintf("timed out after %s", r.timeout))
		}
		if errors.Is(err, sentinel.ErrUnavailable) {
			transient = true
			r.logger.WarnContext(ctx, "transient category failure",
				"category", category,
				"operation", op,
				"user_id", userID,
				"attempt", attempts,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		transient = false
		return err
	})
	if runErr == nil {
		return nil
	}

	switch {
	case timedOut:
		outcome = "timeout"
	case transient:
		outcome = "transient"
	default:
		outcome = "failed"
	}
	span.SetAttributes(tracer.Bool(tracer.AttrTransient, transient))
	return &CategoryError{
		Category:  category,
		Operation: op,
		Attempts:  attempts,
		Transient: transient && !timedOut,
		Err:       runErr,
	}
}
