package invoke

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/hupe1980/sidekick/logging"
)

// Options configures a retried invocation.
type Options struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// InitialDelay is the backoff delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps both the backoff delay and the computed wait time.
	MaxDelay time.Duration
	// Operation names the call in log output.
	Operation string
	// Classify overrides the default error classification.
	Classify func(error) Class
	// Logger receives per-attempt and retry-wait records.
	Logger logging.Logger
}

func defaultOptions() Options {
	return Options{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		Operation:    "LLM invocation",
		Classify:     Classify,
		Logger:       logging.NoOpLogger{},
	}
}

func buildOptions(optFns []func(o *Options)) Options {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Classify == nil {
		opts.Classify = Classify
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return opts
}

// Do invokes op with automatic retry and exponential backoff, waiting
// cooperatively on the context between attempts. Fatal and unknown errors are
// surfaced immediately; retryable errors are retried until MaxAttempts total
// attempts have been made. Terminal failures are returned as *Error.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), optFns ...func(o *Options)) (T, error) {
	opts := buildOptions(optFns)
	return run(op, opts, func(wait time.Duration) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			return nil
		}
	}, ctx)
}

// DoSync is the blocking variant of Do with identical semantics; it sleeps
// the calling goroutine between attempts and never consults a context.
func DoSync[T any](op func() (T, error), optFns ...func(o *Options)) (T, error) {
	opts := buildOptions(optFns)
	wrapped := func(context.Context) (T, error) { return op() }
	return run(wrapped, opts, func(wait time.Duration) error {
		time.Sleep(wait)
		return nil
	}, context.Background())
}

func run[T any](op func(ctx context.Context) (T, error), opts Options, wait func(time.Duration) error, ctx context.Context) (T, error) {
	var zero T
	delay := opts.InitialDelay

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		opts.Logger.Debug("invoke attempt", "operation", opts.Operation, "attempt", attempt, "max_attempts", opts.MaxAttempts)

		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				opts.Logger.Info("invoke succeeded after retry", "operation", opts.Operation, "attempt", attempt)
			}
			return result, nil
		}

		switch opts.Classify(err) {
		case ClassFatal:
			opts.Logger.Error("invoke fatal error", "operation", opts.Operation, "attempt", attempt, "error", err.Error())
			return zero, &Error{
				Message:     opts.Operation + " failed with fatal error",
				Err:         err,
				Attempt:     attempt,
				MaxAttempts: opts.MaxAttempts,
			}
		case ClassRetryable:
			// fall through to backoff below
		default:
			opts.Logger.Error("invoke non-retryable error", "operation", opts.Operation, "attempt", attempt, "error", err.Error())
			return zero, &Error{
				Message:     opts.Operation + " failed with non-retryable error",
				Err:         err,
				Attempt:     attempt,
				MaxAttempts: opts.MaxAttempts,
			}
		}

		opts.Logger.Warn("invoke retryable error", "operation", opts.Operation, "attempt", attempt, "error", err.Error())

		if attempt >= opts.MaxAttempts {
			opts.Logger.Error("invoke retries exhausted", "operation", opts.Operation, "attempts", opts.MaxAttempts)
			return zero, &Error{
				Message:     fmt.Sprintf("%s failed after %d attempts", opts.Operation, opts.MaxAttempts),
				Err:         err,
				Attempt:     attempt,
				MaxAttempts: opts.MaxAttempts,
			}
		}

		waitTime := Backoff(delay, opts.MaxDelay)
		opts.Logger.Info("invoke retrying", "operation", opts.Operation, "attempt", attempt, "wait", waitTime.String())

		if werr := wait(waitTime); werr != nil {
			return zero, &Error{
				Message:     opts.Operation + " cancelled while waiting to retry",
				Err:         werr,
				Attempt:     attempt,
				MaxAttempts: opts.MaxAttempts,
			}
		}

		delay *= 2
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}

	return zero, &Error{Message: opts.Operation + " failed", MaxAttempts: opts.MaxAttempts}
}

// Backoff computes the wait time for the current backoff delay: the delay
// plus uniform jitter in [0, 0.1*delay), capped at max.
func Backoff(delay, max time.Duration) time.Duration {
	jitter := time.Duration(rand.Int63n(int64(delay)/10 + 1))
	wait := delay + jitter
	if wait > max {
		wait = max
	}
	return wait
}
