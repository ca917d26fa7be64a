package deepagent

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// DefaultRetryAttempts is the attempt count used by Retry.
const DefaultRetryAttempts = 3

// DefaultRetryBaseDelay is the initial backoff before the second attempt.
// Each subsequent delay doubles.
const DefaultRetryBaseDelay = time.Second

// Retry calls fn up to DefaultRetryAttempts times, backing off between
// transient HTTP failures (429, 503). Non-transient errors return
// immediately. A nil logger suppresses retry diagnostics.
func Retry[T any](ctx context.Context, logger *slog.Logger, fn func() (T, error)) (T, error) {
	return RetryN(ctx, DefaultRetryAttempts, DefaultRetryBaseDelay, logger, fn)
}

// RetryN is Retry with explicit attempt count and base delay. When the error
// carries a Retry-After duration, the delay is at least that long.
func RetryN[T any](ctx context.Context, maxAttempts int, base time.Duration, logger *slog.Logger, fn func() (T, error)) (T, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var zero T
	var last error
	for i := 0; i < maxAttempts; i++ {
		result, err := fn()
		if err == nil || !isTransient(err) {
			return result, err
		}
		last = err
		logger.Warn("retrying transient error",
			"status", statusCodeOf(err),
			"attempt", i+1,
			"max_attempts", maxAttempts)
		if i < maxAttempts-1 {
			timer := time.NewTimer(retryDelay(base, i, err))
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}
	logger.Error("all retry attempts exhausted", "attempts", maxAttempts, "error", last)
	return zero, last
}

// isTransient reports whether err is a retryable HTTP error (429 or 503).
func isTransient(err error) bool {
	var e *ErrHTTP
	return errors.As(err, &e) && (e.Status == 429 || e.Status == 503)
}

// statusCodeOf extracts the HTTP status code from an ErrHTTP, or 0.
func statusCodeOf(err error) int {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// retryAfterOf extracts the Retry-After duration from an ErrHTTP, or 0.
func retryAfterOf(err error) time.Duration {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// retryDelay computes the delay before retry attempt i, using exponential
// backoff as a floor and the server's Retry-After value as a minimum.
func retryDelay(base time.Duration, i int, err error) time.Duration {
	backoff := retryBackoff(base, i)
	if ra := retryAfterOf(err); ra > backoff {
		return ra
	}
	return backoff
}

// retryBackoff returns the delay for retry i (0-indexed).
// Exponential: base * 2^i, plus up to 50% random jitter.
func retryBackoff(base time.Duration, i int) time.Duration {
	exp := base * (1 << i)
	jitter := time.Duration(rand.Int63n(int64(exp)/2 + 1))
	return exp + jitter
}
