package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/protorefine/internal/pathstore"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *pathstore.RetryableError
	return errors.As(err, &retryErr)
}

// backoffUnit is the delay before the first retry.
var backoffUnit = time.Second

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := backoffUnit << uint(attempt)
	if limit := 30 * backoffUnit; base > limit {
		base = limit
	}
	jitter := time.Duration(rand.Int64N(int64(base)/2 + 1))
	return base + jitter
}

const MaxRetries = 3

// withRetry calls fn up to MaxRetries times while it fails with a
// retryable error.
func withRetry(ctx context.Context, log *slog.Logger, op string, fn func() error) error {
	var err error
	for attempt := range MaxRetries {
		err = fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
		log.Warn("retryable error", "op", op, "attempt", attempt, "error", err)
		if attempt == MaxRetries-1 {
			break
		}
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
