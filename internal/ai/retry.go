package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/windoze95/voicepack-api/internal/logger"
	"go.uber.org/zap"
)

const maxAttempts = 3

// retryWait is the base backoff; attempt n waits n times this.
var retryWait = 2 * time.Second

// withRetry runs call up to maxAttempts times, backing off linearly while
// retryable says the failure is transient. op names the upstream call in
// logs and errors.
func withRetry[T any](ctx context.Context, op string, retryable func(error) bool, call func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := call()
		if err == nil {
			return result, nil
		}
		if !retryable(err) {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
		lastErr = err

		logger.Get().Warn("upstream call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(retryWait * time.Duration(attempt)):
		}
	}
	return zero, fmt.Errorf("%s: gave up after %d attempts: %w", op, maxAttempts, lastErr)
}
