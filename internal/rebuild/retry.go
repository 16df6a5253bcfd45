package rebuild

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ErlanBelekov/points-rebuild/internal/domain"
)

// maxBackoffFactor caps exponential growth at 16x the base delay.
const maxBackoffFactor = 16

// RetryPolicy decides whether and when a failed call is retried.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Delay returns the backoff before retrying after failed attempt n (1-indexed):
// base * min(16, 2^(n-1)).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	factor := 1
	for i := 1; i < attempt && factor < maxBackoffFactor; i++ {
		factor *= 2
	}
	return p.BaseDelay * time.Duration(min(factor, maxBackoffFactor))
}

// CanRetry reports whether another attempt is allowed after attempt n failed.
func (p RetryPolicy) CanRetry(attempt int) bool {
	return attempt <= p.MaxRetries
}

// IsRetriable reports whether err is a failure worth retrying: no response
// at all, 429, or any 5xx. Everything else fails immediately.
func IsRetriable(err error) bool {
	var he *domain.HTTPError
	if !errors.As(err, &he) {
		return false
	}
	return RetriableStatus(he.Status)
}

func RetriableStatus(status int) bool {
	return status == 0 ||
		status == http.StatusTooManyRequests ||
		(status >= 500 && status <= 599)
}

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
