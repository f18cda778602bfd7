package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"codequest/internal/apperr"
	"codequest/internal/config"
	"codequest/internal/database"
	"codequest/internal/logger"
)

// retrier reruns a unit of work that lost a race, either a compare-and-swap
// reported as apperr.ErrConflict or a driver lock/serialization error.
type retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	retryable   func(error) bool
	log         *logger.Logger
}

func (r retrier) do(ctx context.Context, op string, fn func() error) error {
	attempts := r.maxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !r.shouldRetry(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.log.Debug("retrying after contention", "op", op, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff(attempt)):
		}
	}

	r.log.Warn("contention retries exhausted", "op", op, "attempts", attempts, "error", err)
	return apperr.Transient(err)
}

func (r retrier) shouldRetry(err error) bool {
	if errors.Is(err, apperr.ErrConflict) {
		return true
	}
	return r.retryable != nil && r.retryable(err)
}

// backoff grows linearly with jitter
func (r retrier) backoff(attempt int) time.Duration {
	if r.baseDelay <= 0 {
		return 0
	}
	d := r.baseDelay * time.Duration(attempt)
	return d/2 + rand.N(d)
}

func newRetrier(db *database.DB, cfg config.RetryConfig, log *logger.Logger) retrier {
	return retrier{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		retryable:   db.IsRetryable,
		log:         log,
	}
}
