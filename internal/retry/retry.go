package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/openjob/internal/model"
)

// RetryDrafter is a decorator that retries transient failures with exponential
// backoff and jitter before delegating to the wrapped Drafter.
type RetryDrafter struct {
	inner      model.Drafter
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// NewRetryDrafter wraps a Drafter with retry logic.
// maxRetries is the number of additional attempts after the first failure (default: 2).
// baseDelay is the delay before the first retry (default: 5s), doubled on each subsequent retry.
func NewRetryDrafter(inner model.Drafter, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *RetryDrafter {
	return &RetryDrafter{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// Draft attempts to generate content, retrying on transient errors.
func (d *RetryDrafter) Draft(ctx context.Context, posting model.Posting) (model.TailoredContent, error) {
	content, err := d.inner.Draft(ctx, posting)
	if err == nil {
		return content, nil
	}

	if !isRetryable(err) {
		return model.TailoredContent{}, err
	}

	var lastErr error = err
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		delay := d.backoffDelay(attempt, lastErr)

		d.logger.Warn("retrying after transient error",
			"posting", posting.ID,
			"attempt", attempt,
			"max_retries", d.maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return model.TailoredContent{}, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		content, err = d.inner.Draft(ctx, posting)
		if err == nil {
			return content, nil
		}

		if !isRetryable(err) {
			return model.TailoredContent{}, err
		}
		lastErr = err
	}

	return model.TailoredContent{}, lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func (d *RetryDrafter) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// Exponential: baseDelay * 2^(attempt-1)
	delay := d.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	// Apply ±30% jitter
	jitter := float64(delay) * 0.3
	delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)

	return delay
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Never retry a cancelled context.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		// 429 and 5xx are transient; other 4xx will not improve on retry.
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	// Non-HTTP errors (network, DNS, etc.) are worth retrying.
	return true
}
