package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig configures the retry behavior for model calls.
// Only ErrGenerationTimeout is retried: transport and auth failures do
// not get better by asking again, and retrieval failures are terminal
// for the turn.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for model API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// withDefaults fills unset fields from DefaultRetryConfig. Each field
// defaults independently, so a config setting only MaxRetries still
// gets backoff intervals.
func (c RetryConfig) withDefaults() RetryConfig {
	defaults := DefaultRetryConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = defaults.InitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = defaults.MaxInterval
	}
	return c
}

// generateWithRetry executes the generator with exponential backoff,
// rate limiting each attempt.
func (e *Engine) generateWithRetry(ctx context.Context, boundPrompt string) (string, error) {
	var lastErr error
	delay := e.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= e.retry.MaxRetries; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("%w: rate limit wait: %w", ErrGenerationUnavailable, err)
			}
		}

		answer, err := e.generator.Generate(ctx, boundPrompt)
		if err == nil {
			e.logger.Debug("generation succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return answer, nil
		}

		lastErr = err

		if !errors.Is(err, ErrGenerationTimeout) {
			return "", err
		}

		if attempt == e.retry.MaxRetries {
			break
		}

		e.logger.Debug("retrying after timeout",
			"attempt", attempt+1,
			"delay", delay,
			"elapsed", time.Since(start),
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: canceled during retry: %w", ErrGenerationTimeout, ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, e.retry.MaxInterval)
		}
	}

	return "", fmt.Errorf("after %d retries (elapsed: %v): %w",
		e.retry.MaxRetries, time.Since(start), lastErr)
}
