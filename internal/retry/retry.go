// Package retry paces compare-and-commit retries.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Config configures backoff between commit attempts.
type Config struct {
	// MaxAttempts bounds the number of attempts. Zero means unbounded.
	MaxAttempts int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
	// Multiplier is the factor by which the delay grows per attempt.
	Multiplier float64
	// Jitter is the randomization factor (0.0 to 1.0) applied to delays
	// so contending writers spread out.
	Jitter float64
	// RetryableOn reports whether err warrants another attempt. A nil
	// RetryableOn retries every error.
	RetryableOn func(err error) bool
}

// DefaultConfig returns the default backoff for commit conflicts.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 0,
		BaseDelay:   time.Millisecond,
		MaxDelay:    50 * time.Millisecond,
		Multiplier:  2.0,
		Jitter:      0.5,
	}
}

// ShouldRetry reports whether another attempt should follow the failed
// attempt numbered attempt (zero-based).
func (c *Config) ShouldRetry(attempt int, err error) bool {
	if c.MaxAttempts > 0 && attempt+1 >= c.MaxAttempts {
		return false
	}
	if c.RetryableOn == nil {
		return true
	}
	return c.RetryableOn(err)
}

// Delay calculates the delay before the next attempt with optional jitter.
func (c *Config) Delay(attempt int) time.Duration {
	delay := float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt))
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}

	if c.Jitter > 0 {
		jitterAmount := delay * c.Jitter
		delay = delay - jitterAmount + (rand.Float64() * 2 * jitterAmount)
	}

	return time.Duration(delay)
}

// Wait waits for the delay before the next attempt.
func (c *Config) Wait(ctx context.Context, attempt int) error {
	delay := c.Delay(attempt)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do calls fn until it succeeds or ShouldRetry declines, waiting between
// attempts. onRetry, if non-nil, is called before each wait.
func (c *Config) Do(ctx context.Context, fn func(attempt int) error, onRetry func(attempt int, err error)) error {
	for attempt := 0; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if !c.ShouldRetry(attempt, err) {
			return err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if werr := c.Wait(ctx, attempt); werr != nil {
			return werr
		}
	}
}
