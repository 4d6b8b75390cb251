// Package faulttolerance provides the retry policy used around exchange calls.
package faulttolerance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrMaxAttempts is wrapped into the error returned once every attempt failed.
var ErrMaxAttempts = errors.New("max retry attempts exceeded")

// RetryConfig holds configuration for retry mechanisms
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts, the first one included
	BaseDelay   time.Duration // Delay before the second attempt
	MaxDelay    time.Duration // Maximum delay between attempts
	Multiplier  float64       // Backoff multiplier; 1 keeps the delay fixed
	JitterRange float64       // Jitter range (0.0 to 1.0)
	Name        string        // Name for logging

	// IsRetryable decides whether err should trigger another attempt.
	// When nil every error is retried.
	IsRetryable func(err error) bool

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// FixedRetryConfig returns a policy that waits the same delay between attempts.
func FixedRetryConfig(name string, attempts int, delay time.Duration) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		BaseDelay:   delay,
		MaxDelay:    delay,
		Multiplier:  1,
		Name:        name,
	}
}

// RetryableFunc is a function that can be retried. attempt starts at 1.
type RetryableFunc func(attempt int) error

// Retryer handles retry logic with optional exponential backoff and jitter
type Retryer struct {
	config RetryConfig
	logger logrus.FieldLogger
	rng    *rand.Rand
}

// NewRetryer creates a new retryer
func NewRetryer(config RetryConfig, logger logrus.FieldLogger) *Retryer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay < 0 {
		config.BaseDelay = 0
	}
	if config.MaxDelay < config.BaseDelay {
		config.MaxDelay = config.BaseDelay
	}
	if config.Multiplier < 1.0 {
		config.Multiplier = 1.0
	}
	if config.JitterRange < 0 || config.JitterRange > 1.0 {
		config.JitterRange = 0
	}
	if config.Name == "" {
		config.Name = "Retryer"
	}
	if config.Sleep == nil {
		config.Sleep = Sleep
	}

	return &Retryer{
		config: config,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Execute executes the function with retry logic
func (r *Retryer) Execute(ctx context.Context, fn RetryableFunc) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		log := r.logger.WithFields(logrus.Fields{"retryer": r.config.Name, "attempt": attempt, "max_attempts": r.config.MaxAttempts})
		log.Debug("Attempting operation")

		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				log.Info("Operation succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !r.isRetryable(err) {
			log.WithError(err).Error("Non-retryable error")
			return err
		}

		if attempt == r.config.MaxAttempts {
			log.WithError(err).Error("All attempts failed")
			break
		}

		delay := r.calculateDelay(attempt)
		log.WithError(err).Warnf("Attempt %d of %d failed, retrying in %v", attempt, r.config.MaxAttempts, delay)

		if err := r.config.Sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w (%d): %w", ErrMaxAttempts, r.config.MaxAttempts, lastErr)
}

// calculateDelay calculates the delay for the next attempt
func (r *Retryer) calculateDelay(attempt int) time.Duration {
	// Exponential backoff: baseDelay * multiplier^(attempt-1)
	delay := float64(r.config.BaseDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	if r.config.JitterRange > 0 {
		jitter := r.rng.Float64() * r.config.JitterRange * delay
		if r.rng.Float64() < 0.5 {
			delay -= jitter
		} else {
			delay += jitter
		}
	}

	if delay < float64(r.config.BaseDelay) {
		delay = float64(r.config.BaseDelay)
	}

	return time.Duration(delay)
}

func (r *Retryer) isRetryable(err error) bool {
	if r.config.IsRetryable == nil {
		return true
	}
	return r.config.IsRetryable(err)
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
