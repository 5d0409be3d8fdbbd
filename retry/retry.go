// Package retry wraps a writer.Store so failed reads and writes are retried
// with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/joeychilson/sitemapgen/config"
	"github.com/joeychilson/sitemapgen/logger"
	"github.com/joeychilson/sitemapgen/writer"
)

const (
	// jitterPercent is the percentage of jitter to add to retry delays (+/- 25%).
	jitterPercent = 0.25
)

// Store retries the operations of the store it wraps.
type Store struct {
	store  writer.Store
	config config.RetryConfig
	logger logger.Logger
}

// NewStore wraps s with retries configured by cfg.
func NewStore(s writer.Store, cfg config.RetryConfig) *Store {
	return &Store{
		store:  s,
		config: cfg,
		logger: logger.Noop(),
	}
}

// WithLogger sets the logger used to report failed attempts.
func (s *Store) WithLogger(log logger.Logger) *Store {
	if log != nil {
		s.logger = log
	}
	return s
}

// WriteFile writes name, retrying on failure.
func (s *Store) WriteFile(ctx context.Context, name string, data []byte) error {
	return s.do(ctx, name, func(ctx context.Context) error {
		return s.store.WriteFile(ctx, name, data)
	})
}

// ReadFile reads name, retrying on failure. A missing file is not retried.
func (s *Store) ReadFile(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.do(ctx, name, func(ctx context.Context) error {
		var err error
		data, err = s.store.ReadFile(ctx, name)
		return err
	})
	return data, err
}

func (s *Store) do(ctx context.Context, name string, fn func(context.Context) error) error {
	maxRetries := s.config.GetMaxRetries()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err

		if attempt < maxRetries {
			backoff := s.calculateBackoff(attempt)
			s.logger.Warn("store operation failed, retrying",
				"file", name, "attempt", attempt+1, "backoff", backoff, "error", err)
			if sleepErr := s.sleep(ctx, backoff); sleepErr != nil {
				return sleepErr
			}
		}
	}

	if maxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("failed after %d attempts: %w", maxRetries+1, lastErr)
}

func retryable(err error) bool {
	return !errors.Is(err, writer.ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// calculateBackoff computes the backoff duration for a given attempt using exponential backoff.
func (s *Store) calculateBackoff(attempt int) time.Duration {
	initialDelay := s.config.GetInitialDelay()
	maxDelay := s.config.GetMaxDelay()
	multiplier := s.config.GetMultiplier()

	delay := float64(initialDelay) * math.Pow(multiplier, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}

	return addJitter(time.Duration(delay))
}

// addJitter adds +/- 25% random jitter so parallel writers do not retry in lockstep.
func addJitter(duration time.Duration) time.Duration {
	if duration == 0 {
		return 0
	}

	jitterRange := float64(duration) * jitterPercent
	jitter := (rand.Float64()*2.0 - 1.0) * jitterRange

	result := float64(duration) + jitter
	if result < 0 {
		return 0
	}
	return time.Duration(result)
}

// sleep waits for the specified duration or until context is cancelled.
func (s *Store) sleep(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
