package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/quantpair/market-data-pipeline/internal/logger"
)

// RetryConfig defines the configuration for the retry mechanism
type RetryConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	MaxElapsedTime      time.Duration
	RandomizationFactor float64
}

// CacheRetryConfig returns the retry configuration for best-effort Redis
// operations. These are tight: a stale latest-price entry is preferable to
// backpressure on the persister.
func CacheRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     5 * time.Millisecond,
		MaxInterval:         25 * time.Millisecond,
		Multiplier:          2.0,
		MaxElapsedTime:      75 * time.Millisecond,
		RandomizationFactor: 0.3,
	}
}

// WriteRetryConfig returns the retry configuration for durable store writes.
// The elapsed cap bounds how long a batch is retried before the failure is
// escalated as fatal.
func WriteRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         2 * time.Second,
		Multiplier:          2.0,
		MaxElapsedTime:      15 * time.Second,
		RandomizationFactor: 0.3,
	}
}

// RetryableOperation represents an operation that can be retried
type RetryableOperation func(ctx context.Context) error

// RetryWithConfig retries the given operation with the specified configuration
func RetryWithConfig(ctx context.Context, op RetryableOperation, cfg RetryConfig, log *logger.Logger) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.Multiplier = cfg.Multiplier
	b.MaxElapsedTime = cfg.MaxElapsedTime
	b.RandomizationFactor = cfg.RandomizationFactor

	b.Reset()

	var attempt int
	start := time.Now()

	err := backoff.RetryNotify(
		func() error {
			attempt++

			// Check context before attempting operation
			if ctx.Err() != nil {
				log.Debug("retry abandoned due to context cancellation",
					logger.Error(ctx.Err()),
					logger.Int("attempts", attempt))
				return backoff.Permanent(ctx.Err())
			}

			if err := op(ctx); err != nil {
				return err
			}
			return nil
		},
		b,
		func(err error, d time.Duration) {
			log.Warn("retrying operation after failure",
				logger.Error(err),
				logger.Int("attempt", attempt),
				logger.Duration("backoff_duration", d),
				logger.Duration("elapsed", time.Since(start)))
		},
	)

	if err != nil {
		log.Error("all retry attempts failed",
			logger.Error(err),
			logger.Int("attempts", attempt),
			logger.Duration("total_duration", time.Since(start)))
	} else if attempt > 1 {
		log.Info("operation succeeded after retries",
			logger.Int("attempts", attempt),
			logger.Duration("total_duration", time.Since(start)))
	}

	return err
}

// RetryWithDefault retries the operation with the cache retry configuration
func RetryWithDefault(ctx context.Context, op RetryableOperation, log *logger.Logger) error {
	return RetryWithConfig(ctx, op, CacheRetryConfig(), log)
}
