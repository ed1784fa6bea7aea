package persister

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/quantpair/market-data-pipeline/internal/config"
	"github.com/quantpair/market-data-pipeline/internal/logger"
	"github.com/quantpair/market-data-pipeline/internal/metrics"
	"github.com/quantpair/market-data-pipeline/internal/queue"
	"github.com/quantpair/market-data-pipeline/internal/utils"
	"github.com/quantpair/market-data-pipeline/pkg/interfaces"
	"github.com/quantpair/market-data-pipeline/pkg/marketdata"
	"golang.org/x/sync/errgroup"
)

const finalFlushTimeout = 30 * time.Second

// Persister is the sole consumer of the event queue and the only writer to
// the durable tick store. Single-writer by construction, so there is no write
// contention to manage. Writes are batched opportunistically and retried with
// backoff; if the store stays unreachable past the retry budget the error is
// returned from Run, which the supervisor treats as fatal.
type Persister struct {
	queue  *queue.BoundedEventQueue
	repo   interfaces.TickWriter
	cache  interfaces.CacheClient  // optional, may be nil
	pubsub interfaces.PubsubClient // optional, may be nil
	logger *logger.Logger

	batchSize  int
	flushEvery time.Duration
	popTimeout time.Duration
}

func NewPersister(
	q *queue.BoundedEventQueue,
	repo interfaces.TickWriter,
	cache interfaces.CacheClient,
	pubsub interfaces.PubsubClient,
	cfg *config.Config,
	log *logger.Logger,
) *Persister {
	return &Persister{
		queue:      q,
		repo:       repo,
		cache:      cache,
		pubsub:     pubsub,
		logger:     log.Component("persister"),
		batchSize:  cfg.PersistBatchSize,
		flushEvery: cfg.PersistFlushEvery,
		popTimeout: cfg.PopTimeout,
	}
}

// Run consumes the queue until ctx is cancelled, then drains whatever is
// still buffered with a final write pass before returning.
func (p *Persister) Run(ctx context.Context) error {
	p.logger.Info("persister starting",
		logger.Int("batch_size", p.batchSize),
		logger.Duration("flush_every", p.flushEvery),
		logger.Duration("pop_timeout", p.popTimeout))

	batch := make([]marketdata.Tick, 0, p.batchSize)
	lastFlush := time.Now()

	for {
		select {
		case <-ctx.Done():
			return p.shutdown(batch)
		default:
		}

		if tick, ok := p.queue.Pop(p.popTimeout); ok {
			batch = append(batch, tick)
			// Drain whatever else is already queued, up to the batch limit,
			// to amortize the write.
			for len(batch) < p.batchSize {
				next, ok := p.queue.TryPop()
				if !ok {
					break
				}
				batch = append(batch, next)
			}
		}

		if len(batch) == 0 {
			continue
		}
		if len(batch) >= p.batchSize || time.Since(lastFlush) >= p.flushEvery {
			if err := p.flush(ctx, batch); err != nil {
				// A flush abandoned because the run context was cancelled is a
				// shutdown, not a store failure: the pending batch goes through
				// the drain's detached deadline instead of being lost.
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return p.shutdown(batch)
				}
				return err
			}
			batch = batch[:0]
			lastFlush = time.Now()
		}
	}
}

// shutdown drains the remaining queued ticks and performs the final write
// pass. The parent context is already cancelled, so writes run under a
// detached deadline.
func (p *Persister) shutdown(batch []marketdata.Tick) error {
	p.logger.Info("persister received shutdown signal, draining queue",
		logger.Int("pending_batch", len(batch)),
		logger.Int("queued", p.queue.Len()))

	flushCtx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
	defer cancel()

	for {
		tick, ok := p.queue.TryPop()
		if !ok {
			break
		}
		batch = append(batch, tick)
		if len(batch) >= p.batchSize {
			if err := p.flush(flushCtx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := p.flush(flushCtx, batch); err != nil {
			return err
		}
	}

	p.logger.Info("persister drained, shutting down")
	return nil
}

// flush writes one batch durably, retrying with backoff. The batch is never
// discarded while retries remain; exhaustion escalates as a fatal error
// because ingestion cannot route around a dead store. On success the latest
// price per instrument is mirrored to Redis, best-effort.
func (p *Persister) flush(ctx context.Context, batch []marketdata.Tick) error {
	var inserted int64

	timer := metrics.NewTimer(metrics.PersistDuration)
	err := utils.RetryWithConfig(ctx, func(ctx context.Context) error {
		n, err := p.repo.InsertBatch(ctx, batch)
		if err != nil {
			metrics.PersistErrorsTotal.Inc()
			return err
		}
		inserted = n
		return nil
	}, utils.WriteRetryConfig(), p.logger)
	timer.ObserveDuration()

	if err != nil {
		return fmt.Errorf("durable write failed after retries, %d ticks at risk: %w", len(batch), err)
	}

	duplicates := int64(len(batch)) - inserted
	metrics.TicksPersistedTotal.Add(float64(inserted))
	metrics.DuplicateTicksTotal.Add(float64(duplicates))
	metrics.PersistBatchesTotal.Inc()
	metrics.PersistBatchSize.Observe(float64(len(batch)))

	p.logger.Debug("batch flushed",
		logger.Int("size", len(batch)),
		logger.Int64("inserted", inserted),
		logger.Int64("duplicates", duplicates))

	p.fanOutLatest(ctx, batch)
	return nil
}

// fanOutLatest mirrors each instrument's most recent price from the batch to
// the Redis cache and pubsub channel. Failures here are logged and dropped;
// the live view is a convenience, not a durability guarantee.
func (p *Persister) fanOutLatest(ctx context.Context, batch []marketdata.Tick) {
	if p.cache == nil && p.pubsub == nil {
		return
	}

	latest := make(map[string]marketdata.Tick)
	for _, tick := range batch {
		if cur, ok := latest[tick.Instrument]; !ok || tick.Timestamp > cur.Timestamp ||
			(tick.Timestamp == cur.Timestamp && tick.TradeID > cur.TradeID) {
			latest[tick.Instrument] = tick
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for instrument, tick := range latest {
		key := fmt.Sprintf("price:%s", instrument)
		price := strconv.FormatFloat(tick.Price, 'f', -1, 64)

		if p.cache != nil {
			g.Go(func() error {
				metrics.RedisSetTotal.Inc()
				timer := metrics.NewTimer(metrics.RedisOperationDuration)
				err := utils.RetryWithDefault(gctx, func(ctx context.Context) error {
					return p.cache.Set(ctx, key, price, 0)
				}, p.logger)
				timer.ObserveDuration()
				if err != nil {
					metrics.RedisSetErrorsTotal.Inc()
					p.logger.Warn("redis SET failed",
						logger.Error(err),
						logger.String("key", key))
				}
				return nil
			})
		}
		if p.pubsub != nil {
			g.Go(func() error {
				metrics.RedisPublishTotal.Inc()
				timer := metrics.NewTimer(metrics.RedisOperationDuration)
				err := utils.RetryWithDefault(gctx, func(ctx context.Context) error {
					return p.pubsub.Publish(ctx, key, price)
				}, p.logger)
				timer.ObserveDuration()
				if err != nil {
					metrics.RedisPublishErrorsTotal.Inc()
					p.logger.Warn("redis PUBLISH failed",
						logger.Error(err),
						logger.String("channel", key))
				}
				return nil
			})
		}
	}
	_ = g.Wait()
}
