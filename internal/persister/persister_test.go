package persister

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/quantpair/market-data-pipeline/internal/config"
	"github.com/quantpair/market-data-pipeline/internal/logger"
	"github.com/quantpair/market-data-pipeline/internal/mocks"
	"github.com/quantpair/market-data-pipeline/internal/queue"
	"github.com/quantpair/market-data-pipeline/pkg/marketdata"
)

func testConfig() *config.Config {
	return &config.Config{
		PersistBatchSize:  4,
		PersistFlushEvery: 20 * time.Millisecond,
		PopTimeout:        10 * time.Millisecond,
	}
}

func tick(instrument string, id int64, price float64) marketdata.Tick {
	return marketdata.Tick{
		Instrument: instrument,
		Price:      price,
		Quantity:   1,
		TradeID:    id,
		Timestamp:  1700000000000 + id,
	}
}

func TestPersister_BatchesAndDeduplicates(t *testing.T) {
	q := queue.NewBoundedEventQueue(64, config.QueuePolicyBlock)
	repo := mocks.NewMockTickRepo()
	cache := mocks.NewMockCacheClient()
	pubsub := mocks.NewMockPubsubClient()
	p := NewPersister(q, repo, cache, pubsub, testConfig(), logger.NewNoOpLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	pushCtx := context.Background()
	for i := int64(1); i <= 8; i++ {
		if err := q.Push(pushCtx, tick("BTCUSDT", i, 100+float64(i))); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	// Redeliveries of ids 1 and 2, as after a feed reconnect.
	_ = q.Push(pushCtx, tick("BTCUSDT", 1, 101))
	_ = q.Push(pushCtx, tick("BTCUSDT", 2, 102))

	waitFor(t, time.Second, func() bool { return repo.Count("BTCUSDT") == 8 })

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if got := repo.Count("BTCUSDT"); got != 8 {
		t.Errorf("expected 8 unique ticks stored, got %d", got)
	}
	if _, ok := cache.Get("price:BTCUSDT"); !ok {
		t.Error("latest price was not mirrored to cache")
	}
	if msgs := pubsub.Messages("price:BTCUSDT"); len(msgs) == 0 {
		t.Error("latest price was not published")
	}
}

func TestPersister_DrainsQueueOnShutdown(t *testing.T) {
	q := queue.NewBoundedEventQueue(64, config.QueuePolicyBlock)
	repo := mocks.NewMockTickRepo()
	p := NewPersister(q, repo, nil, nil, testConfig(), logger.NewNoOpLogger())

	for i := int64(1); i <= 10; i++ {
		if err := q.Push(context.Background(), tick("ETHUSDT", i, 3000)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	// Context is already cancelled: Run must still drain everything queued.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if got := repo.Count("ETHUSDT"); got != 10 {
		t.Errorf("expected 10 ticks drained on shutdown, got %d", got)
	}
	if q.Len() != 0 {
		t.Errorf("queue not empty after shutdown: %d", q.Len())
	}
}

func TestPersister_RetriesTransientWriteFailures(t *testing.T) {
	q := queue.NewBoundedEventQueue(64, config.QueuePolicyBlock)
	repo := mocks.NewMockTickRepo()
	repo.FailNext(2, errors.New("connection reset"))
	p := NewPersister(q, repo, nil, nil, testConfig(), logger.NewNoOpLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for i := int64(1); i <= 4; i++ {
		if err := q.Push(context.Background(), tick("BTCUSDT", i, 100)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	waitFor(t, 5*time.Second, func() bool { return repo.Count("BTCUSDT") == 4 })

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run returned error after recoverable failure: %v", err)
	}
}

// deadRepo models a store that is down for good.
type deadRepo struct{}

func (deadRepo) InsertBatch(ctx context.Context, ticks []marketdata.Tick) (int64, error) {
	return 0, backoff.Permanent(errors.New("database is gone"))
}

func TestPersister_EscalatesExhaustedWrites(t *testing.T) {
	q := queue.NewBoundedEventQueue(64, config.QueuePolicyBlock)
	p := NewPersister(q, deadRepo{}, nil, nil, testConfig(), logger.NewNoOpLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for i := int64(1); i <= 4; i++ {
		if err := q.Push(context.Background(), tick("BTCUSDT", i, 100)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected fatal error from exhausted writes")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("persister did not escalate the write failure")
	}
}

func TestPersister_RewritesBatchWhenCancelledMidRetry(t *testing.T) {
	q := queue.NewBoundedEventQueue(64, config.QueuePolicyBlock)
	repo := mocks.NewMockTickRepo()
	// First write attempt fails; the retry backoff then outlives the run
	// context, so the retry loop aborts with the context's error.
	repo.FailNext(1, errors.New("connection reset"))
	p := NewPersister(q, repo, nil, nil, testConfig(), logger.NewNoOpLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for i := int64(1); i <= 4; i++ {
		if err := q.Push(context.Background(), tick("BTCUSDT", i, 100)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	// Cancel while the flush is sleeping between attempts (first retry
	// delay is ~100ms).
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("shutdown during retry must not be fatal: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("persister did not exit after cancel")
	}

	// The dequeued batch must have been rewritten under the drain's
	// detached deadline, not discarded.
	if got := repo.Count("BTCUSDT"); got != 4 {
		t.Errorf("store has %d ticks, want 4", got)
	}
}

func TestPersister_FlushesPartialBatchOnInterval(t *testing.T) {
	q := queue.NewBoundedEventQueue(64, config.QueuePolicyBlock)
	repo := mocks.NewMockTickRepo()
	p := NewPersister(q, repo, nil, nil, testConfig(), logger.NewNoOpLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// A single tick, well below the batch size.
	if err := q.Push(context.Background(), tick("BTCUSDT", 1, 100)); err != nil {
		t.Fatalf("push: %v", err)
	}

	// The interval flush should persist it without waiting for a full batch.
	waitFor(t, time.Second, func() bool { return repo.Count("BTCUSDT") == 1 })

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run returned error: %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
