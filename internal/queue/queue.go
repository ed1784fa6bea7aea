package queue

import (
	"context"
	"time"

	"github.com/quantpair/market-data-pipeline/internal/config"
	"github.com/quantpair/market-data-pipeline/internal/metrics"
	"github.com/quantpair/market-data-pipeline/pkg/marketdata"
)

// BoundedEventQueue is the single hand-off buffer between the stream
// connectors (many producers) and the persister (one consumer). It is a
// global FIFO over arrival order; no ordering is promised across
// instruments, and none is needed downstream.
//
// The full-queue policy is fixed at construction:
//
//   - Block (default): Push waits for capacity, so every accepted tick
//     reaches the consumer. Producers stall, which in turn stalls their
//     websocket read loops; the upstream feed buffers meanwhile.
//   - DropOldest: Push evicts the oldest queued tick to admit the new one.
//     Bounded staleness under sustained overload, at the cost of losing the
//     evicted ticks entirely.
type BoundedEventQueue struct {
	ch     chan marketdata.Tick
	policy config.QueuePolicy
}

func NewBoundedEventQueue(capacity int, policy config.QueuePolicy) *BoundedEventQueue {
	metrics.QueueCapacity.Set(float64(capacity))
	return &BoundedEventQueue{
		ch:     make(chan marketdata.Tick, capacity),
		policy: policy,
	}
}

// Push enqueues a tick according to the configured policy. Under the Block
// policy the call suspends until capacity is available or ctx is cancelled;
// under DropOldest it returns promptly, evicting queued ticks as needed.
func (q *BoundedEventQueue) Push(ctx context.Context, tick marketdata.Tick) error {
	if q.policy == config.QueuePolicyBlock {
		select {
		case q.ch <- tick:
			metrics.QueueDepth.Set(float64(len(q.ch)))
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		select {
		case q.ch <- tick:
			metrics.QueueDepth.Set(float64(len(q.ch)))
			return nil
		default:
		}

		// Full: evict the oldest entry and try again. The consumer may have
		// raced us to it, in which case the next send attempt succeeds anyway.
		select {
		case <-q.ch:
			metrics.QueueEvictedTotal.Inc()
		default:
		}
	}
}

// Pop removes and returns the oldest queued tick, waiting up to timeout.
// The second return value is false if the wait timed out, so the consumer can
// interleave shutdown checks with consumption.
func (q *BoundedEventQueue) Pop(timeout time.Duration) (marketdata.Tick, bool) {
	select {
	case tick := <-q.ch:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return tick, true
	default:
	}

	if timeout <= 0 {
		return marketdata.Tick{}, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case tick := <-q.ch:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return tick, true
	case <-timer.C:
		return marketdata.Tick{}, false
	}
}

// TryPop is a non-blocking Pop, used by the consumer to drain opportunistic
// batches after a successful blocking Pop.
func (q *BoundedEventQueue) TryPop() (marketdata.Tick, bool) {
	return q.Pop(0)
}

func (q *BoundedEventQueue) Len() int {
	return len(q.ch)
}

func (q *BoundedEventQueue) Cap() int {
	return cap(q.ch)
}
