package interfaces

import (
	"context"
	"time"

	"github.com/quantpair/market-data-pipeline/pkg/marketdata"
)

// TickWriter is the write half of the durable tick store. There is exactly
// one writer in the process (the persister); inserts must be idempotent on
// the (instrument, trade id) key.
type TickWriter interface {
	InsertBatch(ctx context.Context, ticks []marketdata.Tick) (inserted int64, err error)
}

// TickReader is the read-only view of the durable tick store used by the
// analytics engine. Readers may run concurrently with the writer.
type TickReader interface {
	ListByInstrument(ctx context.Context, instrument string, from, to int64) ([]marketdata.Tick, error)
	Latest(ctx context.Context, instrument string) (*marketdata.Tick, error)
}

type CacheClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Close() error
}

type PubsubClient interface {
	Publish(ctx context.Context, channel string, message any) error
	Close() error
}
