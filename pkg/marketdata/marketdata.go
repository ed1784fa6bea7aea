package marketdata

import (
	"fmt"
	"math"
	"time"
)

// Tick is a single observed trade for one instrument. The pair
// (Instrument, TradeID) identifies a trade globally: the feed may redeliver
// trades after a reconnect, and the persistence layer dedups on that key.
type Tick struct {
	Instrument string
	Price      float64
	Quantity   float64
	TradeID    int64
	Timestamp  int64 // feed-assigned, epoch milliseconds
}

// Time returns the feed timestamp as a time.Time.
func (t Tick) Time() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// Validate checks the invariants a tick must satisfy before it enters the
// pipeline. Anything failing here is dropped at the boundary.
func (t Tick) Validate() error {
	if t.Instrument == "" {
		return fmt.Errorf("tick has no instrument")
	}
	if t.TradeID < 0 {
		return fmt.Errorf("tick %s has negative trade id %d", t.Instrument, t.TradeID)
	}
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0 {
		return fmt.Errorf("tick %s/%d has invalid price %v", t.Instrument, t.TradeID, t.Price)
	}
	if math.IsNaN(t.Quantity) || math.IsInf(t.Quantity, 0) || t.Quantity < 0 {
		return fmt.Errorf("tick %s/%d has invalid quantity %v", t.Instrument, t.TradeID, t.Quantity)
	}
	if t.Timestamp <= 0 {
		return fmt.Errorf("tick %s/%d has invalid timestamp %d", t.Instrument, t.TradeID, t.Timestamp)
	}
	return nil
}

// Bar is an OHLCV aggregate of ticks over the bucket
// [BucketStart, BucketStart+interval). Bars are derived on demand and never
// persisted.
type Bar struct {
	BucketStart int64 // epoch milliseconds, multiple of the bucket width
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
}
