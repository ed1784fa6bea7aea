package analytics

import (
	"time"

	"github.com/quantpair/market-data-pipeline/pkg/marketdata"
)

// Resample buckets one instrument's ticks into fixed-width, wall-clock
// aligned OHLCV bars. Bucket boundaries are multiples of interval since the
// epoch, independent of arrival times. Buckets with no trades are omitted,
// not interpolated; callers pairing two instruments must intersect on bucket
// timestamps (see AlignBars). Ticks are expected ordered by (timestamp,
// trade id), which is how the store returns them.
func Resample(ticks []marketdata.Tick, interval time.Duration) []marketdata.Bar {
	if len(ticks) == 0 || interval <= 0 {
		return nil
	}
	width := interval.Milliseconds()
	if width <= 0 {
		return nil
	}

	var bars []marketdata.Bar
	cur := -1 // index of the bar being built
	for _, t := range ticks {
		bucket := t.Timestamp - mod(t.Timestamp, width)
		if cur < 0 || bars[cur].BucketStart != bucket {
			bars = append(bars, marketdata.Bar{
				BucketStart: bucket,
				Open:        t.Price,
				High:        t.Price,
				Low:         t.Price,
				Close:       t.Price,
				Volume:      t.Quantity,
			})
			cur = len(bars) - 1
			continue
		}
		b := &bars[cur]
		if t.Price > b.High {
			b.High = t.Price
		}
		if t.Price < b.Low {
			b.Low = t.Price
		}
		b.Close = t.Price
		b.Volume += t.Quantity
	}
	return bars
}

// mod is a floored modulo, so pre-epoch timestamps still align to bucket
// boundaries below them.
func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// AlignBars intersects two bar series on bucket start, returning the shared
// timestamps and both close-price series. Buckets missing from either side
// are discarded; downstream pair statistics only ever see paired
// observations.
func AlignBars(a, b []marketdata.Bar) (times []int64, closeA, closeB []float64) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].BucketStart < b[j].BucketStart:
			i++
		case a[i].BucketStart > b[j].BucketStart:
			j++
		default:
			times = append(times, a[i].BucketStart)
			closeA = append(closeA, a[i].Close)
			closeB = append(closeB, b[j].Close)
			i++
			j++
		}
	}
	return times, closeA, closeB
}
