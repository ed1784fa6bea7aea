package analytics

import (
	"testing"
	"time"

	"github.com/quantpair/market-data-pipeline/pkg/marketdata"
)

func tickAt(ts int64, price, qty float64) marketdata.Tick {
	return marketdata.Tick{
		Instrument: "BTCUSDT",
		Price:      price,
		Quantity:   qty,
		TradeID:    ts,
		Timestamp:  ts,
	}
}

func TestResample_OHLCVPerBucket(t *testing.T) {
	base := int64(1700000040000) // not bucket-aligned for a 1m interval
	ticks := []marketdata.Tick{
		tickAt(base, 100, 1),
		tickAt(base+1000, 105, 2),
		tickAt(base+5000, 95, 1),
		tickAt(base+10000, 102, 3),
	}

	bars := Resample(ticks, time.Minute)
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	bar := bars[0]
	if bar.BucketStart != 1700000040000-mod(1700000040000, 60000) {
		t.Errorf("bucket start = %d", bar.BucketStart)
	}
	if bar.Open != 100 {
		t.Errorf("open = %v", bar.Open)
	}
	if bar.High != 105 {
		t.Errorf("high = %v", bar.High)
	}
	if bar.Low != 95 {
		t.Errorf("low = %v", bar.Low)
	}
	if bar.Close != 102 {
		t.Errorf("close = %v", bar.Close)
	}
	if bar.Volume != 7 {
		t.Errorf("volume = %v", bar.Volume)
	}
}

func TestResample_EmptyBucketsOmitted(t *testing.T) {
	base := int64(1700000000000) - mod(1700000000000, 60000)
	ticks := []marketdata.Tick{
		tickAt(base+1000, 100, 1),
		// two-minute gap with no trades
		tickAt(base+3*60000+1000, 110, 1),
	}

	bars := Resample(ticks, time.Minute)
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars (gap omitted), got %d", len(bars))
	}
	if bars[0].BucketStart != base {
		t.Errorf("first bucket = %d, want %d", bars[0].BucketStart, base)
	}
	if bars[1].BucketStart != base+3*60000 {
		t.Errorf("second bucket = %d, want %d", bars[1].BucketStart, base+3*60000)
	}
}

func TestResample_Deterministic(t *testing.T) {
	base := int64(1700000000000) - mod(1700000000000, 60000)
	ticks := []marketdata.Tick{
		tickAt(base+1000, 100, 1),
		tickAt(base+2000, 101, 1),
		tickAt(base+61000, 102, 1),
	}

	a := Resample(ticks, time.Minute)
	b := Resample(ticks, time.Minute)
	if len(a) != 2 || len(b) != 2 {
		t.Fatalf("expected 2 bars from both runs, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("bar %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
	if a[0].Open != 100 || a[0].Close != 101 || a[1].Open != 102 {
		t.Errorf("unexpected bars: %+v", a)
	}
}

// barsToTicks renders a bar series back into ticks: open, high, low, close
// in order within each bucket, with the bar's volume on the opening tick.
func barsToTicks(bars []marketdata.Bar) []marketdata.Tick {
	var ticks []marketdata.Tick
	for _, b := range bars {
		ticks = append(ticks,
			tickAt(b.BucketStart, b.Open, b.Volume),
			tickAt(b.BucketStart+1, b.High, 0),
			tickAt(b.BucketStart+2, b.Low, 0),
			tickAt(b.BucketStart+3, b.Close, 0),
		)
	}
	return ticks
}

func TestResample_IdempotentOnBucketedSeries(t *testing.T) {
	base := int64(1700000000000) - mod(1700000000000, 60000)
	ticks := []marketdata.Tick{
		tickAt(base+1000, 100, 1),
		tickAt(base+2000, 107, 2),
		tickAt(base+9000, 95, 1),
		tickAt(base+30000, 103, 3),
		tickAt(base+61000, 104, 2),
		tickAt(base+65000, 99, 1),
		// gap of one empty minute
		tickAt(base+3*60000+5000, 101, 4),
	}

	first := Resample(ticks, time.Minute)
	second := Resample(barsToTicks(first), time.Minute)

	if len(second) != len(first) {
		t.Fatalf("bar counts differ: %d vs %d", len(second), len(first))
	}
	for i := range first {
		if second[i] != first[i] {
			t.Errorf("bucket %d changed on re-resample: %+v vs %+v", i, second[i], first[i])
		}
	}
}

func TestResample_Empty(t *testing.T) {
	if bars := Resample(nil, time.Minute); len(bars) != 0 {
		t.Errorf("expected no bars, got %d", len(bars))
	}
}

func TestAlignBars_IntersectsOnBucketStart(t *testing.T) {
	a := []marketdata.Bar{
		{BucketStart: 60000, Close: 1},
		{BucketStart: 120000, Close: 2},
		{BucketStart: 240000, Close: 4},
	}
	b := []marketdata.Bar{
		{BucketStart: 120000, Close: 20},
		{BucketStart: 180000, Close: 30},
		{BucketStart: 240000, Close: 40},
	}

	times, closeA, closeB := AlignBars(a, b)
	wantTimes := []int64{120000, 240000}
	if len(times) != len(wantTimes) {
		t.Fatalf("expected %d shared buckets, got %d", len(wantTimes), len(times))
	}
	for i := range wantTimes {
		if times[i] != wantTimes[i] {
			t.Errorf("times[%d] = %d, want %d", i, times[i], wantTimes[i])
		}
	}
	if closeA[0] != 2 || closeA[1] != 4 {
		t.Errorf("closeA = %v", closeA)
	}
	if closeB[0] != 20 || closeB[1] != 40 {
		t.Errorf("closeB = %v", closeB)
	}
}

func TestAlignBars_NoOverlap(t *testing.T) {
	a := []marketdata.Bar{{BucketStart: 60000, Close: 1}}
	b := []marketdata.Bar{{BucketStart: 120000, Close: 2}}
	times, _, _ := AlignBars(a, b)
	if len(times) != 0 {
		t.Errorf("expected empty intersection, got %v", times)
	}
}
