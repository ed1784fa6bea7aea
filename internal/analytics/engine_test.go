package analytics

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/quantpair/market-data-pipeline/internal/logger"
	"github.com/quantpair/market-data-pipeline/internal/mockdata"
	"github.com/quantpair/market-data-pipeline/internal/mocks"
)

func TestComputePairStats_RecoversGeneratedRelation(t *testing.T) {
	cfg := mockdata.Config{
		Leader:     "BTCUSDT",
		Follower:   "ETHUSDT",
		Ratio:      2.0,
		BasePrice:  100,
		Volatility: 0.005,
		Noise:      0.05,
	}
	start := int64(1700000000000)
	// 1000 pair samples 10s apart: about 167 one-minute buckets.
	ticks := mockdata.GeneratePair(cfg, 1000, 42, start, 10*time.Second)

	repo := mocks.NewMockTickRepo()
	if _, err := repo.InsertBatch(context.Background(), ticks); err != nil {
		t.Fatalf("seed repo: %v", err)
	}

	engine := NewEngine(repo, logger.NewNoOpLogger())
	stats, err := engine.ComputePairStats(context.Background(), PairRequest{
		InstrumentA:   "ETHUSDT",
		InstrumentB:   "BTCUSDT",
		From:          time.UnixMilli(start),
		To:            time.UnixMilli(start + 1000*10000 + 1),
		Interval:      time.Minute,
		RollingWindow: 30,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if math.Abs(stats.Beta-cfg.Ratio) > 0.05 {
		t.Errorf("beta = %v, want ~%v", stats.Beta, cfg.Ratio)
	}
	if stats.R2 < 0.99 {
		t.Errorf("r2 = %v, generated pair should fit almost perfectly", stats.R2)
	}

	// The spread is the regression residual, so its mean must be near zero.
	var sum float64
	for _, s := range stats.Spread {
		sum += s
	}
	if mean := sum / float64(len(stats.Spread)); math.Abs(mean) > 0.01 {
		t.Errorf("spread mean = %v, want ~0", mean)
	}

	if len(stats.Times) < 150 {
		t.Errorf("expected ~167 shared buckets, got %d", len(stats.Times))
	}
	wantZ := len(stats.Times) - stats.RollingWindow + 1
	if len(stats.ZScore) != wantZ {
		t.Errorf("z-score points = %d, want %d", len(stats.ZScore), wantZ)
	}
	if stats.Stationarity == nil {
		t.Fatal("expected a stationarity result for a long series")
	}
	if p := stats.Stationarity.PValue; p < 0 || p > 1 {
		t.Errorf("adf p = %v outside [0,1]", p)
	}

	rows := stats.Rows()
	if len(rows) != len(stats.Times) {
		t.Fatalf("rows = %d, want %d", len(rows), len(stats.Times))
	}
	// Pre-warm-up rows carry the undefined sentinel in the z column.
	if !IsUndefined(rows[0].ZScore) {
		t.Errorf("first row z = %v, want undefined", rows[0].ZScore)
	}
	latest := stats.LatestZScore()
	if IsUndefined(latest) {
		t.Error("expected a defined latest z-score after warm-up")
	}
	if last := rows[len(rows)-1]; !IsUndefined(last.ZScore) && last.ZScore != latest {
		t.Error("LatestZScore disagrees with the last defined row")
	}
}

func TestComputePairStats_ShortWindowSkipsStationarity(t *testing.T) {
	cfg := mockdata.Config{
		Leader:     "BTCUSDT",
		Follower:   "ETHUSDT",
		Ratio:      1.5,
		BasePrice:  50,
		Volatility: 0.01,
		Noise:      0.02,
	}
	start := int64(1700000000000)
	// 10 one-minute buckets: enough to regress, too few for the ADF test.
	ticks := mockdata.GeneratePair(cfg, 60, 9, start, 10*time.Second)

	repo := mocks.NewMockTickRepo()
	if _, err := repo.InsertBatch(context.Background(), ticks); err != nil {
		t.Fatalf("seed repo: %v", err)
	}

	engine := NewEngine(repo, logger.NewNoOpLogger())
	stats, err := engine.ComputePairStats(context.Background(), PairRequest{
		InstrumentA:   "ETHUSDT",
		InstrumentB:   "BTCUSDT",
		From:          time.UnixMilli(start),
		To:            time.UnixMilli(start + 60*10000 + 1),
		Interval:      time.Minute,
		RollingWindow: 5,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if stats.Stationarity != nil {
		t.Error("stationarity should be skipped, not computed, on a short series")
	}
	if len(stats.Times) == 0 {
		t.Error("base series must still be produced")
	}
}

func TestComputePairStats_NoOverlapFailsRegression(t *testing.T) {
	repo := mocks.NewMockTickRepo()
	engine := NewEngine(repo, logger.NewNoOpLogger())

	_, err := engine.ComputePairStats(context.Background(), PairRequest{
		InstrumentA:   "ETHUSDT",
		InstrumentB:   "BTCUSDT",
		From:          time.UnixMilli(1700000000000),
		To:            time.UnixMilli(1700003600000),
		Interval:      time.Minute,
		RollingWindow: 10,
	})
	if err == nil {
		t.Fatal("expected error when no shared buckets exist")
	}
}
