package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/quantpair/market-data-pipeline/internal/analytics"
	"github.com/quantpair/market-data-pipeline/internal/config"
	"github.com/quantpair/market-data-pipeline/internal/logger"
	"github.com/quantpair/market-data-pipeline/internal/storage/postgres"
)

func main() {
	var (
		instrumentA = flag.String("a", "BTCUSDT", "first instrument of the pair (regression target)")
		instrumentB = flag.String("b", "ETHUSDT", "second instrument of the pair (regressor)")
		lookback    = flag.Duration("lookback", 6*time.Hour, "how far back from now to load ticks")
		interval    = flag.Duration("interval", time.Minute, "resampling bucket width")
		rolling     = flag.Int("rolling", 30, "rolling window size in buckets for z-score and correlation")
		threshold   = flag.Float64("threshold", 2.0, "absolute z-score alert threshold")
		csvPath     = flag.String("csv", "", "optional path to write the per-bucket series as CSV")
	)
	flag.Parse()

	log := logger.New()
	defer log.Sync() //nolint:errcheck

	if err := run(log, *instrumentA, *instrumentB, *lookback, *interval, *rolling, *threshold, *csvPath); err != nil {
		log.Error("pairstats failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(log *logger.Logger, a, b string, lookback, interval time.Duration, rolling int, threshold float64, csvPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := config.LoadConfig(os.Getenv, log)
	if err != nil {
		return err
	}

	db, err := postgres.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := postgres.NewTickRepo(db, cfg.PostgresQueryTimeout)
	engine := analytics.NewEngine(repo, log)

	now := time.Now()
	from := now.Add(-lookback)

	count, err := repo.Count(ctx, from.UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("count ticks in window: %w", err)
	}
	fmt.Printf("ticks:       %d in the last %s\n", count, lookback)
	printLatest(ctx, repo, a)
	printLatest(ctx, repo, b)

	stats, err := engine.ComputePairStats(ctx, analytics.PairRequest{
		InstrumentA:   a,
		InstrumentB:   b,
		From:          from,
		To:            now,
		Interval:      interval,
		RollingWindow: rolling,
	})
	if err != nil {
		return err
	}

	printSummary(stats, threshold)

	if csvPath != "" {
		if err := writeCSV(csvPath, stats); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		fmt.Printf("\nwrote %d rows to %s\n", len(stats.Times), csvPath)
	}
	return nil
}

func printLatest(ctx context.Context, repo *postgres.TickRepo, instrument string) {
	tick, err := repo.Latest(ctx, instrument)
	if err != nil {
		fmt.Printf("latest:      %s unavailable (%v)\n", instrument, err)
		return
	}
	if tick == nil {
		fmt.Printf("latest:      %s no ticks stored\n", instrument)
		return
	}
	fmt.Printf("latest:      %s %.8g @ %s\n",
		instrument, tick.Price, time.UnixMilli(tick.Timestamp).UTC().Format(time.RFC3339))
}

func printSummary(stats *analytics.PairStats, threshold float64) {
	fmt.Printf("pair:        %s / %s\n", stats.InstrumentA, stats.InstrumentB)
	fmt.Printf("buckets:     %d @ %s\n", len(stats.Times), stats.Interval)
	fmt.Printf("hedge ratio: beta=%.6f alpha=%.6f r2=%.4f\n", stats.Beta, stats.Alpha, stats.R2)

	if adf := stats.Stationarity; adf != nil {
		fmt.Printf("adf:         stat=%.4f p=%.4f lags=%d nobs=%d\n",
			adf.Statistic, adf.PValue, adf.Lags, adf.NObs)
		keys := make([]string, 0, len(adf.CriticalValues))
		for k := range adf.CriticalValues {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("             crit[%s]=%.4f\n", k, adf.CriticalValues[k])
		}
	} else {
		fmt.Printf("adf:         skipped (series too short)\n")
	}

	z := stats.LatestZScore()
	if analytics.IsUndefined(z) {
		fmt.Printf("z-score:     undefined (window not yet warm)\n")
		return
	}
	fmt.Printf("z-score:     %.4f (threshold %.2f)\n", z, threshold)
	if analytics.AlertCheck(z, threshold) {
		fmt.Printf("ALERT:       |z| exceeds threshold\n")
	}
}

func writeCSV(path string, stats *analytics.PairStats) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"timestamp", "price_a", "price_b", "spread", "zscore"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, row := range stats.Rows() {
		record := []string{
			time.UnixMilli(row.Timestamp).UTC().Format(time.RFC3339),
			formatFloat(row.PriceA),
			formatFloat(row.PriceB),
			formatFloat(row.Spread),
			formatFloat(row.ZScore),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}

// formatFloat renders undefined values as empty cells so downstream tooling
// doesn't choke on NaN literals.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
