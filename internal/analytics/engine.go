package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quantpair/market-data-pipeline/internal/logger"
	"github.com/quantpair/market-data-pipeline/pkg/interfaces"
	"github.com/quantpair/market-data-pipeline/pkg/marketdata"
)

// Engine computes pair-trading statistics from the durable tick store. Every
// method is a pure transformation for an explicit window and instrument set;
// the engine holds no mutable state and is safe to call concurrently with
// ingestion, which it never writes to.
type Engine struct {
	repo   interfaces.TickReader
	logger *logger.Logger
}

func NewEngine(repo interfaces.TickReader, log *logger.Logger) *Engine {
	return &Engine{
		repo:   repo,
		logger: log.Component("analytics"),
	}
}

// Load returns all persisted ticks for the given instruments within
// [from, to), ordered by timestamp per instrument.
func (e *Engine) Load(ctx context.Context, instruments []string, from, to time.Time) (map[string][]marketdata.Tick, error) {
	out := make(map[string][]marketdata.Tick, len(instruments))
	for _, instrument := range instruments {
		ticks, err := e.repo.ListByInstrument(ctx, instrument, from.UnixMilli(), to.UnixMilli())
		if err != nil {
			return nil, fmt.Errorf("loading ticks for %s: %w", instrument, err)
		}
		out[instrument] = ticks
	}
	return out, nil
}

// PairRequest describes one pair-statistics computation.
type PairRequest struct {
	InstrumentA   string
	InstrumentB   string
	From, To      time.Time
	Interval      time.Duration
	RollingWindow int
}

// ComputePairStats runs the full pair pipeline: load both instruments'
// ticks, resample to bars, align on shared buckets, regress A on B, then
// derive spread, z-score, rolling correlation and the stationarity test.
// A too-short spread for the stationarity test is not fatal to the rest of
// the result; Stationarity is left nil in that case.
func (e *Engine) ComputePairStats(ctx context.Context, req PairRequest) (*PairStats, error) {
	ticks, err := e.Load(ctx, []string{req.InstrumentA, req.InstrumentB}, req.From, req.To)
	if err != nil {
		return nil, err
	}

	barsA := Resample(ticks[req.InstrumentA], req.Interval)
	barsB := Resample(ticks[req.InstrumentB], req.Interval)
	times, closeA, closeB := AlignBars(barsA, barsB)

	e.logger.Debug("pair series aligned",
		logger.String("instrument_a", req.InstrumentA),
		logger.String("instrument_b", req.InstrumentB),
		logger.Int("bars_a", len(barsA)),
		logger.Int("bars_b", len(barsB)),
		logger.Int("paired_buckets", len(times)))

	beta, alpha, r2, err := HedgeRatio(closeA, closeB)
	if err != nil {
		return nil, err
	}

	spread := Spread(closeA, closeB, beta, alpha)

	ps := &PairStats{
		InstrumentA:   req.InstrumentA,
		InstrumentB:   req.InstrumentB,
		Interval:      req.Interval,
		RollingWindow: req.RollingWindow,
		Beta:          beta,
		Alpha:         alpha,
		R2:            r2,
		Times:         times,
		CloseA:        closeA,
		CloseB:        closeB,
		Spread:        spread,
		ZScore:        ZScore(times, spread, req.RollingWindow),
		Correlation:   RollingCorrelation(times, closeA, closeB, req.RollingWindow),
	}

	adf, err := StationarityTest(spread)
	if err != nil {
		var insufficient *InsufficientDataError
		if !errors.As(err, &insufficient) {
			return nil, err
		}
		e.logger.Debug("stationarity test skipped", logger.Error(err))
	} else {
		ps.Stationarity = adf
	}

	return ps, nil
}
