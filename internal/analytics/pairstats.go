package analytics

import "time"

// PairStats is the derived result set for one ordered instrument pair over
// one window. Ephemeral: recomputed per request, never stored.
type PairStats struct {
	InstrumentA   string
	InstrumentB   string
	Interval      time.Duration
	RollingWindow int

	Beta  float64
	Alpha float64
	R2    float64

	// Bucket-aligned base series, one entry per shared bucket.
	Times  []int64
	CloseA []float64
	CloseB []float64
	Spread []float64

	// Derived series; these start after their warm-up window.
	ZScore      []SeriesPoint
	Correlation []SeriesPoint

	// Nil when the spread was too short for the test.
	Stationarity *ADFResult
}

// Row is one record of the flat tabular form consumed by external download/
// visualization tooling. ZScore is the undefined sentinel before its warm-up
// window completes.
type Row struct {
	Timestamp int64
	PriceA    float64
	PriceB    float64
	Spread    float64
	ZScore    float64
}

// Rows flattens the pair series into per-bucket rows, joining the z-score
// series on bucket timestamp.
func (ps *PairStats) Rows() []Row {
	zByTime := make(map[int64]float64, len(ps.ZScore))
	for _, p := range ps.ZScore {
		zByTime[p.Time] = p.Value
	}

	rows := make([]Row, len(ps.Times))
	for i, ts := range ps.Times {
		z, ok := zByTime[ts]
		if !ok {
			z = Undefined()
		}
		rows[i] = Row{
			Timestamp: ts,
			PriceA:    ps.CloseA[i],
			PriceB:    ps.CloseB[i],
			Spread:    ps.Spread[i],
			ZScore:    z,
		}
	}
	return rows
}

// LatestZScore returns the most recent defined z-score, or the undefined
// sentinel if none exists yet.
func (ps *PairStats) LatestZScore() float64 {
	for i := len(ps.ZScore) - 1; i >= 0; i-- {
		if !IsUndefined(ps.ZScore[i].Value) {
			return ps.ZScore[i].Value
		}
	}
	return Undefined()
}
