package analytics

import "math"

// SeriesPoint is one timestamped value of a derived series. Undefined values
// (degenerate variance inside the window) are NaN; see IsUndefined.
type SeriesPoint struct {
	Time  int64
	Value float64
}

// IsUndefined reports whether a series value is the "undefined" sentinel.
// Zero rolling variance is a defined condition, not an error, and it never
// produces an infinity.
func IsUndefined(v float64) bool {
	return math.IsNaN(v)
}

// Undefined is the sentinel for points where a statistic has no defined
// value.
func Undefined() float64 {
	return math.NaN()
}

// ZScore normalizes each spread value by its trailing rolling mean and
// sample standard deviation over window observations, inclusive of the
// current one. Points before a full window exists are omitted, not
// zero-filled. A zero rolling standard deviation yields the undefined
// sentinel at that point.
func ZScore(times []int64, values []float64, window int) []SeriesPoint {
	if window < 2 || len(values) < window || len(times) != len(values) {
		return nil
	}

	out := make([]SeriesPoint, 0, len(values)-window+1)
	for i := window - 1; i < len(values); i++ {
		seg := values[i-window+1 : i+1]
		mean, sd := meanStd(seg)
		v := Undefined()
		if sd > 0 {
			v = (values[i] - mean) / sd
		}
		out = append(out, SeriesPoint{Time: times[i], Value: v})
	}
	return out
}

// RollingCorrelation computes the trailing-window Pearson correlation of two
// aligned series. Same warm-up omission and zero-variance handling as
// ZScore.
func RollingCorrelation(times []int64, a, b []float64, window int) []SeriesPoint {
	if window < 2 || len(a) < window || len(a) != len(b) || len(times) != len(a) {
		return nil
	}

	out := make([]SeriesPoint, 0, len(a)-window+1)
	for i := window - 1; i < len(a); i++ {
		segA := a[i-window+1 : i+1]
		segB := b[i-window+1 : i+1]

		meanA, _ := meanStd(segA)
		meanB, _ := meanStd(segB)

		var saa, sbb, sab float64
		for j := range segA {
			da := segA[j] - meanA
			db := segB[j] - meanB
			saa += da * da
			sbb += db * db
			sab += da * db
		}

		v := Undefined()
		if saa > 0 && sbb > 0 {
			v = sab / math.Sqrt(saa*sbb)
		}
		out = append(out, SeriesPoint{Time: times[i], Value: v})
	}
	return out
}

// meanStd returns the mean and sample standard deviation (n−1 denominator,
// matching the resampled series' statistical conventions) of a window.
func meanStd(seg []float64) (mean, sd float64) {
	n := float64(len(seg))
	var sum float64
	for _, v := range seg {
		sum += v
	}
	mean = sum / n

	var ss float64
	for _, v := range seg {
		d := v - mean
		ss += d * d
	}
	variance := ss / (n - 1)
	if variance <= 0 {
		return mean, 0
	}
	return mean, math.Sqrt(variance)
}
