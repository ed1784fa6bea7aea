package analytics

import (
	"math"
)

// MinStationarityObservations is the fixed minimum spread length accepted by
// StationarityTest. Below it the regression surface approximations are not
// meaningful.
const MinStationarityObservations = 20

// ADFResult holds the outcome of an augmented Dickey-Fuller unit-root test.
// A strongly negative statistic (small p-value) rejects the unit root, i.e.
// the spread is mean-reverting rather than trending.
type ADFResult struct {
	Statistic      float64
	PValue         float64
	Lags           int
	NObs           int
	CriticalValues map[string]float64
}

// StationarityTest runs an augmented Dickey-Fuller test with a constant term
// on the spread series:
//
//	Δy_t = α + γ·y_{t−1} + Σ β_i·Δy_{t−i} + ε_t
//
// The lag order is chosen by AIC over 0..maxlag (Schwert's rule), holding
// the effective sample fixed across candidates, then the chosen order is
// refit on the maximal sample. The p-value comes from the MacKinnon (1994)
// regression surface; critical values from the MacKinnon (2010)
// finite-sample response surface.
func StationarityTest(series []float64) (*ADFResult, error) {
	clean := make([]float64, 0, len(series))
	for _, v := range series {
		if isFinite(v) {
			clean = append(clean, v)
		}
	}
	n := len(clean)
	if n < MinStationarityObservations {
		return nil, &InsufficientDataError{Op: "stationarity test", Need: MinStationarityObservations, Got: n}
	}

	maxlag := int(math.Floor(12 * math.Pow(float64(n)/100.0, 0.25)))
	if ceiling := (n - 4) / 2; maxlag > ceiling {
		maxlag = ceiling
	}
	if maxlag < 0 {
		maxlag = 0
	}

	diff := make([]float64, n-1)
	for i := range diff {
		diff[i] = clean[i+1] - clean[i]
	}

	// Lag selection on a fixed sample so AIC values are comparable.
	bestLag := 0
	bestAIC := math.Inf(1)
	for lag := 0; lag <= maxlag; lag++ {
		y, x := adfSystem(clean, diff, lag, maxlag)
		_, _, ssr, err := olsFit(y, x)
		if err != nil {
			continue
		}
		nobs := float64(len(y))
		aic := nobs*math.Log(ssr/nobs) + 2*float64(lag+2)
		if aic < bestAIC {
			bestAIC = aic
			bestLag = lag
		}
	}

	// Final regression with the chosen order over the maximal sample.
	y, x := adfSystem(clean, diff, bestLag, bestLag)
	coef, stderr, _, err := olsFit(y, x)
	if err != nil {
		return nil, err
	}
	if stderr[1] == 0 {
		return nil, &InsufficientDataError{Op: "stationarity test", Need: MinStationarityObservations, Got: n}
	}

	stat := coef[1] / stderr[1]
	nobs := len(y)

	return &ADFResult{
		Statistic:      stat,
		PValue:         mackinnonP(stat),
		Lags:           bestLag,
		NObs:           nobs,
		CriticalValues: mackinnonCrit(nobs),
	}, nil
}

// adfSystem builds the dependent and design matrices for the ADF regression
// with the given lag order, starting at observation index start (>= lag).
// Column order: constant, lagged level, lagged differences.
func adfSystem(level, diff []float64, lag, start int) (y []float64, x [][]float64) {
	for i := start; i < len(diff); i++ {
		row := make([]float64, lag+2)
		row[0] = 1
		row[1] = level[i]
		for j := 1; j <= lag; j++ {
			row[1+j] = diff[i-j]
		}
		y = append(y, diff[i])
		x = append(x, row)
	}
	return y, x
}

// MacKinnon (1994) regression surface for the constant-only, single-series
// case. Outside [tauMin, tauMax] the p-value saturates at 0 or 1.
const (
	tauStar = -1.61
	tauMin  = -18.83
	tauMax  = 2.74
)

var (
	tauSmallP = [3]float64{2.1659, 1.4412, 0.038269}
	tauLargeP = [4]float64{1.7339, 0.93202, -0.12745, -0.010368}
)

func mackinnonP(tau float64) float64 {
	if tau > tauMax {
		return 1
	}
	if tau < tauMin {
		return 0
	}
	var z float64
	if tau <= tauStar {
		z = tauSmallP[0] + tauSmallP[1]*tau + tauSmallP[2]*tau*tau
	} else {
		z = tauLargeP[0] + tauLargeP[1]*tau + tauLargeP[2]*tau*tau + tauLargeP[3]*tau*tau*tau
	}
	return normCDF(z)
}

// mackinnonCrit evaluates the MacKinnon (2010) finite-sample response
// surface b0 + b1/N + b2/N² + b3/N³ for the constant-only case.
func mackinnonCrit(nobs int) map[string]float64 {
	surface := map[string][4]float64{
		"1%":  {-3.43035, -6.5393, -16.786, -79.433},
		"5%":  {-2.86154, -2.8903, -4.234, -40.04},
		"10%": {-2.56677, -1.5384, -2.809, 0},
	}
	n := float64(nobs)
	out := make(map[string]float64, len(surface))
	for level, b := range surface {
		out[level] = b[0] + b[1]/n + b[2]/(n*n) + b[3]/(n*n*n)
	}
	return out
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}
