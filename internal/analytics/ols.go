package analytics

import (
	"fmt"
	"math"
)

// HedgeRatio fits close prices of A on close prices of B by ordinary least
// squares with an intercept: priceA = beta*priceB + alpha. Pairs containing
// a non-finite value are removed before fitting. Returns beta, alpha and R².
func HedgeRatio(closeA, closeB []float64) (beta, alpha, r2 float64, err error) {
	if len(closeA) != len(closeB) {
		return 0, 0, 0, fmt.Errorf("series length mismatch: %d vs %d", len(closeA), len(closeB))
	}

	var xs, ys []float64
	for i := range closeA {
		if isFinite(closeA[i]) && isFinite(closeB[i]) {
			ys = append(ys, closeA[i])
			xs = append(xs, closeB[i])
		}
	}
	if len(ys) < 2 {
		return 0, 0, 0, &InsufficientDataError{Op: "hedge ratio", Need: 2, Got: len(ys)}
	}

	n := float64(len(ys))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var sxx, sxy, syy float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return 0, 0, 0, fmt.Errorf("hedge ratio: regressor series is constant")
	}

	beta = sxy / sxx
	alpha = meanY - beta*meanX
	if syy == 0 {
		// Dependent series is constant; the fit is exact and R² degenerate.
		r2 = 1
	} else {
		r2 = (sxy * sxy) / (sxx * syy)
	}
	return beta, alpha, r2, nil
}

// Spread computes the pointwise residual priceA − (beta*priceB + alpha) over
// two aligned series.
func Spread(closeA, closeB []float64, beta, alpha float64) []float64 {
	n := len(closeA)
	if len(closeB) < n {
		n = len(closeB)
	}
	spread := make([]float64, n)
	for i := 0; i < n; i++ {
		spread[i] = closeA[i] - (beta*closeB[i] + alpha)
	}
	return spread
}

// AlertCheck reports whether the current z-score breaches the alert
// threshold. Undefined z-scores never alert.
func AlertCheck(currentZ, threshold float64) bool {
	if math.IsNaN(currentZ) {
		return false
	}
	return math.Abs(currentZ) >= threshold
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// olsFit solves a multiple regression y = X·coef + resid via the normal
// equations. X rows are observations; the caller includes the constant
// column. Returns the coefficients, the coefficient standard errors and the
// sum of squared residuals.
func olsFit(y []float64, x [][]float64) (coef, stderr []float64, ssr float64, err error) {
	n := len(y)
	if n == 0 || len(x) != n {
		return nil, nil, 0, fmt.Errorf("ols: bad dimensions")
	}
	k := len(x[0])
	if n <= k {
		return nil, nil, 0, &InsufficientDataError{Op: "ols", Need: k + 1, Got: n}
	}

	// Build X'X and X'y.
	xtx := make([][]float64, k)
	xty := make([]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	for r := 0; r < n; r++ {
		row := x[r]
		for i := 0; i < k; i++ {
			xty[i] += row[i] * y[r]
			for j := i; j < k; j++ {
				xtx[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 1; i < k; i++ {
		for j := 0; j < i; j++ {
			xtx[i][j] = xtx[j][i]
		}
	}

	inv, err := invertSymmetric(xtx)
	if err != nil {
		return nil, nil, 0, err
	}

	coef = make([]float64, k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			coef[i] += inv[i][j] * xty[j]
		}
	}

	for r := 0; r < n; r++ {
		fit := 0.0
		for i := 0; i < k; i++ {
			fit += x[r][i] * coef[i]
		}
		resid := y[r] - fit
		ssr += resid * resid
	}

	s2 := ssr / float64(n-k)
	stderr = make([]float64, k)
	for i := 0; i < k; i++ {
		stderr[i] = math.Sqrt(s2 * inv[i][i])
	}
	return coef, stderr, ssr, nil
}

// invertSymmetric inverts a small symmetric positive-definite matrix by
// Gauss-Jordan elimination with partial pivoting. The matrices here are tiny
// (lag order + 2 at most), so numerical sophistication beyond pivoting is
// unnecessary.
func invertSymmetric(m [][]float64) ([][]float64, error) {
	k := len(m)
	a := make([][]float64, k)
	inv := make([][]float64, k)
	for i := 0; i < k; i++ {
		a[i] = append([]float64(nil), m[i]...)
		inv[i] = make([]float64, k)
		inv[i][i] = 1
	}

	for col := 0; col < k; col++ {
		pivot := col
		for r := col + 1; r < k; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("ols: singular design matrix")
		}
		a[col], a[pivot] = a[pivot], a[col]
		inv[col], inv[pivot] = inv[pivot], inv[col]

		p := a[col][col]
		for j := 0; j < k; j++ {
			a[col][j] /= p
			inv[col][j] /= p
		}
		for r := 0; r < k; r++ {
			if r == col {
				continue
			}
			f := a[r][col]
			if f == 0 {
				continue
			}
			for j := 0; j < k; j++ {
				a[r][j] -= f * a[col][j]
				inv[r][j] -= f * inv[col][j]
			}
		}
	}
	return inv, nil
}
