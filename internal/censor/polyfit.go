package censor

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrTooFewPoints is returned when a fit has fewer points than it needs.
var ErrTooFewPoints = errors.New("too few points")

// PolyFit returns least-squares coefficients c0..cd of y = c0 + c1*x + ... + cd*x^d.
func PolyFit(x, y []float64, degree int) ([]float64, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("polyfit: length mismatch %d != %d", len(x), len(y))
	}
	if degree < 0 {
		degree = 0
	}
	n := len(x)
	if n < degree+1 {
		return nil, fmt.Errorf("polyfit degree %d with %d points: %w", degree, n, ErrTooFewPoints)
	}

	// Vandermonde matrix, solved by QR
	X := mat.NewDense(n, degree+1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= degree; j++ {
			X.Set(i, j, math.Pow(x[i], float64(j)))
		}
	}
	var qr mat.QR
	qr.Factorize(X)
	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil {
		return nil, fmt.Errorf("polyfit: %w", err)
	}
	out := make([]float64, degree+1)
	for i := range out {
		out[i] = coef.AtVec(i)
	}
	return out, nil
}

// PolyVal evaluates the polynomial with coefficients c (lowest order first) at x.
func PolyVal(c []float64, x float64) float64 {
	v := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		v = v*x + c[i]
	}
	return v
}
