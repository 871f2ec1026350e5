package outliers

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// PeirceDev returns the squared threshold error deviation x² for Peirce's
// criterion, with N observations, n suspected outliers and m model
// parameters, using Gould's fixed-point iteration.
func PeirceDev(N, n, m int) float64 {
	if N <= 1 || n < 1 || n >= N {
		return 0
	}
	nf, Nf, mf := float64(n), float64(N), float64(m)
	q := math.Pow(nf, nf/Nf) * math.Pow(Nf-nf, (Nf-nf)/Nf) / Nf

	rNew, rOld := 1.0, 0.0
	x2 := 0.0
	for math.Abs(rNew-rOld) > Nf*2e-16 {
		ldiv := math.Pow(rNew, nf)
		if ldiv == 0 {
			ldiv = 1e-6
		}
		lambda := math.Pow(math.Pow(q, Nf)/ldiv, 1/(Nf-nf))
		x2 = 1 + (Nf-mf-nf)/nf*(1-lambda*lambda)
		if x2 < 0 {
			return 0
		}
		rOld = rNew
		rNew = math.Exp((x2-1)/2) * math.Erfc(math.Sqrt(x2)/math.Sqrt2)
	}
	return x2
}

// Peirce applies Peirce's criterion to x for a model with m parameters
// (m = 1 for a sample mean). The suspected count grows until the number of
// rejections stops exceeding it.
func Peirce(x []float64, m int) ([]bool, error) {
	if m < 1 {
		m = 1
	}
	vals := finite(x)
	N := len(vals)
	if N == 0 {
		return nil, ErrEmptyInput
	}
	mean, std := stat.PopMeanStdDev(vals, nil)

	keep := make([]bool, len(x))
	for i, v := range x {
		keep[i] = !math.IsNaN(v) && !math.IsInf(v, 0)
	}
	if std == 0 || N < 3 {
		return keep, nil
	}

	// Limits shrink as n grows, so the last limit rejects a superset of the earlier ones.
	limit := math.Inf(1)
	for n := 1; n < N; {
		x2 := PeirceDev(N, n, m)
		if x2 <= 0 {
			break
		}
		limit = math.Sqrt(x2) * std
		rejected := 0
		for _, v := range vals {
			if math.Abs(v-mean) > limit {
				rejected++
			}
		}
		if rejected < n {
			break
		}
		n = rejected + 1
	}
	for i, v := range x {
		if keep[i] && math.Abs(v-mean) > limit {
			keep[i] = false
		}
	}
	return keep, nil
}
