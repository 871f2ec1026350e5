package outliers

import (
	"math"
	"sort"
)

// QuantileOptions configures QuantileDiff. Percentiles are in [0,100].
type QuantileOptions struct {
	LowerQuantile float64
	UpperQuantile float64
	DiffLower     float64
	DiffUpper     float64
	// Compositional data cannot be negative; non-positive values become Epsilon.
	Compositional bool
	Epsilon       float64
	// MaxVal caps the output; 0 means no cap.
	MaxVal float64
}

// DefaultQuantileOptions mirrors the defaults used for ppm-scale analyte maps.
func DefaultQuantileOptions() QuantileOptions {
	return QuantileOptions{
		LowerQuantile: 0.05,
		UpperQuantile: 99.5,
		DiffLower:     99,
		DiffUpper:     99,
		Compositional: true,
		Epsilon:       1e-6,
	}
}

// QuantileDiff clips the tails of x in log space. Within each tail beyond the
// quantile thresholds, the first gap between neighbouring sorted values that
// exceeds the difference percentile starts a run that is clipped to the last
// value before the gap. NaNs are passed through.
func QuantileDiff(x []float64, opt QuantileOptions) ([]float64, error) {
	if opt.Epsilon <= 0 {
		opt.Epsilon = 1e-6
	}
	idx := make([]int, 0, len(x))
	for i, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil, ErrEmptyInput
	}

	// log shift
	shift := 0.0
	if !opt.Compositional {
		lo := math.Inf(1)
		for _, i := range idx {
			lo = math.Min(lo, x[i])
		}
		shift = lo - 1
	}
	y := make([]float64, len(idx))
	for k, i := range idx {
		v := x[i]
		if opt.Compositional && v <= 0 {
			v = opt.Epsilon
		}
		y[k] = math.Log10(v - shift)
	}

	order := make([]int, len(y))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool { return y[order[a]] < y[order[b]] })
	sorted := make([]float64, len(y))
	for k, o := range order {
		sorted[k] = y[o]
	}
	diff := make([]float64, len(sorted))
	for k := 1; k < len(sorted); k++ {
		diff[k] = sorted[k] - sorted[k-1]
	}

	lqVal := Percentile(sorted, opt.LowerQuantile)
	uqVal := Percentile(sorted, opt.UpperQuantile)
	gaps := append([]float64(nil), diff...)
	sort.Float64s(gaps)
	dLower := Percentile(gaps, opt.DiffLower)
	dUpper := Percentile(gaps, opt.DiffUpper)

	clipped := append([]float64(nil), sorted...)
	// upper tail: first gap walking up from the quantile
	for k := 1; k < len(sorted); k++ {
		if sorted[k] <= uqVal {
			continue
		}
		if diff[k] > dUpper {
			for j := k; j < len(sorted); j++ {
				clipped[j] = sorted[k-1]
			}
			break
		}
	}
	// lower tail: first gap walking down from the quantile
	for k := len(sorted) - 2; k >= 0; k-- {
		if sorted[k] >= lqVal {
			continue
		}
		if diff[k+1] > dLower {
			for j := 0; j <= k; j++ {
				clipped[j] = sorted[k+1]
			}
			break
		}
	}

	out := append([]float64(nil), x...)
	for k, o := range order {
		v := math.Pow(10, clipped[k]) + shift
		if opt.Compositional && v < opt.Epsilon {
			v = opt.Epsilon
		}
		if opt.MaxVal > 0 && v > opt.MaxVal {
			v = opt.MaxVal
		}
		out[idx[o]] = v
	}
	return out, nil
}

// Percentile returns the p-th percentile (0..100) of sorted data using
// linear interpolation between closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	pos := p / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
