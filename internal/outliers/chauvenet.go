// Package outliers implements outlier rejection heuristics over 1-D samples.
//
// Every function returns a keep-mask (true = retained) or a conditioned copy;
// inputs are never modified. NaN values are skipped by the statistics.
package outliers

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrEmptyInput is returned when no finite values are available.
var ErrEmptyInput = errors.New("no finite values")

// DefaultChauvenetThreshold is the classic 0.5 expected-count criterion.
const DefaultChauvenetThreshold = 0.5

// Chauvenet marks points whose two-tailed normal probability is at least
// threshold/(2N). A threshold <= 0 uses DefaultChauvenetThreshold.
func Chauvenet(x []float64, threshold float64) ([]bool, error) {
	if threshold <= 0 {
		threshold = DefaultChauvenetThreshold
	}
	vals := finite(x)
	if len(vals) == 0 {
		return nil, ErrEmptyInput
	}
	mean, std := stat.PopMeanStdDev(vals, nil)
	criterion := threshold / (2 * float64(len(vals)))
	keep := make([]bool, len(x))
	for i, v := range x {
		if math.IsNaN(v) {
			continue
		}
		if std == 0 {
			keep[i] = true
			continue
		}
		z := math.Abs(v-mean) / std
		keep[i] = math.Erfc(z/math.Sqrt2) >= criterion
	}
	return keep, nil
}

func finite(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Apply replaces rejected entries with NaN and returns the copy.
func Apply(x []float64, keep []bool) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if i < len(keep) && keep[i] {
			out[i] = v
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}
