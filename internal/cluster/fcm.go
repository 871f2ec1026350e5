package cluster

import (
	"context"
	"math"
	"math/rand"
)

// FuzzyCMeans is Bezdek's fuzzy c-means. Membership[i][k] is the degree to
// which row i belongs to cluster k; each row sums to 1.
type FuzzyCMeans struct {
	C          int
	M          float64 // fuzziness exponent, > 1
	MaxIter    int
	Tol        float64
	Seed       int64
	Centers    [][]float64
	Membership [][]float64
	Iter       int
	// Objective is the weighted within-cluster sum of squares at exit.
	Objective float64
}

// NewFuzzyCMeans returns a model with the usual defaults m=2, tol=1e-5.
func NewFuzzyCMeans(c int, m float64, maxIter int, seed int64) *FuzzyCMeans {
	if m <= 1 {
		m = 2
	}
	if maxIter <= 0 {
		maxIter = 300
	}
	return &FuzzyCMeans{C: c, M: m, MaxIter: maxIter, Tol: 1e-5, Seed: seed}
}

// Fit iterates center and membership updates until the largest membership
// change drops below Tol. It returns hard labels (argmax membership).
func (f *FuzzyCMeans) Fit(ctx context.Context, X [][]float64) ([]int, error) {
	n, p, err := validate(X, f.C)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(f.Seed))
	u := make([][]float64, n)
	for i := range u {
		u[i] = make([]float64, f.C)
		s := 0.0
		for k := range u[i] {
			u[i][k] = rng.Float64() + 1e-9
			s += u[i][k]
		}
		for k := range u[i] {
			u[i][k] /= s
		}
	}
	centers := make([][]float64, f.C)
	for k := range centers {
		centers[k] = make([]float64, p)
	}
	exp := 2 / (f.M - 1)

	for f.Iter = 0; f.Iter < f.MaxIter; f.Iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// centers
		for k := 0; k < f.C; k++ {
			den := 0.0
			num := centers[k]
			for j := range num {
				num[j] = 0
			}
			for i := 0; i < n; i++ {
				w := math.Pow(u[i][k], f.M)
				den += w
				for j := 0; j < p; j++ {
					num[j] += w * X[i][j]
				}
			}
			if den > 0 {
				for j := range num {
					num[j] /= den
				}
			}
		}
		// memberships
		maxDelta := 0.0
		dist := make([]float64, f.C)
		for i := 0; i < n; i++ {
			exact := -1
			for k := 0; k < f.C; k++ {
				dist[k] = math.Sqrt(euclidSquared(X[i], centers[k]))
				if dist[k] == 0 {
					exact = k
				}
			}
			for k := 0; k < f.C; k++ {
				var v float64
				switch {
				case exact >= 0 && k == exact:
					v = 1
				case exact >= 0:
					v = 0
				default:
					s := 0.0
					for l := 0; l < f.C; l++ {
						s += math.Pow(dist[k]/dist[l], exp)
					}
					v = 1 / s
				}
				maxDelta = math.Max(maxDelta, math.Abs(v-u[i][k]))
				u[i][k] = v
			}
		}
		if maxDelta < f.Tol {
			break
		}
	}

	f.Centers, f.Membership = centers, u
	f.Objective = 0
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		best := 0
		for k := 0; k < f.C; k++ {
			f.Objective += math.Pow(u[i][k], f.M) * euclidSquared(X[i], centers[k])
			if u[i][k] > u[i][best] {
				best = k
			}
		}
		labels[i] = best
	}
	return labels, nil
}
