// Package cluster groups map pixels by their analyte vectors (k-means,
// fuzzy c-means) and reduces dimensionality with PCA.
package cluster

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"runtime"
	"sync"
)

var (
	ErrEmptyInput = errors.New("input data cannot be empty")
	ErrBadK       = errors.New("number of clusters must be in [1, rows]")
	ErrRagged     = errors.New("rows have different lengths")
)

// KMeans partitions rows into K clusters with k-means++ seeding.
type KMeans struct {
	K         int
	MaxIter   int
	Seed      int64
	Centroids [][]float64
	Inertia   float64 // sum of squared distances to the nearest centroid
	Iter      int
}

// NewKMeans returns a model with K clusters.
func NewKMeans(k, maxIter int, seed int64) *KMeans {
	if maxIter <= 0 {
		maxIter = 300
	}
	return &KMeans{K: k, MaxIter: maxIter, Seed: seed}
}

func validate(X [][]float64, k int) (int, int, error) {
	if len(X) == 0 || len(X[0]) == 0 {
		return 0, 0, ErrEmptyInput
	}
	n, p := len(X), len(X[0])
	for _, row := range X {
		if len(row) != p {
			return 0, 0, ErrRagged
		}
	}
	if k < 1 || k > n {
		return 0, 0, ErrBadK
	}
	return n, p, nil
}

// Fit runs Lloyd iterations until assignments stop changing or MaxIter is
// reached, and returns the final labels.
func (m *KMeans) Fit(ctx context.Context, X [][]float64) ([]int, error) {
	n, p, err := validate(X, m.K)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(m.Seed))
	m.Centroids = seedPlusPlus(X, m.K, rng)

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}
	for m.Iter = 0; m.Iter < m.MaxIter; m.Iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		changed := assignNearest(X, m.Centroids, assign)

		sums := make([][]float64, m.K)
		counts := make([]int, m.K)
		for k := range sums {
			sums[k] = make([]float64, p)
		}
		for i, k := range assign {
			counts[k]++
			for j := 0; j < p; j++ {
				sums[k][j] += X[i][j]
			}
		}
		for k := range sums {
			if counts[k] == 0 {
				continue // empty cluster keeps its centroid
			}
			for j := 0; j < p; j++ {
				m.Centroids[k][j] = sums[k][j] / float64(counts[k])
			}
		}
		if !changed {
			break
		}
	}
	m.Inertia = 0
	for i, k := range assign {
		m.Inertia += euclidSquared(X[i], m.Centroids[k])
	}
	return assign, nil
}

// Predict assigns each row to its nearest centroid.
func (m *KMeans) Predict(X [][]float64) ([]int, error) {
	if len(m.Centroids) == 0 {
		return nil, errors.New("model is not fitted")
	}
	if len(X) == 0 {
		return nil, ErrEmptyInput
	}
	for _, row := range X {
		if len(row) != len(m.Centroids[0]) {
			return nil, errors.New("feature count mismatch between input data and model centroids")
		}
	}
	out := make([]int, len(X))
	for i := range out {
		out[i] = -1
	}
	assignNearest(X, m.Centroids, out)
	return out, nil
}

// assignNearest updates assign in place across GOMAXPROCS workers and
// reports whether any label changed.
func assignNearest(X, centroids [][]float64, assign []int) bool {
	n := len(X)
	workers := runtime.GOMAXPROCS(0)
	rowsPerWorker := (n + workers - 1) / workers
	changed := make([]bool, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		end := min(start+rowsPerWorker, n)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				best, bestD := 0, math.MaxFloat64
				for k, c := range centroids {
					if d := euclidSquared(X[i], c); d < bestD {
						best, bestD = k, d
					}
				}
				if assign[i] != best {
					changed[w] = true
					assign[i] = best
				}
			}
		}(w, start, end)
	}
	wg.Wait()
	for _, c := range changed {
		if c {
			return true
		}
	}
	return false
}

// seedPlusPlus picks initial centroids with probability proportional to the
// squared distance from the nearest already chosen centroid.
func seedPlusPlus(X [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(X)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), X[rng.Intn(n)]...))
	distSq := make([]float64, n)
	for len(centroids) < k {
		total := 0.0
		for i, x := range X {
			d := math.MaxFloat64
			for _, c := range centroids {
				d = math.Min(d, euclidSquared(x, c))
			}
			distSq[i] = d
			total += d
		}
		next := n - 1
		if total == 0 {
			next = rng.Intn(n)
		} else {
			r := rng.Float64() * total
			cum := 0.0
			for i, d := range distSq {
				cum += d
				if cum >= r {
					next = i
					break
				}
			}
		}
		centroids = append(centroids, append([]float64(nil), X[next]...))
	}
	return centroids
}

func euclidSquared(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
