package cluster

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
)

// Method names accepted by Run.
const (
	MethodKMeans = "kmeans"
	MethodFuzzy  = "fcm"
)

// Options selects and configures a clustering method.
type Options struct {
	Method    string
	K         int
	MaxIter   int
	Fuzziness float64
	Seed      int64
	// Subsample fits k-means on this many random rows and assigns the rest to
	// the nearest centroid; 0 fits on every row.
	Subsample int
}

// Result is the method-independent outcome of Run.
type Result struct {
	Method     string
	Labels     []int
	Centers    [][]float64
	Membership [][]float64 // fuzzy c-means only
	Score      float64     // inertia or fuzzy objective
	Iter       int
}

// Run dispatches to the configured clustering method.
func Run(ctx context.Context, X [][]float64, opt Options) (*Result, error) {
	switch strings.ToLower(strings.TrimSpace(opt.Method)) {
	case MethodKMeans, "k-means", "":
		m := NewKMeans(opt.K, opt.MaxIter, opt.Seed)
		train := X
		if opt.Subsample > 0 && opt.Subsample < len(X) {
			train = subsample(X, opt.Subsample, opt.Seed)
		}
		labels, err := m.Fit(ctx, train)
		if err != nil {
			return nil, fmt.Errorf("kmeans: %w", err)
		}
		if len(train) != len(X) {
			if labels, err = m.Predict(X); err != nil {
				return nil, fmt.Errorf("kmeans: %w", err)
			}
			m.Inertia = 0
			for i, k := range labels {
				m.Inertia += euclidSquared(X[i], m.Centroids[k])
			}
		}
		return &Result{Method: MethodKMeans, Labels: labels, Centers: m.Centroids, Score: m.Inertia, Iter: m.Iter}, nil
	case MethodFuzzy, "fuzzy", "c-means":
		f := NewFuzzyCMeans(opt.K, opt.Fuzziness, opt.MaxIter, opt.Seed)
		labels, err := f.Fit(ctx, X)
		if err != nil {
			return nil, fmt.Errorf("fuzzy c-means: %w", err)
		}
		return &Result{Method: MethodFuzzy, Labels: labels, Centers: f.Centers, Membership: f.Membership, Score: f.Objective, Iter: f.Iter}, nil
	default:
		return nil, fmt.Errorf("unknown cluster method %q (use kmeans or fcm)", opt.Method)
	}
}

// subsample draws n distinct rows of X.
func subsample(X [][]float64, n int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float64, n)
	for k, i := range rng.Perm(len(X))[:n] {
		out[k] = X[i]
	}
	return out
}
