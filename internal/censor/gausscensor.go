// Package censor estimates lognormal parameters from left-censored data and
// replaces censored (non-positive) values with quantile-matched estimates.
package censor

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Params are the lognormal parameters of one fit, in natural-log space.
type Params struct {
	Mu       float64
	Sigma    float64
	N        int
	Censored int
}

// plottingPosition is Blom's estimate of the quantile for rank i (0-based) of n.
func plottingPosition(i, n int) float64 {
	return (float64(i) + 1 - 0.375) / (float64(n) + 0.25)
}

// FitCensored fits a lognormal to x treating values <= 0 as censored below
// the smallest positive value. The initial estimate regresses the log of the
// uncensored values on normal quantiles of their plotting positions; when
// censored values exist it is refined by maximum likelihood.
func FitCensored(x []float64) (Params, error) {
	var logs []float64
	censored := 0
	for _, v := range x {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
		case v <= 0:
			censored++
		default:
			logs = append(logs, math.Log(v))
		}
	}
	n := len(logs) + censored
	if len(logs) < 2 {
		return Params{N: n, Censored: censored}, fmt.Errorf("censored fit with %d uncensored values: %w", len(logs), ErrTooFewPoints)
	}
	sort.Float64s(logs)

	z := make([]float64, len(logs))
	for k := range logs {
		z[k] = distuv.UnitNormal.Quantile(plottingPosition(censored+k, n))
	}
	mu, sigma := stat.LinearRegression(z, logs, nil, false)
	if !(sigma > 0) || math.IsNaN(mu) {
		mu, sigma = stat.MeanStdDev(logs, nil)
	}
	if !(sigma > 0) {
		return Params{Mu: mu, Sigma: 0, N: n, Censored: censored}, nil
	}
	p := Params{Mu: mu, Sigma: sigma, N: n, Censored: censored}
	if censored == 0 {
		return p, nil
	}

	floor := logs[0]
	problem := optimize.Problem{
		Func: func(v []float64) float64 {
			m, s := v[0], math.Exp(v[1])
			nll := 0.0
			for _, y := range logs {
				r := (y - m) / s
				nll += math.Log(s) + 0.5*r*r
			}
			cdf := distuv.UnitNormal.CDF((floor - m) / s)
			nll -= float64(censored) * math.Log(math.Max(cdf, 1e-300))
			return nll
		},
	}
	res, err := optimize.Minimize(problem, []float64{mu, math.Log(sigma)}, nil, &optimize.NelderMead{})
	if err != nil || res == nil {
		return p, nil
	}
	m, s := res.X[0], math.Exp(res.X[1])
	if !math.IsNaN(m) && !math.IsInf(m, 0) && s > 0 && !math.IsInf(s, 0) {
		p.Mu, p.Sigma = m, s
	}
	return p, nil
}

// Options controls Adjust.
type Options struct {
	// Bins splits the position axis into equal-width bins; <= 0 means 10.
	Bins int
	// Degree of the polynomial smoothing mu and sigma across bins; < 0 means 2.
	Degree int
}

// BinFit reports the raw and smoothed parameters of one bin.
type BinFit struct {
	Center   float64
	Raw      Params
	Valid    bool
	Mu       float64
	Sigma    float64
	Replaced int
}

// Adjust replaces censored values of x with quantile-matched draws from a
// lognormal fitted per bin of pos and smoothed across bins. Uncensored
// values, NaNs and values at a non-finite position are returned unchanged.
func Adjust(ctx context.Context, x, pos []float64, opt Options) ([]float64, []BinFit, error) {
	if len(x) != len(pos) {
		return nil, nil, fmt.Errorf("adjust: %d values but %d positions", len(x), len(pos))
	}
	if opt.Bins <= 0 {
		opt.Bins = 10
	}
	if opt.Degree < 0 {
		opt.Degree = 2
	}

	usable := func(i int) bool {
		return !math.IsNaN(pos[i]) && !math.IsInf(pos[i], 0) && !math.IsNaN(x[i])
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, p := range pos {
		if !usable(i) {
			continue
		}
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	if math.IsInf(lo, 0) {
		return nil, nil, fmt.Errorf("adjust: %w", ErrTooFewPoints)
	}
	width := (hi - lo) / float64(opt.Bins)
	binOf := func(p float64) int {
		if width == 0 {
			return 0
		}
		b := int((p - lo) / width)
		if b >= opt.Bins {
			b = opt.Bins - 1
		}
		return b
	}

	members := make([][]int, opt.Bins)
	for i, p := range pos {
		if !usable(i) {
			continue
		}
		b := binOf(p)
		members[b] = append(members[b], i)
	}

	fits := make([]BinFit, opt.Bins)
	var ts, mus, sigmas []float64
	for b := range fits {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		fits[b].Center = lo + (float64(b)+0.5)*width
		vals := make([]float64, len(members[b]))
		for k, i := range members[b] {
			vals[k] = x[i]
		}
		p, err := FitCensored(vals)
		fits[b].Raw = p
		if err != nil || !(p.Sigma > 0) {
			continue
		}
		fits[b].Valid = true
		ts = append(ts, binT(b, opt.Bins))
		mus = append(mus, p.Mu)
		sigmas = append(sigmas, p.Sigma)
	}
	if len(ts) == 0 {
		// fall back to a single global fit
		p, err := FitCensored(x)
		if err != nil {
			return nil, nil, err
		}
		if !(p.Sigma > 0) {
			return nil, nil, fmt.Errorf("adjust: degenerate distribution: %w", ErrTooFewPoints)
		}
		ts, mus, sigmas = []float64{0.5}, []float64{p.Mu}, []float64{p.Sigma}
	}

	deg := opt.Degree
	if deg > len(ts)-1 {
		deg = len(ts) - 1
	}
	muC, err := PolyFit(ts, mus, deg)
	if err != nil {
		return nil, nil, err
	}
	sigC, err := PolyFit(ts, sigmas, deg)
	if err != nil {
		return nil, nil, err
	}

	out := append([]float64(nil), x...)
	for b := range fits {
		t := binT(b, opt.Bins)
		mu := PolyVal(muC, t)
		sigma := math.Max(PolyVal(sigC, t), 1e-6)
		fits[b].Mu, fits[b].Sigma = mu, sigma

		var cens []int
		for _, i := range members[b] {
			if x[i] <= 0 {
				cens = append(cens, i)
			}
		}
		sort.SliceStable(cens, func(a, c int) bool { return x[cens[a]] < x[cens[c]] })
		n := len(members[b])
		for r, i := range cens {
			q := distuv.UnitNormal.Quantile(plottingPosition(r, n))
			out[i] = math.Exp(mu + sigma*q)
		}
		fits[b].Replaced = len(cens)
	}
	return out, fits, nil
}

func binT(b, bins int) float64 {
	return (float64(b) + 0.5) / float64(bins)
}
