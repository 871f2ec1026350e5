// Package process runs the data-conditioning pipeline over the analytes of a
// sample: negative/censored value handling followed by outlier rejection.
package process

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/lamap-cli/internal/censor"
	"github.com/KaramelBytes/lamap-cli/internal/outliers"
	"github.com/KaramelBytes/lamap-cli/internal/sample"
)

// Negative-value methods.
const (
	NegativeNone     = "none"
	NegativeIgnore   = "ignore"
	NegativeMinimum  = "minimum"
	NegativeGaussian = "gaussian"
)

// Outlier methods.
const (
	OutlierNone      = "none"
	OutlierChauvenet = "chauvenet"
	OutlierPeirce    = "peirce"
	OutlierQuantile  = "quantile"
)

// Options configures Condition.
type Options struct {
	Negative string
	Outlier  string
	// Analytes restricts processing; empty means every analyte.
	Analytes           []string
	ChauvenetThreshold float64
	PeirceParams       int
	Quantile           outliers.QuantileOptions
	Censor             censor.Options
	// Axis is the coordinate column used to bin censored fits; empty means the sample X column.
	Axis string
}

// DefaultOptions returns the pipeline defaults.
func DefaultOptions() Options {
	return Options{
		Negative:           NegativeGaussian,
		Outlier:            OutlierQuantile,
		ChauvenetThreshold: outliers.DefaultChauvenetThreshold,
		PeirceParams:       1,
		Quantile:           outliers.DefaultQuantileOptions(),
		Censor:             censor.Options{Bins: 10, Degree: 2},
	}
}

// AnalyteResult reports what the pipeline changed in one analyte.
type AnalyteResult struct {
	Analyte     string
	NonPositive int
	Replaced    int
	Rejected    int
	Clipped     int
	Warning     string
}

// Report is the outcome of Condition.
type Report struct {
	Sample   string
	Negative string
	Outlier  string
	Results  []AnalyteResult
}

// Markdown renders the report.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[CONDITIONING]\n")
	b.WriteString(fmt.Sprintf("Sample: %s\n", r.Sample))
	b.WriteString(fmt.Sprintf("Negative handling: %s\nOutlier method: %s\n\n", r.Negative, r.Outlier))
	for _, a := range r.Results {
		b.WriteString(fmt.Sprintf("- %s: non-positive %d, replaced %d, rejected %d, clipped %d", a.Analyte, a.NonPositive, a.Replaced, a.Rejected, a.Clipped))
		if a.Warning != "" {
			b.WriteString(" ⚠ " + a.Warning)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Condition applies the configured methods to each analyte of s in place.
// A failure in one analyte is recorded as a warning and leaves it unchanged.
func Condition(ctx context.Context, s *sample.Sample, opt Options) (*Report, error) {
	neg := strings.ToLower(orDefault(opt.Negative, NegativeNone))
	out := strings.ToLower(orDefault(opt.Outlier, OutlierNone))
	if err := checkMethod(neg, NegativeNone, NegativeIgnore, NegativeMinimum, NegativeGaussian); err != nil {
		return nil, fmt.Errorf("negative method: %w", err)
	}
	if err := checkMethod(out, OutlierNone, OutlierChauvenet, OutlierPeirce, OutlierQuantile); err != nil {
		return nil, fmt.Errorf("outlier method: %w", err)
	}
	analytes := opt.Analytes
	if len(analytes) == 0 {
		analytes = s.Analytes()
	}
	var axis []float64
	if neg == NegativeGaussian {
		name := orDefault(opt.Axis, s.XCol)
		a, err := s.Column(name)
		if err != nil {
			return nil, fmt.Errorf("censor axis: %w", err)
		}
		axis = a
	}

	rep := &Report{Sample: s.ID, Negative: neg, Outlier: out}
	for _, name := range analytes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vals, err := s.Column(name)
		if err != nil {
			return nil, err
		}
		res := AnalyteResult{Analyte: name}
		for _, v := range vals {
			if v <= 0 {
				res.NonPositive++
			}
		}

		next, err := handleNegatives(ctx, vals, axis, neg, opt, &res)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			res.Warning = err.Error()
			rep.Results = append(rep.Results, res)
			continue
		}
		next, err = handleOutliers(next, out, opt, &res)
		if err != nil {
			res.Warning = err.Error()
			rep.Results = append(rep.Results, res)
			continue
		}
		if err := s.SetColumn(name, next, ""); err != nil {
			return nil, err
		}
		rep.Results = append(rep.Results, res)
	}
	return rep, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}

func checkMethod(m string, allowed ...string) error {
	for _, a := range allowed {
		if m == a {
			return nil
		}
	}
	return fmt.Errorf("unknown method %q (use %s)", m, strings.Join(allowed, "|"))
}

func handleNegatives(ctx context.Context, vals, axis []float64, method string, opt Options, res *AnalyteResult) ([]float64, error) {
	out := append([]float64(nil), vals...)
	switch method {
	case NegativeIgnore:
		for i, v := range out {
			if v <= 0 {
				out[i] = math.NaN()
				res.Replaced++
			}
		}
	case NegativeMinimum:
		minPos := math.Inf(1)
		for _, v := range out {
			if v > 0 {
				minPos = math.Min(minPos, v)
			}
		}
		if math.IsInf(minPos, 1) {
			return nil, fmt.Errorf("no positive values")
		}
		for i, v := range out {
			if v <= 0 {
				out[i] = minPos
				res.Replaced++
			}
		}
	case NegativeGaussian:
		if res.NonPositive == 0 {
			return out, nil
		}
		adj, fits, err := censor.Adjust(ctx, vals, axis, opt.Censor)
		if err != nil {
			return nil, err
		}
		for _, f := range fits {
			res.Replaced += f.Replaced
		}
		out = adj
	}
	return out, nil
}

func handleOutliers(vals []float64, method string, opt Options, res *AnalyteResult) ([]float64, error) {
	switch method {
	case OutlierChauvenet, OutlierPeirce:
		var keep []bool
		var err error
		if method == OutlierChauvenet {
			keep, err = outliers.Chauvenet(vals, opt.ChauvenetThreshold)
		} else {
			keep, err = outliers.Peirce(vals, opt.PeirceParams)
		}
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			if !math.IsNaN(v) && !keep[i] {
				res.Rejected++
			}
		}
		return outliers.Apply(vals, keep), nil
	case OutlierQuantile:
		out, err := outliers.QuantileDiff(vals, opt.Quantile)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			if math.IsNaN(v) {
				continue
			}
			if math.Abs(out[i]-v) > 1e-9*math.Max(1, math.Abs(v)) {
				res.Clipped++
			}
		}
		return out, nil
	}
	return vals, nil
}
