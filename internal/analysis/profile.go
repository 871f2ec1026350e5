// Package analysis profiles the analyte channels of a map and renders a
// markdown summary.
package analysis

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/lamap-cli/internal/outliers"
	"github.com/KaramelBytes/lamap-cli/internal/sample"
	"github.com/montanaflynn/stats"
)

// Options controls map profiling.
type Options struct {
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// GroupBy computes per-group means keyed by the values of this column
	// (typically a cluster or mask column).
	GroupBy string
	// Correlations computes Pearson correlations among analytes.
	Correlations bool
	// Outlier counts via robust Z-score (MAD) and Chauvenet's criterion.
	Outliers           bool
	OutlierThreshold   float64
	ChauvenetThreshold float64
	Load               sample.LoadOptions
}

// DefaultOptions returns reasonable defaults for map profiling.
func DefaultOptions() Options {
	return Options{
		SampleRows:         5,
		Outliers:           true,
		OutlierThreshold:   3.5,
		ChauvenetThreshold: outliers.DefaultChauvenetThreshold,
	}
}

// Report is a markdown-friendly profile of one map.
type Report struct {
	Name     string
	Rows     int
	Width    int // distinct X positions
	Height   int // distinct Y positions
	Cols     []ColumnSummary
	Header   []string
	Samples  [][]string
	Warnings []string
	Groups   []GroupResult
	Corr     *CorrMatrix
}

// ColumnSummary captures statistics per analyte.
type ColumnSummary struct {
	Name        string
	Kind        string
	Unit        string
	NonNull     int
	Missing     int
	NonPositive int
	Min         float64
	Max         float64
	Mean        float64
	Std         float64
	Median      float64
	MAD         float64
	P01         float64
	P99         float64
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
	// Chauvenet rejections
	ChauvenetCount int
}

// GroupResult captures per-group analyte means.
type GroupResult struct {
	Key   string
	Size  int
	Means map[string]float64
}

// CorrMatrix holds a symmetric Pearson correlation matrix across analytes.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]
}

// AnalyzeFile loads a map and profiles it.
func AnalyzeFile(path string, opt Options) (*Report, error) {
	s, err := sample.Load(path, opt.Load)
	if err != nil {
		return nil, err
	}
	rep, err := Analyze(s, opt)
	if err != nil {
		return nil, err
	}
	rep.Name = filepath.Base(path)
	return rep, nil
}

// Analyze profiles an already loaded sample.
func Analyze(s *sample.Sample, opt Options) (*Report, error) {
	rep := &Report{Name: s.Name, Rows: s.Rows()}
	if x, y, err := s.Coordinates(); err == nil {
		rep.Width, rep.Height = distinct(x), distinct(y)
	} else {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("no coordinate columns %s/%s", s.XCol, s.YCol))
	}

	analytes := s.Analytes()
	if len(analytes) == 0 {
		rep.Warnings = append(rep.Warnings, "no numeric analyte columns")
	}
	cols := make(map[string][]float64, len(analytes))
	for _, name := range analytes {
		vals, err := s.Column(name)
		if err != nil {
			return nil, err
		}
		cols[name] = vals
		cs, err := summarize(name, vals, opt)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", name, err)
		}
		if a := s.Attrs[name]; a != nil {
			cs.Kind = a.DataType
			cs.Unit = a.Unit
		}
		rep.Cols = append(rep.Cols, cs)
	}

	sampleRows := opt.SampleRows
	if sampleRows < 0 {
		sampleRows = 0
	}
	names := s.Names()
	if sampleRows > 0 {
		rep.Header = names
	}
	for i := 0; i < s.Rows() && i < sampleRows; i++ {
		row := make([]string, len(names))
		for j, n := range names {
			row[j] = s.Frame.Col(n).Elem(i).String()
		}
		rep.Samples = append(rep.Samples, row)
	}

	if opt.GroupBy != "" {
		groups, err := groupMeans(s, opt.GroupBy, analytes, cols)
		if err != nil {
			return nil, err
		}
		rep.Groups = groups
	}
	if opt.Correlations && len(analytes) >= 2 {
		rep.Corr = correlations(analytes, cols)
	}
	return rep, nil
}

func distinct(v []float64) int {
	seen := map[float64]struct{}{}
	for _, x := range v {
		if !math.IsNaN(x) {
			seen[x] = struct{}{}
		}
	}
	return len(seen)
}

func summarize(name string, vals []float64, opt Options) (ColumnSummary, error) {
	s := ColumnSummary{Name: name}
	var data stats.Float64Data
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s.Missing++
			continue
		}
		if v <= 0 {
			s.NonPositive++
		}
		data = append(data, v)
	}
	s.NonNull = len(data)
	if len(data) == 0 {
		return s, nil
	}
	var err error
	if s.Min, err = data.Min(); err != nil {
		return s, err
	}
	if s.Max, err = data.Max(); err != nil {
		return s, err
	}
	if s.Mean, err = data.Mean(); err != nil {
		return s, err
	}
	if len(data) > 1 {
		if s.Std, err = data.StandardDeviationSample(); err != nil {
			return s, err
		}
	}
	if s.Median, err = data.Median(); err != nil {
		return s, err
	}
	if s.MAD, err = data.MedianAbsoluteDeviationPopulation(); err != nil {
		return s, err
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	s.P01 = outliers.Percentile(sorted, 1)
	s.P99 = outliers.Percentile(sorted, 99)

	if opt.Outliers && len(data) >= 8 {
		thr := opt.OutlierThreshold
		if thr <= 0 {
			thr = 3.5
		}
		s.OutlierThreshold = thr
		if s.MAD > 0 {
			for _, v := range data {
				az := math.Abs(0.6745 * (v - s.Median) / s.MAD)
				if az > thr {
					s.OutliersCount++
				}
				if az > s.OutliersMaxAbsZ {
					s.OutliersMaxAbsZ = az
				}
			}
		}
		keep, err := outliers.Chauvenet(data, opt.ChauvenetThreshold)
		if err != nil {
			return s, err
		}
		for _, k := range keep {
			if !k {
				s.ChauvenetCount++
			}
		}
	}
	return s, nil
}

func groupMeans(s *sample.Sample, by string, analytes []string, cols map[string][]float64) ([]GroupResult, error) {
	if _, err := s.Column(by); err != nil {
		return nil, fmt.Errorf("group-by: %w", err)
	}
	keys := s.Frame.Col(by).Records()
	type acc struct {
		size int
		sum  map[string]float64
		cnt  map[string]int
	}
	groups := map[string]*acc{}
	for i, k := range keys {
		g := groups[k]
		if g == nil {
			g = &acc{sum: map[string]float64{}, cnt: map[string]int{}}
			groups[k] = g
		}
		g.size++
		for _, a := range analytes {
			if v := cols[a][i]; !math.IsNaN(v) {
				g.sum[a] += v
				g.cnt[a]++
			}
		}
	}
	out := make([]GroupResult, 0, len(groups))
	for k, g := range groups {
		gr := GroupResult{Key: fmt.Sprintf("%s=%s", by, k), Size: g.size, Means: map[string]float64{}}
		for a, n := range g.cnt {
			gr.Means[a] = g.sum[a] / float64(n)
		}
		out = append(out, gr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size == out[j].Size {
			return out[i].Key < out[j].Key
		}
		return out[i].Size > out[j].Size
	})
	if len(out) > 20 {
		out = out[:20]
	}
	return out, nil
}

func correlations(names []string, cols map[string][]float64) *CorrMatrix {
	n := len(names)
	mat := make([][]float64, n)
	for i := range mat {
		mat[i] = make([]float64, n)
		mat[i][i] = 1
	}
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			r := pearson(cols[names[a]], cols[names[b]])
			mat[a][b], mat[b][a] = r, r
		}
	}
	return &CorrMatrix{Columns: names, Values: mat}
}

// pearson uses pairwise-complete observations.
func pearson(x, y []float64) float64 {
	var n, sx, sy, sxx, syy, sxy float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		n++
		sx += x[i]
		sy += y[i]
		sxx += x[i] * x[i]
		syy += y[i] * y[i]
		sxy += x[i] * y[i]
	}
	if n < 2 {
		return 0
	}
	denom := math.Sqrt((n*sxx - sx*sx) * (n*syy - sy*sy))
	if denom == 0 {
		return 0
	}
	r := (n*sxy - sx*sy) / denom
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r
}

// Markdown renders a compact report suitable for notes or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[MAP SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Pixels: %d", r.Rows))
	if r.Width > 0 && r.Height > 0 {
		b.WriteString(fmt.Sprintf(" (%d x %d)", r.Width, r.Height))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Analytes: %d\n\n", len(r.Cols)))

	b.WriteString("[ANALYTES]\n")
	for _, c := range r.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		name := safeName(c.Name)
		if c.Unit != "" && !strings.Contains(name, c.Unit) {
			name = fmt.Sprintf("%s [%s]", name, c.Unit)
		}
		b.WriteString(fmt.Sprintf("- %s: non-null %d, missing %.1f%%, non-positive %d", name, c.NonNull, missPct, c.NonPositive))
		if c.NonNull > 0 {
			b.WriteString(fmt.Sprintf("; min %.4g, max %.4g, mean %.4g, std %.4g, median %.4g, p1 %.4g, p99 %.4g",
				c.Min, c.Max, c.Mean, c.Std, c.Median, c.P01, c.P99))
		}
		if c.OutlierThreshold > 0 {
			b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold))
			if c.OutliersMaxAbsZ > 0 {
				b.WriteString(fmt.Sprintf(" (max |z|≈%.2f)", c.OutliersMaxAbsZ))
			}
			b.WriteString(fmt.Sprintf(", chauvenet %d", c.ChauvenetCount))
		}
		b.WriteString("\n")
	}
	if len(r.Groups) > 0 {
		b.WriteString("\n[GROUP-BY SUMMARY]\n")
		for _, g := range r.Groups {
			b.WriteString(fmt.Sprintf("- %s (n=%d)\n", g.Key, g.Size))
			keys := make([]string, 0, len(g.Means))
			for k := range g.Means {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if len(keys) > 6 {
				keys = keys[:6]
			}
			for _, k := range keys {
				b.WriteString(fmt.Sprintf("  • %s: mean %.4g\n", k, g.Means[k]))
			}
		}
	}
	if r.Corr != nil && len(r.Corr.Columns) >= 2 {
		b.WriteString("\n[CORRELATIONS]\n")
		type pr struct {
			A, B string
			R    float64
		}
		var pairs []pr
		n := len(r.Corr.Columns)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				pairs = append(pairs, pr{A: r.Corr.Columns[i], B: r.Corr.Columns[j], R: r.Corr.Values[i][j]})
			}
		}
		sort.Slice(pairs, func(i, j int) bool {
			ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
			if ai == aj {
				return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
			}
			return ai > aj
		})
		if len(pairs) > 10 {
			pairs = pairs[:10]
		}
		for _, p := range pairs {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", p.A, p.B, p.R))
		}
	}
	if len(r.Samples) > 0 && len(r.Samples[0]) > 0 {
		b.WriteString("\n[HEAD ROWS]\n")
		if len(r.Header) == len(r.Samples[0]) {
			b.WriteString("| " + strings.Join(r.Header, " | ") + " |\n")
		}
		b.WriteString("|" + strings.Repeat(" --- |", len(r.Samples[0])) + "\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i, v := range row {
				if i > 0 {
					b.WriteString(" | ")
				}
				b.WriteString(safeVal(v))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
