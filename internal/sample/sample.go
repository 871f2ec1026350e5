// Package sample holds per-sample LA-ICP-MS map data: a data frame of pixel
// measurements plus per-column attributes.
package sample

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/KaramelBytes/lamap-cli/internal/utils"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Column data types.
const (
	TypeAnalyte    = "analyte"
	TypeCoordinate = "coordinate"
	TypeMask       = "mask"
	TypeCluster    = "cluster"
	TypePCA        = "pca"
	TypeOther      = "other"
)

var (
	ErrColumnNotFound = errors.New("column not found")
	ErrLengthMismatch = errors.New("column length does not match sample rows")
)

// ColumnAttr carries per-column metadata alongside the data frame.
type ColumnAttr struct {
	DataType string  `json:"data_type" yaml:"data_type"`
	Unit     string  `json:"unit,omitempty" yaml:"unit,omitempty"`
	Norm     string  `json:"norm,omitempty" yaml:"norm,omitempty"` // linear|log|logit
	Lower    float64 `json:"lower" yaml:"lower"`
	Upper    float64 `json:"upper" yaml:"upper"`
}

// Sample is one map: pixel rows, coordinate columns and analyte channels.
type Sample struct {
	ID    string
	Name  string
	Path  string
	XCol  string
	YCol  string
	Frame dataframe.DataFrame
	Attrs map[string]*ColumnAttr
}

// LoadOptions controls Load.
type LoadOptions struct {
	// Delimiter for CSV. If 0, ',' or '\t' is chosen from the file extension.
	Delimiter rune
	// XCol and YCol name the coordinate columns; empty means "X" and "Y".
	XCol string
	YCol string
	// Labels names cluster label columns beyond the default "cluster". Their
	// <label>_m<k> membership columns are recognised too.
	Labels []string
	// Attrs are column attributes recorded for this map, typically by a
	// project. Their data types win over classification by header and type.
	Attrs map[string]ColumnAttr
}

// Load reads a CSV map. Numeric columns other than the coordinates and the
// derived label, membership and PCA score columns are analytes.
func Load(path string, opt LoadOptions) (*Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open map: %w", err)
	}
	defer f.Close()
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path)
	}
	df := dataframe.ReadCSV(f, dataframe.WithDelimiter(delim), dataframe.HasHeader(true), dataframe.DetectTypes(true))
	if df.Err != nil {
		return nil, fmt.Errorf("read map %s: %w", filepath.Base(path), df.Err)
	}
	base := filepath.Base(path)
	s := &Sample{
		ID:    strings.TrimSuffix(base, filepath.Ext(base)),
		Name:  base,
		Path:  path,
		XCol:  orDefault(opt.XCol, "X"),
		YCol:  orDefault(opt.YCol, "Y"),
		Frame: df,
		Attrs: make(map[string]*ColumnAttr),
	}
	s.classify(opt)
	return s, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

// DefaultLabel is the label column written by clustering unless renamed.
const DefaultLabel = "cluster"

var (
	pcaHeader        = regexp.MustCompile(`^PC\d+$`)
	membershipHeader = regexp.MustCompile(`^(.+)_m\d+$`)
)

// derivedType reports the data type of columns written by clustering and PCA.
func derivedType(name string, labels []string) (string, bool) {
	if pcaHeader.MatchString(name) {
		return TypePCA, true
	}
	isLabel := func(n string) bool {
		if n == DefaultLabel {
			return true
		}
		for _, l := range labels {
			if n == l {
				return true
			}
		}
		return false
	}
	if isLabel(name) {
		return TypeCluster, true
	}
	if m := membershipHeader.FindStringSubmatch(name); m != nil && isLabel(m[1]) {
		return TypeCluster, true
	}
	return "", false
}

func (s *Sample) classify(opt LoadOptions) {
	names := s.Frame.Names()
	types := s.Frame.Types()
	for i, name := range names {
		_, unit := SplitUnits(name)
		a := &ColumnAttr{DataType: TypeOther, Unit: unit, Norm: "linear", Lower: math.NaN(), Upper: math.NaN()}
		numeric := types[i] == series.Float || types[i] == series.Int
		switch {
		case strings.EqualFold(name, s.XCol):
			s.XCol = name
			a.DataType = TypeCoordinate
		case strings.EqualFold(name, s.YCol):
			s.YCol = name
			a.DataType = TypeCoordinate
		case types[i] == series.Bool:
			a.DataType = TypeMask
		case numeric:
			if t, ok := derivedType(name, opt.Labels); ok {
				a.DataType = t
				break
			}
			a.DataType = TypeAnalyte
			a.Norm = "log"
		}
		if stored, ok := opt.Attrs[name]; ok && stored.DataType != "" && a.DataType != TypeCoordinate {
			a.DataType = stored.DataType
			if stored.Unit != "" {
				a.Unit = stored.Unit
			}
			if stored.Norm != "" {
				a.Norm = stored.Norm
			}
		}
		s.Attrs[name] = a
	}
	s.UpdateBounds()
}

// UpdateBounds recomputes Lower/Upper for every numeric column.
func (s *Sample) UpdateBounds() {
	for name, a := range s.Attrs {
		if a.DataType == TypeMask || a.DataType == TypeOther {
			continue
		}
		vals, err := s.Column(name)
		if err != nil {
			continue
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range vals {
			if math.IsNaN(v) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		if math.IsInf(lo, 1) {
			lo, hi = math.NaN(), math.NaN()
		}
		a.Lower, a.Upper = lo, hi
	}
}

// Rows returns the number of pixels.
func (s *Sample) Rows() int { return s.Frame.Nrow() }

// Names returns the column names in file order.
func (s *Sample) Names() []string { return s.Frame.Names() }

// Analytes returns the analyte column names in file order.
func (s *Sample) Analytes() []string { return s.ofType(TypeAnalyte) }

func (s *Sample) ofType(t string) []string {
	var out []string
	for _, name := range s.Frame.Names() {
		if a, ok := s.Attrs[name]; ok && a.DataType == t {
			out = append(out, name)
		}
	}
	return out
}

func (s *Sample) has(name string) bool {
	for _, n := range s.Frame.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Column returns a copy of a numeric column; missing values are NaN.
func (s *Sample) Column(name string) ([]float64, error) {
	if !s.has(name) {
		return nil, fmt.Errorf("%s: %w", name, ErrColumnNotFound)
	}
	return s.Frame.Col(name).Float(), nil
}

// Coordinates returns the X and Y columns.
func (s *Sample) Coordinates() ([]float64, []float64, error) {
	x, err := s.Column(s.XCol)
	if err != nil {
		return nil, nil, err
	}
	y, err := s.Column(s.YCol)
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// SetColumn replaces or adds a numeric column.
func (s *Sample) SetColumn(name string, vals []float64, dataType string) error {
	if len(vals) != s.Rows() {
		return fmt.Errorf("%s: %d values for %d rows: %w", name, len(vals), s.Rows(), ErrLengthMismatch)
	}
	df := s.Frame.Mutate(series.New(vals, series.Float, name))
	if df.Err != nil {
		return fmt.Errorf("set column %s: %w", name, df.Err)
	}
	s.Frame = df
	a, ok := s.Attrs[name]
	if !ok {
		_, unit := SplitUnits(name)
		a = &ColumnAttr{Unit: unit, Norm: "linear"}
		s.Attrs[name] = a
	}
	if dataType != "" {
		a.DataType = dataType
	}
	s.UpdateBounds()
	return nil
}

// SetLabels stores integer labels (cluster ids) as a column.
func (s *Sample) SetLabels(name string, labels []int) error {
	if len(labels) != s.Rows() {
		return fmt.Errorf("%s: %d labels for %d rows: %w", name, len(labels), s.Rows(), ErrLengthMismatch)
	}
	df := s.Frame.Mutate(series.New(labels, series.Int, name))
	if df.Err != nil {
		return fmt.Errorf("set column %s: %w", name, df.Err)
	}
	s.Frame = df
	s.Attrs[name] = &ColumnAttr{DataType: TypeCluster, Norm: "linear", Lower: math.NaN(), Upper: math.NaN()}
	return nil
}

// SetMask stores a boolean mask column.
func (s *Sample) SetMask(name string, mask []bool) error {
	if len(mask) != s.Rows() {
		return fmt.Errorf("%s: %d values for %d rows: %w", name, len(mask), s.Rows(), ErrLengthMismatch)
	}
	df := s.Frame.Mutate(series.New(mask, series.Bool, name))
	if df.Err != nil {
		return fmt.Errorf("set column %s: %w", name, df.Err)
	}
	s.Frame = df
	s.Attrs[name] = &ColumnAttr{DataType: TypeMask, Lower: math.NaN(), Upper: math.NaN()}
	return nil
}

// Mask returns a boolean column. Missing entries are false.
func (s *Sample) Mask(name string) ([]bool, error) {
	if !s.has(name) {
		return nil, fmt.Errorf("%s: %w", name, ErrColumnNotFound)
	}
	col := s.Frame.Col(name)
	out := make([]bool, col.Len())
	for i := range out {
		b, err := col.Elem(i).Bool()
		out[i] = err == nil && b
	}
	return out, nil
}

// Matrix returns the rows where every listed column is finite and keep
// (if non-nil) is true, together with their row indices.
func (s *Sample) Matrix(cols []string, keep []bool) ([][]float64, []int, error) {
	data := make([][]float64, len(cols))
	for j, c := range cols {
		v, err := s.Column(c)
		if err != nil {
			return nil, nil, err
		}
		data[j] = v
	}
	var X [][]float64
	var rows []int
	for i := 0; i < s.Rows(); i++ {
		if keep != nil && (i >= len(keep) || !keep[i]) {
			continue
		}
		row := make([]float64, len(cols))
		ok := true
		for j := range cols {
			v := data[j][i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				ok = false
				break
			}
			row[j] = v
		}
		if ok {
			X = append(X, row)
			rows = append(rows, i)
		}
	}
	return X, rows, nil
}

// WriteCSV writes the data frame to path, replacing it atomically.
func (s *Sample) WriteCSV(path string) error {
	return utils.WriteFileAtomic(path, func(w io.Writer) error {
		return s.Frame.WriteCSV(w)
	})
}

// AttrSnapshot returns a copy of the attributes for persistence.
func (s *Sample) AttrSnapshot() map[string]ColumnAttr {
	out := make(map[string]ColumnAttr, len(s.Attrs))
	for k, v := range s.Attrs {
		c := *v
		if math.IsNaN(c.Lower) {
			c.Lower = 0
		}
		if math.IsNaN(c.Upper) {
			c.Upper = 0
		}
		out[k] = c
	}
	return out
}

var unitPatterns = []struct {
	re   *regexp.Regexp
	pick int
}{
	{regexp.MustCompile(`^(.*)\s*\(([^)]+)\)\s*$`), 2},  // e.g., Fe57 (ppm)
	{regexp.MustCompile(`^(.*)\s*\[([^\]]+)\]\s*$`), 2}, // e.g., Fe57 [cps]
	{regexp.MustCompile(`^(.*?)[_\s-]+(ppm|ppb|cps|wt%|%|µg/g|ug/g)$`), 2},
}

// SplitUnits separates a trailing unit from a column header.
func SplitUnits(name string) (clean string, unit string) {
	s := strings.TrimSpace(name)
	for _, p := range unitPatterns {
		if m := p.re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[p.pick])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}

// Store holds loaded samples keyed by sample ID.
type Store struct {
	samples map[string]*Sample
}

// NewStore returns an empty store.
func NewStore() *Store { return &Store{samples: make(map[string]*Sample)} }

// Add inserts s, replacing any sample with the same ID.
func (st *Store) Add(s *Sample) { st.samples[s.ID] = s }

// Get returns the sample with id.
func (st *Store) Get(id string) (*Sample, bool) {
	s, ok := st.samples[id]
	return s, ok
}

// Remove drops the sample with id.
func (st *Store) Remove(id string) { delete(st.samples, id) }

// Reset discards every sample.
func (st *Store) Reset() { st.samples = make(map[string]*Sample) }

// IDs returns the sample IDs in sorted order.
func (st *Store) IDs() []string {
	ids := make([]string, 0, len(st.samples))
	for id := range st.samples {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
