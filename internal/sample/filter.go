package sample

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/KaramelBytes/lamap-cli/internal/utils"
)

// FilterRow bounds one field. A pixel passes when Min <= value <= Max.
type FilterRow struct {
	Field string
	Min   float64
	Max   float64
	Use   bool
}

var filterHeader = []string{"field", "min", "max", "use"}

// ReadFilterTable reads a .fltr table: a CSV with field,min,max,use columns.
func ReadFilterTable(path string) ([]FilterRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open filter table: %w", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read filter header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, h := range filterHeader[:3] {
		if _, ok := idx[h]; !ok {
			return nil, fmt.Errorf("filter table missing %q column", h)
		}
	}

	var rows []FilterRow
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read filter row %d: %w", line, err)
		}
		get := func(k string) string {
			i, ok := idx[k]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		row := FilterRow{Field: get("field"), Use: true}
		if row.Field == "" {
			continue
		}
		if row.Min, err = parseBound(get("min"), math.Inf(-1)); err != nil {
			return nil, fmt.Errorf("filter row %d min: %w", line, err)
		}
		if row.Max, err = parseBound(get("max"), math.Inf(1)); err != nil {
			return nil, fmt.Errorf("filter row %d max: %w", line, err)
		}
		if u := get("use"); u != "" {
			b, err := strconv.ParseBool(u)
			if err != nil {
				return nil, fmt.Errorf("filter row %d use: %w", line, err)
			}
			row.Use = b
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseBound(s string, def float64) (float64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

// WriteFilterTable writes rows in the .fltr layout.
func WriteFilterTable(path string, rows []FilterRow) error {
	err := utils.WriteFileAtomic(path, func(f io.Writer) error {
		w := csv.NewWriter(f)
		_ = w.Write(filterHeader)
		for _, r := range rows {
			_ = w.Write([]string{
				r.Field,
				strconv.FormatFloat(r.Min, 'g', -1, 64),
				strconv.FormatFloat(r.Max, 'g', -1, 64),
				strconv.FormatBool(r.Use),
			})
		}
		w.Flush()
		return w.Error()
	})
	if err != nil {
		return fmt.Errorf("write filter table: %w", err)
	}
	return nil
}

// ApplyFilters returns a mask that is true where every enabled row passes.
// NaN values fail any enabled bound on their field.
func (s *Sample) ApplyFilters(rows []FilterRow) ([]bool, error) {
	mask := make([]bool, s.Rows())
	for i := range mask {
		mask[i] = true
	}
	for _, r := range rows {
		if !r.Use {
			continue
		}
		vals, err := s.Column(r.Field)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			if math.IsNaN(v) || v < r.Min || v > r.Max {
				mask[i] = false
			}
		}
	}
	return mask, nil
}
