package cmd

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/lamap-cli/internal/sample"
)

// featureMatrix selects analyte columns (default all), restricted to rows
// where mask is true, and log10-transforms columns whose norm is "log" when
// useLog is set. Rows with any non-finite feature are dropped.
func featureMatrix(s *sample.Sample, cols []string, mask string, useLog bool) ([][]float64, []int, []string, error) {
	if len(cols) == 0 {
		cols = s.Analytes()
	}
	if len(cols) == 0 {
		return nil, nil, nil, fmt.Errorf("%s has no analyte columns", s.Name)
	}
	var keep []bool
	if mask != "" {
		m, err := s.Mask(mask)
		if err != nil {
			return nil, nil, nil, err
		}
		keep = m
	}
	X, rows, err := s.Matrix(cols, keep)
	if err != nil {
		return nil, nil, nil, err
	}
	if useLog {
		X, rows = logRows(s, cols, X, rows)
	}
	if len(X) == 0 {
		return nil, nil, nil, fmt.Errorf("no complete pixels to process in %s", s.Name)
	}
	return X, rows, cols, nil
}

func logRows(s *sample.Sample, cols []string, X [][]float64, rows []int) ([][]float64, []int) {
	logCol := make([]bool, len(cols))
	for j, c := range cols {
		if a := s.Attrs[c]; a != nil && a.Norm == "log" {
			logCol[j] = true
		}
	}
	outX := X[:0]
	outRows := rows[:0]
	for i, row := range X {
		ok := true
		for j, v := range row {
			if !logCol[j] {
				continue
			}
			if v <= 0 {
				ok = false
				break
			}
			row[j] = math.Log10(v)
		}
		if ok {
			outX = append(outX, row)
			outRows = append(outRows, rows[i])
		}
	}
	return outX, outRows
}

// scatter expands per-row values back to full sample length, filling gaps.
func scatter(n int, rows []int, vals []float64, fill float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = fill
	}
	for k, r := range rows {
		out[r] = vals[k]
	}
	return out
}
