package cluster

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA holds the principal axes of a pixel × analyte matrix.
type PCA struct {
	Columns     []string
	Means       []float64
	Loadings    *mat.Dense // one component per column
	Variances   []float64
	Standardize bool
	scales      []float64
}

// ExplainedRatio returns each component's share of the total variance.
func (p *PCA) ExplainedRatio() []float64 {
	total := 0.0
	for _, v := range p.Variances {
		total += v
	}
	out := make([]float64, len(p.Variances))
	if total == 0 {
		return out
	}
	for i, v := range p.Variances {
		out[i] = v / total
	}
	return out
}

// FitPCA computes principal components of X. With standardize, each column
// is scaled to unit variance first (correlation PCA).
func FitPCA(X [][]float64, columns []string, standardize bool) (*PCA, error) {
	n, p, err := validate(X, 1)
	if err != nil {
		return nil, err
	}
	if n < 2 {
		return nil, errors.New("pca needs at least two rows")
	}
	pc := &PCA{Columns: columns, Standardize: standardize, Means: make([]float64, p), scales: make([]float64, p)}
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			col[i] = X[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		pc.Means[j] = mean
		pc.scales[j] = 1
		if standardize && std > 0 {
			pc.scales[j] = std
		}
	}
	a := pc.center(X)

	var sp stat.PC
	if ok := sp.PrincipalComponents(a, nil); !ok {
		return nil, errors.New("pca: decomposition failed")
	}
	pc.Variances = sp.VarsTo(nil)
	var vecs mat.Dense
	sp.VectorsTo(&vecs)
	pc.Loadings = &vecs
	return pc, nil
}

func (p *PCA) center(X [][]float64) *mat.Dense {
	a := mat.NewDense(len(X), len(p.Means), nil)
	for i, row := range X {
		for j, v := range row {
			a.Set(i, j, (v-p.Means[j])/p.scales[j])
		}
	}
	return a
}

// Transform projects X onto the first k components.
func (p *PCA) Transform(X [][]float64, k int) (*mat.Dense, error) {
	if len(X) == 0 {
		return nil, ErrEmptyInput
	}
	_, cols := p.Loadings.Dims()
	if k <= 0 || k > cols {
		k = cols
	}
	for _, row := range X {
		if len(row) != len(p.Means) {
			return nil, ErrRagged
		}
	}
	var scores mat.Dense
	scores.Mul(p.center(X), p.Loadings.Slice(0, len(p.Means), 0, k))
	return &scores, nil
}
