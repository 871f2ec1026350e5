package cluster

import (
	"context"
	"errors"
	"math"
	"testing"
)

// blobs returns two well separated groups of points around (0,0) and (10,10).
func blobs() [][]float64 {
	offsets := [][]float64{{0, 0}, {0.2, -0.1}, {-0.1, 0.3}, {0.1, 0.1}, {-0.2, -0.2}}
	var X [][]float64
	for _, c := range []float64{0, 10} {
		for _, o := range offsets {
			X = append(X, []float64{c + o[0], c + o[1]})
		}
	}
	return X
}

func checkSplit(t *testing.T, labels []int) {
	t.Helper()
	if len(labels) != 10 {
		t.Fatalf("labels = %d", len(labels))
	}
	for i := 1; i < 5; i++ {
		if labels[i] != labels[0] || labels[i+5] != labels[5] {
			t.Fatalf("groups not kept together: %v", labels)
		}
	}
	if labels[0] == labels[5] {
		t.Fatalf("groups not separated: %v", labels)
	}
}

func TestKMeansSeparatesBlobs(t *testing.T) {
	m := NewKMeans(2, 100, 7)
	labels, err := m.Fit(context.Background(), blobs())
	if err != nil {
		t.Fatal(err)
	}
	checkSplit(t, labels)
	if m.Inertia <= 0 || m.Inertia > 1 {
		t.Fatalf("inertia = %v", m.Inertia)
	}
	pred, err := m.Predict([][]float64{{9.5, 10.2}})
	if err != nil {
		t.Fatal(err)
	}
	if pred[0] != labels[5] {
		t.Fatalf("predicted %d, want %d", pred[0], labels[5])
	}
}

func TestKMeansDeterministicWithSeed(t *testing.T) {
	a, _ := NewKMeans(2, 100, 3).Fit(context.Background(), blobs())
	b, _ := NewKMeans(2, 100, 3).Fit(context.Background(), blobs())
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed gave different labels: %v vs %v", a, b)
		}
	}
}

func TestKMeansValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := NewKMeans(2, 10, 0).Fit(ctx, nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := NewKMeans(5, 10, 0).Fit(ctx, [][]float64{{1}, {2}}); !errors.Is(err, ErrBadK) {
		t.Fatalf("expected ErrBadK, got %v", err)
	}
	if _, err := NewKMeans(1, 10, 0).Fit(ctx, [][]float64{{1, 2}, {2}}); !errors.Is(err, ErrRagged) {
		t.Fatalf("expected ErrRagged, got %v", err)
	}
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := NewKMeans(2, 10, 0).Fit(cctx, blobs()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFuzzyCMeans(t *testing.T) {
	f := NewFuzzyCMeans(2, 2, 200, 11)
	labels, err := f.Fit(context.Background(), blobs())
	if err != nil {
		t.Fatal(err)
	}
	checkSplit(t, labels)
	for i, row := range f.Membership {
		s := 0.0
		for _, v := range row {
			s += v
		}
		if math.Abs(s-1) > 1e-9 {
			t.Fatalf("membership row %d sums to %v", i, s)
		}
		if row[labels[i]] < 0.9 {
			t.Fatalf("row %d weakly assigned: %v", i, row)
		}
	}
}

func TestRunDispatch(t *testing.T) {
	for _, method := range []string{"kmeans", "fcm"} {
		res, err := Run(context.Background(), blobs(), Options{Method: method, K: 2, Seed: 1})
		if err != nil {
			t.Fatalf("%s: %v", method, err)
		}
		checkSplit(t, res.Labels)
		if (method == "fcm") != (res.Membership != nil) {
			t.Fatalf("%s: membership presence wrong", method)
		}
	}
	if _, err := Run(context.Background(), blobs(), Options{Method: "dbscan", K: 2}); err == nil {
		t.Fatalf("expected unknown method error")
	}
}

func TestRunSubsampleAssignsEveryRow(t *testing.T) {
	X := blobs()
	res, err := Run(context.Background(), X, Options{Method: MethodKMeans, K: 2, Seed: 5, Subsample: 6})
	if err != nil {
		t.Fatal(err)
	}
	checkSplit(t, res.Labels)
	want := 0.0
	for i, k := range res.Labels {
		want += euclidSquared(X[i], res.Centers[k])
	}
	if math.Abs(res.Score-want) > 1e-12 {
		t.Fatalf("score %v not computed over all rows (%v)", res.Score, want)
	}
}

func TestPCA(t *testing.T) {
	// Points along y = 2x with small noise: one dominant component.
	var X [][]float64
	noise := []float64{0.01, -0.02, 0.015, -0.01, 0.005, 0, -0.015, 0.02}
	for i, e := range noise {
		x := float64(i)
		X = append(X, []float64{x, 2*x + e})
	}
	p, err := FitPCA(X, []string{"a", "b"}, false)
	if err != nil {
		t.Fatal(err)
	}
	ratio := p.ExplainedRatio()
	if ratio[0] < 0.99 {
		t.Fatalf("first component explains %v", ratio[0])
	}
	v0, v1 := p.Loadings.At(0, 0), p.Loadings.At(1, 0)
	if math.Abs(math.Abs(v1/v0)-2) > 0.05 {
		t.Fatalf("first loading not along y=2x: (%v, %v)", v0, v1)
	}
	scores, err := p.Transform(X, 1)
	if err != nil {
		t.Fatal(err)
	}
	r, c := scores.Dims()
	if r != len(X) || c != 1 {
		t.Fatalf("scores dims %dx%d", r, c)
	}
	mean := 0.0
	for i := 0; i < r; i++ {
		mean += scores.At(i, 0)
	}
	if math.Abs(mean/float64(r)) > 1e-9 {
		t.Fatalf("scores not centered: %v", mean)
	}
}
