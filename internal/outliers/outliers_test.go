package outliers

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func spike() []float64 {
	x := make([]float64, 0, 21)
	for i := 0; i < 20; i++ {
		x = append(x, 10)
	}
	return append(x, 100)
}

func TestChauvenetRejectsSpike(t *testing.T) {
	x := spike()
	keep, err := Chauvenet(x, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(keep) != len(x) {
		t.Fatalf("mask length %d, want %d", len(keep), len(x))
	}
	for i := 0; i < 20; i++ {
		if !keep[i] {
			t.Fatalf("value %d unexpectedly rejected", i)
		}
	}
	if keep[20] {
		t.Fatalf("spike was kept")
	}
}

func TestChauvenetNaNAndConstant(t *testing.T) {
	keep, err := Chauvenet([]float64{1, math.NaN(), 1, 1}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	want := []bool{true, false, true, true}
	if diff := cmp.Diff(want, keep); diff != "" {
		t.Fatalf("mask mismatch (-want +got):\n%s", diff)
	}
	if _, err := Chauvenet([]float64{math.NaN()}, 0.5); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestPeirceDev(t *testing.T) {
	// Ross (2003) table: N=10, one doubtful observation, R = 1.878.
	r := math.Sqrt(PeirceDev(10, 1, 1))
	if math.Abs(r-1.878) > 0.01 {
		t.Fatalf("R(10,1) = %.4f, want 1.878", r)
	}
	if PeirceDev(1, 1, 1) != 0 {
		t.Fatalf("N=1 must give 0")
	}
	// eight doubtful values out of ten: the second iteration drives x² negative
	if got := PeirceDev(10, 8, 1); got != 0 {
		t.Fatalf("PeirceDev(10,8,1) = %v, want 0", got)
	}
	for N := 2; N < 40; N++ {
		for n := 1; n < N; n++ {
			if v := PeirceDev(N, n, 1); v < 0 || math.IsNaN(v) {
				t.Fatalf("PeirceDev(%d,%d,1) = %v", N, n, v)
			}
		}
	}
}

func TestPeirceRejectsSpike(t *testing.T) {
	keep, err := Peirce(spike(), 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		if !keep[i] {
			t.Fatalf("value %d unexpectedly rejected", i)
		}
	}
	if keep[20] {
		t.Fatalf("spike was kept")
	}
}

func TestApply(t *testing.T) {
	out := Apply([]float64{1, 2, 3}, []bool{true, false, true})
	if out[0] != 1 || !math.IsNaN(out[1]) || out[2] != 3 {
		t.Fatalf("unexpected %v", out)
	}
}

func TestQuantileDiffClipsUpperRun(t *testing.T) {
	x := make([]float64, 0, 100)
	for i := 1; i < 100; i++ {
		x = append(x, float64(i))
	}
	x = append(x, 1e6)

	out, err := QuantileDiff(x, DefaultQuantileOptions())
	if err != nil {
		t.Fatal(err)
	}
	want := append([]float64(nil), x...)
	want[99] = 99
	if diff := cmp.Diff(want, out, cmpopts.EquateApprox(1e-9, 0)); diff != "" {
		t.Fatalf("clip mismatch (-want +got):\n%s", diff)
	}
}

func TestQuantileDiffClipsLowerRun(t *testing.T) {
	x := []float64{1e-4}
	for i := 1; i < 100; i++ {
		x = append(x, float64(i))
	}

	out, err := QuantileDiff(x, DefaultQuantileOptions())
	if err != nil {
		t.Fatal(err)
	}
	want := append([]float64(nil), x...)
	want[0] = 1
	if diff := cmp.Diff(want, out, cmpopts.EquateApprox(1e-9, 0)); diff != "" {
		t.Fatalf("clip mismatch (-want +got):\n%s", diff)
	}
}

func TestQuantileDiffCompositionalAndCap(t *testing.T) {
	opt := DefaultQuantileOptions()
	opt.MaxVal = 50
	x := []float64{-3, 0, 10, 20, 60, math.NaN()}
	out, err := QuantileDiff(x, opt)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(out[0]-opt.Epsilon) > 1e-15 || math.Abs(out[1]-opt.Epsilon) > 1e-15 {
		t.Fatalf("non-positive values not clamped to epsilon: %v", out)
	}
	if out[4] != 50 {
		t.Fatalf("value above MaxVal not capped: %v", out[4])
	}
	if !math.IsNaN(out[5]) {
		t.Fatalf("NaN not preserved")
	}
}

func TestQuantileDiffShiftsNonCompositional(t *testing.T) {
	opt := DefaultQuantileOptions()
	opt.Compositional = false
	opt.DiffLower, opt.DiffUpper = 100, 100
	x := []float64{-5, -1, 0, 2, 3}
	out, err := QuantileDiff(x, opt)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(x, out, cmpopts.EquateApprox(1e-9, 1e-12)); diff != "" {
		t.Fatalf("unexpected change (-want +got):\n%s", diff)
	}
}

func TestPercentile(t *testing.T) {
	s := []float64{1, 2, 3, 4}
	cases := map[float64]float64{0: 1, 100: 4, 50: 2.5, 25: 1.75}
	for p, want := range cases {
		if got := Percentile(s, p); math.Abs(got-want) > 1e-12 {
			t.Errorf("p%.0f: got %v want %v", p, got, want)
		}
	}
}
