package sample

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var mapRows = []string{
	"X,Y,Fe57 (ppm),Mg24 (ppm),Note",
	"0,0,10.5,200,a",
	"1,0,11.0,-2,b",
	"0,1,NaN,210,c",
	"1,1,9.5,190,d",
}

func writeMap(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "zircon.csv")
	if err := os.WriteFile(p, []byte(strings.Join(mapRows, "\n")), 0o644); err != nil {
		t.Fatalf("write map: %v", err)
	}
	return p
}

func TestLoadClassifiesColumns(t *testing.T) {
	s, err := Load(writeMap(t), LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.ID != "zircon" || s.Rows() != 4 {
		t.Fatalf("unexpected sample %s rows=%d", s.ID, s.Rows())
	}
	if diff := cmp.Diff([]string{"Fe57 (ppm)", "Mg24 (ppm)"}, s.Analytes()); diff != "" {
		t.Fatalf("analytes (-want +got):\n%s", diff)
	}
	if s.Attrs["X"].DataType != TypeCoordinate || s.Attrs["Note"].DataType != TypeOther {
		t.Fatalf("bad classification: %+v %+v", s.Attrs["X"], s.Attrs["Note"])
	}
	fe := s.Attrs["Fe57 (ppm)"]
	if fe.Unit != "ppm" || fe.Lower != 9.5 || fe.Upper != 11 {
		t.Fatalf("unexpected Fe attrs %+v", fe)
	}
	v, err := s.Column("Fe57 (ppm)")
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(v[2]) {
		t.Fatalf("missing value not NaN: %v", v)
	}
	if _, err := s.Column("Zr90"); !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("expected ErrColumnNotFound, got %v", err)
	}
}

func TestSetColumnAndWriteCSV(t *testing.T) {
	s, err := Load(writeMap(t), LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetColumn("Mg24 (ppm)", []float64{1, 2, 3, 4}, ""); err != nil {
		t.Fatal(err)
	}
	if err := s.SetLabels("cluster", []int{0, 1, 0, 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetColumn("short", []float64{1}, TypePCA); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
	out := filepath.Join(t.TempDir(), "out.csv")
	if err := s.WriteCSV(out); err != nil {
		t.Fatal(err)
	}
	back, err := Load(out, LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	mg, _ := back.Column("Mg24 (ppm)")
	if diff := cmp.Diff([]float64{1, 2, 3, 4}, mg); diff != "" {
		t.Fatalf("Mg mismatch (-want +got):\n%s", diff)
	}
	cl, _ := back.Column("cluster")
	if diff := cmp.Diff([]float64{0, 1, 0, 1}, cl); diff != "" {
		t.Fatalf("cluster mismatch (-want +got):\n%s", diff)
	}
}

func TestReloadKeepsDerivedColumnTypes(t *testing.T) {
	s, err := Load(writeMap(t), LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetLabels("cluster", []int{0, -1, 1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetColumn("cluster_m0", []float64{0.9, 0.5, 0.1, 0.8}, TypeCluster); err != nil {
		t.Fatal(err)
	}
	if err := s.SetColumn("PC1", []float64{-1.2, 0.3, 0.4, 0.5}, TypePCA); err != nil {
		t.Fatal(err)
	}
	if err := s.SetLabels("grain", []int{2, 2, 3, 3}); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "clustered.csv")
	if err := s.WriteCSV(out); err != nil {
		t.Fatal(err)
	}

	back, err := Load(out, LoadOptions{Labels: []string{"grain"}})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Fe57 (ppm)", "Mg24 (ppm)"}, back.Analytes()); diff != "" {
		t.Fatalf("analytes (-want +got):\n%s", diff)
	}
	want := map[string]string{"cluster": TypeCluster, "cluster_m0": TypeCluster, "grain": TypeCluster, "PC1": TypePCA}
	for name, typ := range want {
		if got := back.Attrs[name].DataType; got != typ {
			t.Errorf("%s: data type %s, want %s", name, got, typ)
		}
	}

	stored := map[string]ColumnAttr{"Mg24 (ppm)": {DataType: TypeOther, Unit: "cps"}}
	back, err = Load(out, LoadOptions{Attrs: stored})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Fe57 (ppm)", "grain"}, back.Analytes()); diff != "" {
		t.Fatalf("analytes with stored attrs (-want +got):\n%s", diff)
	}
	if back.Attrs["Mg24 (ppm)"].Unit != "cps" {
		t.Fatalf("stored unit not applied: %+v", back.Attrs["Mg24 (ppm)"])
	}
}

func TestCoordinateHeadersMatchCaseInsensitively(t *testing.T) {
	p := filepath.Join(t.TempDir(), "lower.csv")
	if err := os.WriteFile(p, []byte("x,y,Fe57\n0,0,1\n1,0,2\n0,1,3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(p, LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if s.XCol != "x" || s.YCol != "y" {
		t.Fatalf("coordinate columns %q/%q", s.XCol, s.YCol)
	}
	x, y, err := s.Coordinates()
	if err != nil {
		t.Fatalf("Coordinates: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 1, 0}, x); diff != "" {
		t.Fatalf("x (-want +got):\n%s", diff)
	}
	if y[2] != 1 {
		t.Fatalf("unexpected y %v", y)
	}
	if diff := cmp.Diff([]string{"Fe57"}, s.Analytes()); diff != "" {
		t.Fatalf("analytes (-want +got):\n%s", diff)
	}
}

func TestMatrixSkipsNonFinite(t *testing.T) {
	s, err := Load(writeMap(t), LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	X, rows, err := s.Matrix(s.Analytes(), []bool{true, true, true, false})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{0, 1}, rows); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
	if X[1][1] != -2 {
		t.Fatalf("unexpected matrix %v", X)
	}
}

func TestFilterTable(t *testing.T) {
	s, err := Load(writeMap(t), LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(t.TempDir(), "bounds.fltr")
	rows := []FilterRow{
		{Field: "Mg24 (ppm)", Min: 0, Max: 205, Use: true},
		{Field: "Fe57 (ppm)", Min: 0, Max: 1, Use: false},
	}
	if err := WriteFilterTable(p, rows); err != nil {
		t.Fatal(err)
	}
	back, err := ReadFilterTable(p)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(rows, back); diff != "" {
		t.Fatalf("filter rows (-want +got):\n%s", diff)
	}
	mask, err := s.ApplyFilters(back)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]bool{true, false, false, true}, mask); diff != "" {
		t.Fatalf("mask (-want +got):\n%s", diff)
	}
	if err := s.SetMask("mask", mask); err != nil {
		t.Fatal(err)
	}
	got, err := s.Mask("mask")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(mask, got); diff != "" {
		t.Fatalf("stored mask (-want +got):\n%s", diff)
	}
}

func TestStore(t *testing.T) {
	st := NewStore()
	st.Add(&Sample{ID: "b"})
	st.Add(&Sample{ID: "a"})
	if diff := cmp.Diff([]string{"a", "b"}, st.IDs()); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}
	st.Remove("a")
	if _, ok := st.Get("a"); ok {
		t.Fatalf("removed sample still present")
	}
	st.Reset()
	if len(st.IDs()) != 0 {
		t.Fatalf("reset left samples")
	}
}

func TestSplitUnits(t *testing.T) {
	cases := map[string][2]string{
		"Fe57 (ppm)": {"Fe57", "ppm"},
		"Mg24 [cps]": {"Mg24", "cps"},
		"Ca43_ppm":   {"Ca43", "ppm"},
		"Ti49":       {"Ti49", ""},
	}
	for in, want := range cases {
		c, u := SplitUnits(in)
		if c != want[0] || u != want[1] {
			t.Errorf("%s: got (%s,%s) want (%s,%s)", in, c, u, want[0], want[1])
		}
	}
}
