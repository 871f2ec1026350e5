package cmd

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/lamap-cli/internal/project"
	"github.com/KaramelBytes/lamap-cli/internal/sample"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores every flag to its default so state does not leak
// between invocations of the shared rootCmd.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) {
	t.Helper()
	if err := runCmdErr(args...); err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
}

func runCmdErr(args ...string) error {
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// isolate points HOME at a temp dir so config and projects stay local.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

// writeMap writes a 10x10 map with two compositional domains (x<5, x>=5),
// a few zero pixels and one hot Fe57 pixel.
func writeMap(t *testing.T, dir, name string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("X,Y,Fe57,Mg24\n")
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			fe, mg := 20+0.3*float64(y), 400+float64(y)
			if x >= 5 {
				fe, mg = 200+0.3*float64(y), 40+0.5*float64(y)
			}
			if y == 0 && x < 3 {
				fe = 0
			}
			if x == 2 && y == 7 {
				fe = 90000
			}
			fmt.Fprintf(&b, "%d,%d,%g,%g\n", x, y, fe, mg)
		}
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write map: %v", err)
	}
	return p
}

func loadMap(t *testing.T, path string) *sample.Sample {
	t.Helper()
	s, err := sample.Load(path, sample.LoadOptions{})
	if err != nil {
		t.Fatalf("load %s: %v", path, err)
	}
	return s
}

func TestCLI_Init_Add_List_Condition(t *testing.T) {
	home := isolate(t)
	mapPath := writeMap(t, home, "garnet.csv")

	runCmd(t, "init", "itest", "-d", "integration test", "--outlier", "chauvenet")
	runCmd(t, "add", "-p", "itest", mapPath, "--desc", "first map")
	runCmd(t, "list", "--samples", "-p", "itest")
	runCmd(t, "list", "--projects")

	out := filepath.Join(home, "garnet_clean.csv")
	runCmd(t, "condition", "garnet", "-p", "itest", "-o", out, "--negative", "minimum")

	s := loadMap(t, out)
	fe, err := s.Column("Fe57")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if !(fe[i] > 0) {
			t.Fatalf("pixel %d not replaced: %v", i, fe[i])
		}
	}
	if !math.IsNaN(fe[72]) {
		t.Fatalf("hot pixel not rejected by project outlier method: %v", fe[72])
	}

	dir, err := resolveProjectDirByName("itest")
	if err != nil {
		t.Fatal(err)
	}
	p, err := project.LoadProject(dir)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := p.FindSample("garnet")
	if err != nil {
		t.Fatal(err)
	}
	if len(ref.History) != 1 || ref.History[0].Command != "condition" || ref.History[0].Detail != "minimum/chauvenet" {
		t.Fatalf("unexpected history %+v", ref.History)
	}
	runCmd(t, "project", "show", "-p", "itest")
}

func TestCLI_ClusterWithPCA(t *testing.T) {
	home := isolate(t)
	mapPath := writeMap(t, home, "zircon.csv")
	table := filepath.Join(home, "hot.fltr")
	if err := sample.WriteFilterTable(table, []sample.FilterRow{{Field: "Fe57", Min: math.Inf(-1), Max: 1000, Use: true}}); err != nil {
		t.Fatal(err)
	}
	filtered := filepath.Join(home, "filtered.csv")
	runCmd(t, "filter", mapPath, "--table", table, "-o", filtered)

	out := filepath.Join(home, "clustered.csv")
	runCmd(t, "cluster", filtered, "-k", "2", "--seed", "7", "--log", "--mask", "mask", "--pca", "2", "-o", out)

	s := loadMap(t, out)
	labels, err := s.Column("cluster")
	if err != nil {
		t.Fatal(err)
	}
	// zero Fe57 pixels are dropped by the log transform, the hot pixel by the mask
	if labels[0] != -1 || labels[72] != -1 {
		t.Fatalf("expected excluded pixels to be labelled -1, got %v %v", labels[0], labels[72])
	}
	left, right := labels[13], labels[17]
	if left == right || left < 0 || right < 0 {
		t.Fatalf("domains not separated: left=%v right=%v", left, right)
	}
	for _, col := range []string{"PC1", "PC2"} {
		if _, err := s.Column(col); err != nil {
			t.Fatalf("missing %s: %v", col, err)
		}
	}
	if got := strings.Join(s.Analytes(), ","); got != "Fe57,Mg24" {
		t.Fatalf("derived columns reloaded as analytes: %s", got)
	}

	// conditioning the clustered map must leave labels and scores alone
	cond := filepath.Join(home, "clustered_clean.csv")
	runCmd(t, "condition", out, "--outlier", "none", "-o", cond, "--report", filepath.Join(home, "cond.md"))
	c := loadMap(t, cond)
	for _, col := range []string{"cluster", "PC1"} {
		before, _ := s.Column(col)
		after, err := c.Column(col)
		if err != nil {
			t.Fatal(err)
		}
		for i := range before {
			if before[i] != after[i] && !(math.IsNaN(before[i]) && math.IsNaN(after[i])) {
				t.Fatalf("%s[%d] changed from %v to %v", col, i, before[i], after[i])
			}
		}
	}

	sub := filepath.Join(home, "subsampled.csv")
	runCmd(t, "cluster", filtered, "-k", "2", "--seed", "7", "--log", "--mask", "mask", "--subsample", "40", "-o", sub)
	labels, err = loadMap(t, sub).Column("cluster")
	if err != nil {
		t.Fatal(err)
	}
	if labels[72] != -1 || labels[13] == labels[17] || labels[13] < 0 || labels[17] < 0 {
		t.Fatalf("subsampled clustering: hot=%v left=%v right=%v", labels[72], labels[13], labels[17])
	}
}

func TestCLI_FilterTemplateAndApply(t *testing.T) {
	home := isolate(t)
	mapPath := writeMap(t, home, "map.csv")
	table := filepath.Join(home, "bounds.fltr")

	runCmd(t, "filter", mapPath, "--table", table, "--template")
	rows, err := sample.ReadFilterTable(table)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Use {
		t.Fatalf("unexpected template rows %+v", rows)
	}

	rows[1] = sample.FilterRow{Field: "Mg24", Min: 100, Max: math.Inf(1), Use: true}
	if err := sample.WriteFilterTable(table, rows); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(home, "masked.csv")
	runCmd(t, "filter", mapPath, "--table", table, "-o", out)

	s := loadMap(t, out)
	mask, err := s.Mask("mask")
	if err != nil {
		t.Fatal(err)
	}
	if !mask[0] || mask[9] {
		t.Fatalf("unexpected mask values %v %v", mask[0], mask[9])
	}
}

func TestCLI_MolecularWeight(t *testing.T) {
	isolate(t)
	runCmd(t, "mw", "H2O", "Ca(OH)2")
	runCmd(t, "mw", "--oxide", "Fe2O3", "Fe")
	if err := runCmdErr("mw", "Xx2"); err == nil {
		t.Fatalf("expected error for unknown element")
	}
}

func TestCLI_AnalyzeAttachesSummaries(t *testing.T) {
	home := isolate(t)
	d1 := filepath.Join(home, "d1")
	d2 := filepath.Join(home, "d2")
	for _, d := range []string{d1, d2} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
		writeMap(t, d, "spot.csv")
	}
	runCmd(t, "init", "batchp")
	runCmd(t, "analyze", filepath.Join(home, "d*", "spot.csv"), "-p", "batchp", "--sample-rows", "0", "--quiet")

	projDir, err := resolveProjectDirByName("batchp")
	if err != nil {
		t.Fatalf("resolve project: %v", err)
	}
	dsDir := filepath.Join(projDir, "map_summaries")
	b1 := filepath.Join(dsDir, "spot.summary.md")
	b2 := filepath.Join(dsDir, "spot__2.summary.md")
	for _, b := range []string{b1, b2} {
		body, err := os.ReadFile(b)
		if err != nil {
			t.Fatalf("missing summary: %v", err)
		}
		if !strings.Contains(string(body), "[MAP SUMMARY]") || strings.Contains(string(body), "[HEAD ROWS]") {
			t.Fatalf("unexpected summary body in %s:\n%s", b, body)
		}
	}
	p, err := project.LoadProject(projDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Samples) != 2 {
		t.Fatalf("expected analyze to register 2 samples, got %d", len(p.Samples))
	}
	for _, id := range p.SampleIDs() {
		if p.Samples[id].Summary == "" {
			t.Fatalf("sample %s has no summary", p.Samples[id].Name)
		}
	}

	out := filepath.Join(home, "report.md")
	runCmd(t, "analyze", filepath.Join(d1, "spot.csv"), "-o", out, "--correlations")
	body, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "[CORRELATIONS]") {
		t.Fatalf("report missing correlations:\n%s", body)
	}
}

func TestCLI_AnalyzeWholeProject(t *testing.T) {
	home := isolate(t)
	runCmd(t, "init", "wholep")
	runCmd(t, "add", "-p", "wholep", writeMap(t, home, "a.csv"), writeMap(t, home, "b.csv"))
	runCmd(t, "analyze", "-p", "wholep", "--quiet")

	projDir, err := resolveProjectDirByName("wholep")
	if err != nil {
		t.Fatal(err)
	}
	p, err := project.LoadProject(projDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a", "b"} {
		ref, err := p.FindSample(name)
		if err != nil {
			t.Fatal(err)
		}
		if filepath.Base(ref.Summary) != name+".summary.md" {
			t.Fatalf("sample %s summary %q", name, ref.Summary)
		}
		if n := len(ref.History); n != 1 || ref.History[0].Command != "analyze" {
			t.Fatalf("sample %s history %+v", name, ref.History)
		}
	}
	if err := runCmdErr("analyze"); err == nil {
		t.Fatalf("expected error without files or project")
	}
}

func TestCLI_ConfigSetRejectsBadValues(t *testing.T) {
	isolate(t)
	runCmd(t, "config", "set", "cluster_k", "4")
	if err := runCmdErr("config", "set", "outlier_method", "grubbs"); err == nil {
		t.Fatalf("expected error for unknown outlier method")
	}
	if err := runCmdErr("config", "set", "nope", "1"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}
