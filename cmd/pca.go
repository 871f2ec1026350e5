package cmd

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/lamap-cli/internal/cluster"
	"github.com/KaramelBytes/lamap-cli/internal/project"
	"github.com/KaramelBytes/lamap-cli/internal/sample"
	"github.com/spf13/cobra"
)

var (
	pcaProject   string
	pcaOutput    string
	pcaDelimiter string
	pcaAnalytes  []string
	pcaMask      string
	pcaLog       bool
	pcaRaw       bool
	pcaScores    int
)

var pcaCmd = &cobra.Command{
	Use:   "pca <map.csv|sample>",
	Short: "Principal component analysis of analyte channels",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := resolveInput(args[0], pcaProject)
		if err != nil {
			return err
		}
		lo, err := in.options(pcaDelimiter)
		if err != nil {
			return err
		}
		s, err := sample.Load(in.Path, lo)
		if err != nil {
			return err
		}
		X, rows, cols, err := featureMatrix(s, pcaAnalytes, pcaMask, pcaLog)
		if err != nil {
			return err
		}
		pc, err := cluster.FitPCA(X, cols, !pcaRaw)
		if err != nil {
			return err
		}
		fmt.Print(pcaMarkdown(pc))

		if pcaScores <= 0 {
			return nil
		}
		if err := addPCAScores(s, X, rows, cols, pcaScores, !pcaRaw); err != nil {
			return err
		}
		out := pcaOutput
		if out == "" {
			out = defaultOutput(in.Path, "pca")
		}
		if err := s.WriteCSV(out); err != nil {
			return err
		}
		if err := in.record(project.Step{Command: "pca", Detail: fmt.Sprintf("%d components", pcaScores), Output: out}, s); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote PCA scores to %s\n", out)
		return nil
	},
}

// addPCAScores fits PCA on X and stores the first k scores as PC1..PCk.
func addPCAScores(s *sample.Sample, X [][]float64, rows []int, cols []string, k int, standardize bool) error {
	pc, err := cluster.FitPCA(X, cols, standardize)
	if err != nil {
		return err
	}
	scores, err := pc.Transform(X, k)
	if err != nil {
		return err
	}
	_, kk := scores.Dims()
	for c := 0; c < kk; c++ {
		col := make([]float64, len(rows))
		for i := range rows {
			col[i] = scores.At(i, c)
		}
		if err := s.SetColumn(fmt.Sprintf("PC%d", c+1), scatter(s.Rows(), rows, col, math.NaN()), sample.TypePCA); err != nil {
			return err
		}
	}
	return nil
}

func pcaMarkdown(pc *cluster.PCA) string {
	var b strings.Builder
	b.WriteString("[PCA]\n")
	if pc.Standardize {
		b.WriteString("Standardized (correlation) PCA\n")
	}
	ratios := pc.ExplainedRatio()
	cum := 0.0
	for i, r := range ratios {
		cum += r
		b.WriteString(fmt.Sprintf("- PC%d: variance %.4g, explained %.1f%% (cumulative %.1f%%)\n", i+1, pc.Variances[i], 100*r, 100*cum))
	}
	b.WriteString("\n[LOADINGS]\n")
	rowsN, colsN := pc.Loadings.Dims()
	header := make([]string, colsN)
	for c := range header {
		header[c] = fmt.Sprintf("PC%d", c+1)
	}
	b.WriteString("| analyte | " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", colsN+1) + "\n")
	for r := 0; r < rowsN; r++ {
		name := fmt.Sprintf("col%d", r)
		if r < len(pc.Columns) {
			name = pc.Columns[r]
		}
		b.WriteString("| " + name)
		for c := 0; c < colsN; c++ {
			b.WriteString(fmt.Sprintf(" | %.3f", pc.Loadings.At(r, c)))
		}
		b.WriteString(" |\n")
	}
	return b.String()
}

func init() {
	rootCmd.AddCommand(pcaCmd)
	pcaCmd.Flags().StringVarP(&pcaProject, "project", "p", "", "project whose sample to use")
	pcaCmd.Flags().StringVarP(&pcaOutput, "output", "o", "", "output CSV for --scores (default <map>_pca.csv)")
	pcaCmd.Flags().StringVar(&pcaDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	pcaCmd.Flags().StringSliceVar(&pcaAnalytes, "analytes", nil, "analytes to include (default all)")
	pcaCmd.Flags().StringVar(&pcaMask, "mask", "", "boolean column restricting which pixels are used")
	pcaCmd.Flags().BoolVar(&pcaLog, "log", false, "log10-transform analytes first")
	pcaCmd.Flags().BoolVar(&pcaRaw, "covariance", false, "use covariance PCA instead of standardizing columns")
	pcaCmd.Flags().IntVar(&pcaScores, "scores", 0, "write this many score columns (PC1..PCn) to a CSV")
}
