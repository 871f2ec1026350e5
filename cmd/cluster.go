package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"

	"github.com/KaramelBytes/lamap-cli/internal/cluster"
	"github.com/KaramelBytes/lamap-cli/internal/project"
	"github.com/KaramelBytes/lamap-cli/internal/sample"
	"github.com/spf13/cobra"
)

var (
	clProject    string
	clOutput     string
	clDelimiter  string
	clMethod     string
	clK          int
	clMaxIter    int
	clFuzziness  float64
	clSeed       int64
	clAnalytes   []string
	clMask       string
	clName       string
	clLog        bool
	clPCA        int
	clMembership bool
	clSubsample  int
)

var clusterCmd = &cobra.Command{
	Use:   "cluster <map.csv|sample>",
	Short: "Cluster pixels by analyte composition (k-means or fuzzy c-means)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := resolveInput(args[0], clProject)
		if err != nil {
			return err
		}
		lo, err := in.options(clDelimiter)
		if err != nil {
			return err
		}
		lo.Labels = []string{clName}
		s, err := sample.Load(in.Path, lo)
		if err != nil {
			return err
		}
		X, rows, cols, err := featureMatrix(s, clAnalytes, clMask, clLog)
		if err != nil {
			return err
		}
		opt := clusterOptions(cmd, in.Project)
		dlog.Printf("cluster %s: method=%s k=%d on %d pixels x %d analytes", s.Name, opt.Method, opt.K, len(X), len(cols))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		res, err := cluster.Run(ctx, X, opt)
		if err != nil {
			return err
		}

		labels := make([]int, s.Rows())
		for i := range labels {
			labels[i] = -1
		}
		sizes := make([]int, opt.K)
		for k, r := range rows {
			labels[r] = res.Labels[k]
			sizes[res.Labels[k]]++
		}
		if err := s.SetLabels(clName, labels); err != nil {
			return err
		}
		if clMembership && res.Membership != nil {
			for c := 0; c < opt.K; c++ {
				m := make([]float64, len(rows))
				for k := range rows {
					m[k] = res.Membership[k][c]
				}
				if err := s.SetColumn(fmt.Sprintf("%s_m%d", clName, c), scatter(s.Rows(), rows, m, math.NaN()), sample.TypeCluster); err != nil {
					return err
				}
			}
		}
		if clPCA > 0 {
			if err := addPCAScores(s, X, rows, cols, clPCA, true); err != nil {
				return err
			}
		}

		out := clOutput
		if out == "" {
			out = defaultOutput(in.Path, "clustered")
		}
		if err := s.WriteCSV(out); err != nil {
			return err
		}

		fmt.Printf("[CLUSTERS] %s, k=%d, %d iterations, score %.4g\n", res.Method, opt.K, res.Iter, res.Score)
		for c, n := range sizes {
			fmt.Printf("- %s=%d: %d pixels", clName, c, n)
			if c < len(res.Centers) {
				parts := make([]string, len(cols))
				for j, name := range cols {
					parts[j] = fmt.Sprintf("%s %.4g", name, res.Centers[c][j])
				}
				fmt.Printf(" (%s)", strings.Join(parts, ", "))
			}
			fmt.Println()
		}
		if skipped := s.Rows() - len(rows); skipped > 0 {
			fmt.Printf("⚠ %d pixels excluded (masked or incomplete), labelled -1\n", skipped)
		}
		if err := in.record(project.Step{Command: "cluster", Detail: fmt.Sprintf("%s k=%d", res.Method, opt.K), Output: out}, s); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote clustered map to %s\n", out)
		return nil
	},
}

func clusterOptions(cmd *cobra.Command, p *project.Project) cluster.Options {
	opt := cluster.Options{Method: cluster.MethodKMeans, K: 3, MaxIter: 300, Fuzziness: 2}
	if cfg != nil {
		if cfg.ClusterMethod != "" {
			opt.Method = cfg.ClusterMethod
		}
		if cfg.ClusterK > 0 {
			opt.K = cfg.ClusterK
		}
		if cfg.ClusterMaxIter > 0 {
			opt.MaxIter = cfg.ClusterMaxIter
		}
		if cfg.Fuzziness > 1 {
			opt.Fuzziness = cfg.Fuzziness
		}
		opt.Seed = cfg.Seed
	}
	if p != nil && p.Config != nil {
		if p.Config.ClusterMethod != "" {
			opt.Method = p.Config.ClusterMethod
		}
		if p.Config.ClusterK > 0 {
			opt.K = p.Config.ClusterK
		}
	}
	f := cmd.Flags()
	if f.Changed("method") {
		opt.Method = clMethod
	}
	if f.Changed("clusters") {
		opt.K = clK
	}
	if f.Changed("max-iter") {
		opt.MaxIter = clMaxIter
	}
	if f.Changed("fuzziness") {
		opt.Fuzziness = clFuzziness
	}
	if f.Changed("seed") {
		opt.Seed = clSeed
	}
	opt.Subsample = clSubsample
	return opt
}

func init() {
	rootCmd.AddCommand(clusterCmd)
	clusterCmd.Flags().StringVarP(&clProject, "project", "p", "", "project whose sample (or settings) to use")
	clusterCmd.Flags().StringVarP(&clOutput, "output", "o", "", "output CSV (default <map>_clustered.csv)")
	clusterCmd.Flags().StringVar(&clDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	clusterCmd.Flags().StringVar(&clMethod, "method", "", "clustering method: kmeans|fcm")
	clusterCmd.Flags().IntVarP(&clK, "clusters", "k", 3, "number of clusters")
	clusterCmd.Flags().IntVar(&clMaxIter, "max-iter", 300, "maximum iterations")
	clusterCmd.Flags().Float64Var(&clFuzziness, "fuzziness", 2, "fuzzy c-means exponent m (> 1)")
	clusterCmd.Flags().Int64Var(&clSeed, "seed", 0, "random seed for initial centers")
	clusterCmd.Flags().StringSliceVar(&clAnalytes, "analytes", nil, "analytes used as features (default all)")
	clusterCmd.Flags().StringVar(&clMask, "mask", "", "boolean column restricting which pixels are clustered")
	clusterCmd.Flags().StringVar(&clName, "name", "cluster", "name of the label column")
	clusterCmd.Flags().BoolVar(&clLog, "log", false, "log10-transform analytes before clustering")
	clusterCmd.Flags().IntVar(&clPCA, "pca", 0, "also write this many PCA score columns (standardized)")
	clusterCmd.Flags().BoolVar(&clMembership, "membership", false, "fcm: write per-cluster membership columns")
	clusterCmd.Flags().IntVar(&clSubsample, "subsample", 0, "kmeans: fit on this many random pixels, then assign every pixel (0 = all)")
}
