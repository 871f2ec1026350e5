package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/KaramelBytes/lamap-cli/internal/process"
	"github.com/KaramelBytes/lamap-cli/internal/project"
	"github.com/KaramelBytes/lamap-cli/internal/sample"
	"github.com/KaramelBytes/lamap-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	condProject   string
	condOutput    string
	condDelimiter string
	condNegative  string
	condOutlier   string
	condAnalytes  []string
	condThreshold float64
	condPeirce    int
	condBins      int
	condDegree    int
	condAxis      string
	condMaxVal    float64
	condNonComp   bool
	condReport    string
)

var conditionCmd = &cobra.Command{
	Use:   "condition <map.csv|sample>",
	Short: "Replace non-positive values and reject or clip outliers per analyte",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := resolveInput(args[0], condProject)
		if err != nil {
			return err
		}
		lo, err := in.options(condDelimiter)
		if err != nil {
			return err
		}
		s, err := sample.Load(in.Path, lo)
		if err != nil {
			return err
		}
		opt := conditionOptions(cmd, in.Project)
		dlog.Printf("condition %s: negative=%s outlier=%s bins=%d degree=%d", s.Name, opt.Negative, opt.Outlier, opt.Censor.Bins, opt.Censor.Degree)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		rep, err := process.Condition(ctx, s, opt)
		if err != nil {
			return err
		}
		for _, r := range rep.Results {
			if r.Warning != "" {
				fmt.Fprintf(os.Stderr, "⚠ Warning: %s: %s\n", r.Analyte, r.Warning)
			}
		}
		s.UpdateBounds()

		out := condOutput
		if out == "" {
			out = defaultOutput(in.Path, "conditioned")
		}
		if err := s.WriteCSV(out); err != nil {
			return err
		}
		md := rep.Markdown()
		if condReport != "" {
			if err := utils.SafeWriteFile(condReport, []byte(md)); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
		} else {
			fmt.Print(md)
		}
		if err := in.record(project.Step{Command: "condition", Detail: opt.Negative + "/" + opt.Outlier, Output: out}, s); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote conditioned map to %s\n", out)
		return nil
	},
}

// conditionOptions layers flags over project overrides over global config.
func conditionOptions(cmd *cobra.Command, p *project.Project) process.Options {
	opt := process.DefaultOptions()
	if cfg != nil {
		if cfg.NegativeMethod != "" {
			opt.Negative = cfg.NegativeMethod
		}
		if cfg.OutlierMethod != "" {
			opt.Outlier = cfg.OutlierMethod
		}
		if cfg.ChauvenetThreshold > 0 {
			opt.ChauvenetThreshold = cfg.ChauvenetThreshold
		}
		if cfg.PeirceParams > 0 {
			opt.PeirceParams = cfg.PeirceParams
		}
		if cfg.QuantileUpper > 0 {
			opt.Quantile.LowerQuantile = cfg.QuantileLower
			opt.Quantile.UpperQuantile = cfg.QuantileUpper
		}
		if cfg.DiffUpper > 0 {
			opt.Quantile.DiffLower = cfg.DiffLower
			opt.Quantile.DiffUpper = cfg.DiffUpper
		}
		if cfg.CensorBins > 0 {
			opt.Censor.Bins = cfg.CensorBins
		}
		opt.Censor.Degree = cfg.CensorDegree
	}
	if p != nil && p.Config != nil {
		if p.Config.NegativeMethod != "" {
			opt.Negative = p.Config.NegativeMethod
		}
		if p.Config.OutlierMethod != "" {
			opt.Outlier = p.Config.OutlierMethod
		}
	}
	f := cmd.Flags()
	if f.Changed("negative") {
		opt.Negative = condNegative
	}
	if f.Changed("outlier") {
		opt.Outlier = condOutlier
	}
	if f.Changed("threshold") {
		opt.ChauvenetThreshold = condThreshold
	}
	if f.Changed("peirce-params") {
		opt.PeirceParams = condPeirce
	}
	if f.Changed("bins") {
		opt.Censor.Bins = condBins
	}
	if f.Changed("degree") {
		opt.Censor.Degree = condDegree
	}
	if f.Changed("max") {
		opt.Quantile.MaxVal = condMaxVal
	}
	if condNonComp {
		opt.Quantile.Compositional = false
	}
	opt.Negative = strings.ToLower(opt.Negative)
	opt.Outlier = strings.ToLower(opt.Outlier)
	opt.Analytes = condAnalytes
	opt.Axis = condAxis
	return opt
}

func init() {
	rootCmd.AddCommand(conditionCmd)
	conditionCmd.Flags().StringVarP(&condProject, "project", "p", "", "project whose sample (or settings) to use")
	conditionCmd.Flags().StringVarP(&condOutput, "output", "o", "", "output CSV (default <map>_conditioned.csv)")
	conditionCmd.Flags().StringVar(&condDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	conditionCmd.Flags().StringVar(&condNegative, "negative", "", "negative-value method: none|ignore|minimum|gaussian")
	conditionCmd.Flags().StringVar(&condOutlier, "outlier", "", "outlier method: none|chauvenet|peirce|quantile")
	conditionCmd.Flags().StringSliceVar(&condAnalytes, "analytes", nil, "analytes to process (default all)")
	conditionCmd.Flags().Float64Var(&condThreshold, "threshold", 0.5, "Chauvenet rejection criterion")
	conditionCmd.Flags().IntVar(&condPeirce, "peirce-params", 1, "number of model unknowns for Peirce's criterion")
	conditionCmd.Flags().IntVar(&condBins, "bins", 10, "spatial bins for the censored Gaussian fit")
	conditionCmd.Flags().IntVar(&condDegree, "degree", 2, "polynomial degree smoothing per-bin fits")
	conditionCmd.Flags().StringVar(&condAxis, "axis", "", "coordinate column binned by the censored fit (default X column)")
	conditionCmd.Flags().Float64Var(&condMaxVal, "max", 0, "upper cap applied after quantile clipping (0 = none)")
	conditionCmd.Flags().BoolVar(&condNonComp, "non-compositional", false, "shift data instead of clamping to epsilon before log transform")
	conditionCmd.Flags().StringVar(&condReport, "report", "", "write the conditioning report to this path instead of stdout")
}
