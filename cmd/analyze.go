package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/lamap-cli/internal/analysis"
	"github.com/KaramelBytes/lamap-cli/internal/project"
	"github.com/KaramelBytes/lamap-cli/internal/sample"
	"github.com/KaramelBytes/lamap-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	anaProject      string
	anaOutputPath   string
	anaDescription  string
	anaDelimiter    string
	anaSampleRows   int
	anaGroupBy      string
	anaCorr         bool
	anaOutliers     bool
	anaOutlierThr   float64
	anaChauvenetThr float64
	anaQuiet        bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [map.csv|sample...]",
	Short: "Profile one or more maps: per-analyte statistics, non-positive counts and outliers",
	Long:  "Profile maps given as files, globs or project samples. With --project and no arguments every sample registered in the project is profiled.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var p *project.Project
		if anaProject != "" {
			pp, err := loadNamedProject(anaProject)
			if err != nil {
				return err
			}
			p = pp
		}
		if len(args) == 0 && p == nil {
			return errors.New("nothing to analyze: pass map files or --project")
		}

		opt := analysis.DefaultOptions()
		if cmd.Flags().Changed("sample-rows") {
			opt.SampleRows = anaSampleRows
		}
		lo, err := loadOptions(anaDelimiter, p)
		if err != nil {
			return err
		}
		opt.Load = lo
		opt.GroupBy = anaGroupBy
		opt.Correlations = anaCorr
		opt.Outliers = anaOutliers
		if anaOutlierThr > 0 {
			opt.OutlierThreshold = anaOutlierThr
		}
		if cmd.Flags().Changed("chauvenet-threshold") {
			opt.ChauvenetThreshold = anaChauvenetThr
		} else if cfg != nil && cfg.ChauvenetThreshold > 0 {
			opt.ChauvenetThreshold = cfg.ChauvenetThreshold
		}

		if len(args) == 0 {
			return analyzeProject(p, opt)
		}

		// Sample names resolve through the project; everything else is a path or glob.
		var files []string
		var patterns []string
		for _, arg := range args {
			if p != nil {
				if ref, err := p.FindSample(arg); err == nil {
					files = append(files, ref.Path)
					continue
				}
			}
			patterns = append(patterns, arg)
		}
		if len(patterns) > 0 {
			matched, err := expandGlobs(patterns)
			if err != nil {
				return err
			}
			files = append(files, matched...)
		}

		total := len(files)
		var combined []string
		for i, path := range files {
			if total > 1 && !anaQuiet {
				fmt.Printf("[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			rep, err := analysis.AnalyzeFile(path, opt)
			if err != nil {
				return err
			}
			md := rep.Markdown()
			dlog.Printf("%s: %d analytes, %d warnings", path, len(rep.Cols), len(rep.Warnings))

			if p != nil {
				if err := attachSummary(p, path, md); err != nil {
					return err
				}
				continue
			}
			if anaOutputPath != "" {
				combined = append(combined, md)
				continue
			}
			if !anaQuiet {
				fmt.Println(md)
			}
		}
		if anaOutputPath != "" && len(combined) > 0 {
			if err := utils.SafeWriteFile(anaOutputPath, []byte(strings.Join(combined, "\n"))); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Printf("✓ Wrote analysis to %s\n", anaOutputPath)
		}
		return nil
	},
}

// analyzeProject profiles every sample registered in p and attaches the
// summaries.
func analyzeProject(p *project.Project, opt analysis.Options) error {
	store := sample.NewStore()
	if err := p.LoadSamples(store, opt.Load); err != nil {
		return err
	}
	ids := store.IDs()
	if len(ids) == 0 {
		return fmt.Errorf("project '%s' has no samples; add maps with 'lamap add'", p.Name)
	}
	for i, id := range ids {
		s, _ := store.Get(id)
		if !anaQuiet {
			fmt.Printf("[%d/%d] Processing %s...\n", i+1, len(ids), s.Name)
		}
		rep, err := analysis.Analyze(s, opt)
		if err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
		if err := attachSummary(p, s.Path, rep.Markdown()); err != nil {
			return err
		}
		// profiled maps are not needed again
		store.Remove(id)
	}
	return nil
}

// attachSummary writes md under the project's map_summaries folder and links
// it to the matching sample, registering the map first if needed.
func attachSummary(p *project.Project, path, md string) error {
	outDir := filepath.Join(p.RootDir(), "map_summaries")
	if err := utils.EnsureDir(outDir); err != nil {
		return err
	}
	base := filepath.Base(path)
	outFile := uniquePath(outDir, strings.TrimSuffix(base, filepath.Ext(base)), ".summary.md")
	if !anaQuiet && filepath.Base(outFile) != strings.TrimSuffix(base, filepath.Ext(base))+".summary.md" {
		fmt.Printf("⚠ Detected existing summary, writing to %s to avoid overwrite.\n", filepath.Base(outFile))
	}
	if err := utils.SafeWriteFile(outFile, []byte(md)); err != nil {
		return fmt.Errorf("write project summary: %w", err)
	}

	abs, _ := filepath.Abs(path)
	var ref *project.SampleRef
	for _, id := range p.SampleIDs() {
		if p.Samples[id].Path == abs {
			ref = p.Samples[id]
			break
		}
	}
	if ref == nil {
		desc := anaDescription
		if desc == "" {
			desc = "Auto-registered by analyze"
		}
		lo, err := loadOptions(anaDelimiter, p)
		if err != nil {
			return err
		}
		if ref, err = p.AddSample(path, desc, lo); err != nil {
			return err
		}
	}
	ref.Summary = outFile
	if err := p.RecordStep(ref.ID, project.Step{Command: "analyze", Output: outFile}, nil); err != nil {
		return err
	}
	if err := p.Save(); err != nil {
		return err
	}
	if !anaQuiet {
		fmt.Printf("✓ Added analysis to project '%s' as %s\n", p.Name, filepath.Base(outFile))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaProject, "project", "p", "", "project name to attach summaries")
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write analysis (Markdown)")
	analyzeCmd.Flags().StringVar(&anaDescription, "desc", "", "description when registering a map in the project")
	analyzeCmd.Flags().StringVar(&anaDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	analyzeCmd.Flags().IntVar(&anaSampleRows, "sample-rows", 5, "number of head rows to include (0 disables)")
	analyzeCmd.Flags().StringVar(&anaGroupBy, "group-by", "", "column whose values group pixels (e.g. cluster or mask)")
	analyzeCmd.Flags().BoolVar(&anaCorr, "correlations", false, "compute Pearson correlations among analytes")
	analyzeCmd.Flags().BoolVar(&anaOutliers, "outliers", true, "compute robust (MAD) and Chauvenet outlier counts")
	analyzeCmd.Flags().Float64Var(&anaOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
	analyzeCmd.Flags().Float64Var(&anaChauvenetThr, "chauvenet-threshold", 0.5, "Chauvenet rejection criterion")
	analyzeCmd.Flags().BoolVar(&anaQuiet, "quiet", false, "suppress progress and non-essential output")
}
