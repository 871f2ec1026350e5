package cmd

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/lamap-cli/internal/project"
	"github.com/KaramelBytes/lamap-cli/internal/sample"
	"github.com/spf13/cobra"
)

var (
	fltProject   string
	fltTable     string
	fltOutput    string
	fltDelimiter string
	fltName      string
	fltTemplate  bool
)

var filterCmd = &cobra.Command{
	Use:   "filter <map.csv|sample>",
	Short: "Apply a .fltr bounds table and store the passing pixels as a mask column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if fltTable == "" {
			return fmt.Errorf("--table is required")
		}
		in, err := resolveInput(args[0], fltProject)
		if err != nil {
			return err
		}
		lo, err := in.options(fltDelimiter)
		if err != nil {
			return err
		}
		s, err := sample.Load(in.Path, lo)
		if err != nil {
			return err
		}
		if fltTemplate {
			rows := templateRows(s)
			if err := sample.WriteFilterTable(fltTable, rows); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote filter template with %d fields to %s\n", len(rows), fltTable)
			return nil
		}

		rows, err := sample.ReadFilterTable(fltTable)
		if err != nil {
			return err
		}
		mask, err := s.ApplyFilters(rows)
		if err != nil {
			return err
		}
		pass := 0
		for _, m := range mask {
			if m {
				pass++
			}
		}
		if err := s.SetMask(fltName, mask); err != nil {
			return err
		}
		out := fltOutput
		if out == "" {
			out = defaultOutput(in.Path, "filtered")
		}
		if err := s.WriteCSV(out); err != nil {
			return err
		}
		enabled := 0
		for _, r := range rows {
			if r.Use {
				enabled++
			}
		}
		fmt.Printf("%d of %d pixels pass %d enabled bounds\n", pass, len(mask), enabled)
		if pass == 0 {
			fmt.Println("⚠ No pixels passed the filter table")
		}
		if err := in.record(project.Step{Command: "filter", Detail: fltTable, Output: out}, s); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote filtered map to %s\n", out)
		return nil
	},
}

// templateRows seeds a table with each analyte's current range, disabled.
func templateRows(s *sample.Sample) []sample.FilterRow {
	var rows []sample.FilterRow
	for _, name := range s.Analytes() {
		r := sample.FilterRow{Field: name, Min: math.Inf(-1), Max: math.Inf(1)}
		if a := s.Attrs[name]; a != nil && !math.IsNaN(a.Lower) && !math.IsNaN(a.Upper) {
			r.Min, r.Max = a.Lower, a.Upper
		}
		rows = append(rows, r)
	}
	return rows
}

func init() {
	rootCmd.AddCommand(filterCmd)
	filterCmd.Flags().StringVarP(&fltProject, "project", "p", "", "project whose sample to use")
	filterCmd.Flags().StringVarP(&fltTable, "table", "t", "", "filter table (.fltr: field,min,max,use)")
	filterCmd.Flags().StringVarP(&fltOutput, "output", "o", "", "output CSV (default <map>_filtered.csv)")
	filterCmd.Flags().StringVar(&fltDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	filterCmd.Flags().StringVar(&fltName, "name", "mask", "name of the mask column")
	filterCmd.Flags().BoolVar(&fltTemplate, "template", false, "write a template table from the map's analyte ranges instead of filtering")
}
