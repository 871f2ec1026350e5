package cmd

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/lamap-cli/internal/chem"
	"github.com/spf13/cobra"
)

var mwOxide string

var mwCmd = &cobra.Command{
	Use:   "mw <formula...>",
	Short: "Molecular weight of chemical formulas, or an element-to-oxide factor",
	Example: `  lamap mw H2O "Ca(OH)2" "Al2(SO4)3"
  lamap mw --oxide Fe2O3 Fe`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if mwOxide != "" {
			for _, el := range args {
				f, err := chem.OxideFactor(el, mwOxide)
				if err != nil {
					return err
				}
				fmt.Printf("%s -> %s: %.5f\n", el, mwOxide, f)
			}
			return nil
		}
		var failed int
		for _, formula := range args {
			w, err := chem.MolecularWeight(formula)
			if err != nil {
				var fe *chem.FormulaError
				if errors.As(err, &fe) {
					dlog.Printf("formula %q failed at position %d", fe.Formula, fe.Pos)
				}
				fmt.Printf("%s: ✗ %v\n", formula, err)
				failed++
				continue
			}
			fmt.Printf("%s: %.4f g/mol\n", formula, w)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d formulas could not be parsed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mwCmd)
	mwCmd.Flags().StringVar(&mwOxide, "oxide", "", "print the factor converting each element argument to this oxide")
}
