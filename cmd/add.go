package cmd

import (
	"fmt"

	"github.com/KaramelBytes/lamap-cli/internal/project"
	"github.com/spf13/cobra"
)

var (
	addProjectName string
	addDesc        string
	addDelimiter   string
)

var addCmd = &cobra.Command{
	Use:   "add <map.csv...>",
	Short: "Register one or more maps in a project",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if addProjectName == "" {
			return fmt.Errorf("--project is required")
		}
		projDir, err := resolveProjectDirByName(addProjectName)
		if err != nil {
			return err
		}
		p, err := project.LoadProject(projDir)
		if err != nil {
			return err
		}
		opt, err := loadOptions(addDelimiter, p)
		if err != nil {
			return err
		}
		files, err := expandGlobs(args)
		if err != nil {
			return err
		}
		for _, file := range files {
			ref, err := p.AddSample(file, addDesc, opt)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Sample added: %s (%d pixels, %d analytes) id=%s\n", ref.Name, ref.Rows, len(ref.Analytes), ref.ID)
		}
		return p.Save()
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVarP(&addProjectName, "project", "p", "", "project name")
	addCmd.Flags().StringVar(&addDesc, "desc", "", "sample description")
	addCmd.Flags().StringVar(&addDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
}
