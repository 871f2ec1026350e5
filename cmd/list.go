package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/lamap-cli/internal/project"
	"github.com/spf13/cobra"
)

var (
	listProjects bool
	listSamples  bool
	listProjName string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects or samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		if listProjects == listSamples { // either both true or both false
			return fmt.Errorf("specify exactly one of --projects or --samples")
		}
		if listProjects {
			return listAllProjects()
		}
		if listProjName == "" {
			return fmt.Errorf("--project is required when using --samples")
		}
		projDir, err := resolveProjectDirByName(listProjName)
		if err != nil {
			return err
		}
		p, err := project.LoadProject(projDir)
		if err != nil {
			return err
		}
		if len(p.Samples) == 0 {
			fmt.Println("(no samples)")
			return nil
		}
		for _, id := range p.SampleIDs() {
			r := p.Samples[id]
			fmt.Printf("- %s: %s (%d pixels, %d analytes)", r.ID, r.Name, r.Rows, len(r.Analytes))
			if r.Description != "" {
				fmt.Printf(" %s", r.Description)
			}
			if n := len(r.History); n > 0 {
				last := r.History[n-1]
				fmt.Printf(" [last: %s]", strings.TrimSpace(last.Command+" "+last.Detail))
			}
			fmt.Println()
		}
		return nil
	},
}

func listAllProjects() error {
	root, err := defaultProjectsDir()
	if err != nil {
		return err
	}
	dirs, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	found := false
	for _, e := range dirs {
		if !e.IsDir() {
			continue
		}
		p, err := project.LoadProject(filepath.Join(root, e.Name()))
		if err != nil {
			dlog.Printf("skip %s: %v", e.Name(), err)
			continue
		}
		fmt.Printf("- %s (%d samples)\n", e.Name(), len(p.Samples))
		found = true
	}
	if !found {
		fmt.Println("(no projects)")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listProjects, "projects", false, "list projects")
	listCmd.Flags().BoolVar(&listSamples, "samples", false, "list samples in a project")
	listCmd.Flags().StringVarP(&listProjName, "project", "p", "", "project name for --samples")
}
