package cmd

import (
	"fmt"
	"strconv"

	"github.com/KaramelBytes/lamap-cli/internal/project"
	"github.com/spf13/cobra"
)

var (
	pmProject string
	pmClear   bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Inspect a project or manage per-project settings",
}

var projectShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the project overview: samples and their processing history",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadNamedProject(pmProject)
		if err != nil {
			return err
		}
		md, err := p.Overview()
		if err != nil {
			return err
		}
		fmt.Print(md)
		return nil
	},
}

var projectSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Set or clear a project's processing override (x_column, y_column, negative_method, outlier_method, cluster_method, cluster_k)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadNamedProject(pmProject)
		if err != nil {
			return err
		}
		key, val := args[0], ""
		if !pmClear {
			if len(args) < 2 || args[1] == "" {
				return fmt.Errorf("value is required unless --clear is set")
			}
			val = args[1]
		}
		c := p.Config
		switch key {
		case "x_column":
			c.XColumn = val
		case "y_column":
			c.YColumn = val
		case "negative_method":
			c.NegativeMethod = val
		case "outlier_method":
			c.OutlierMethod = val
		case "cluster_method":
			c.ClusterMethod = val
		case "cluster_k":
			k := 0
			if val != "" {
				if k, err = strconv.Atoi(val); err != nil || k < 1 {
					return fmt.Errorf("invalid int for cluster_k: %v", val)
				}
			}
			c.ClusterK = k
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := p.Save(); err != nil {
			return err
		}
		if pmClear {
			fmt.Printf("✓ Cleared %s for %s\n", key, p.Name)
		} else {
			fmt.Printf("✓ Set %s for %s: %s\n", key, p.Name, val)
		}
		return nil
	},
}

func loadNamedProject(name string) (*project.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("--project is required")
	}
	dir, err := resolveProjectDirByName(name)
	if err != nil {
		return nil, err
	}
	return project.LoadProject(dir)
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectSetCmd)

	projectCmd.PersistentFlags().StringVarP(&pmProject, "project", "p", "", "project name")
	projectSetCmd.Flags().BoolVar(&pmClear, "clear", false, "clear the override")
}
