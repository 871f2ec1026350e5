package cmd

import (
	"fmt"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/lamap-cli/internal/config"
	"github.com/KaramelBytes/lamap-cli/internal/process"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set lamap configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("projects_dir: %s\n", cfg.ProjectsDir)
		fmt.Printf("x_column: %s\n", cfg.XColumn)
		fmt.Printf("y_column: %s\n", cfg.YColumn)
		if cfg.Delimiter != "" {
			fmt.Printf("delimiter: %q\n", cfg.Delimiter)
		}
		fmt.Printf("negative_method: %s\n", cfg.NegativeMethod)
		fmt.Printf("outlier_method: %s\n", cfg.OutlierMethod)
		fmt.Printf("chauvenet_threshold: %.3f\n", cfg.ChauvenetThreshold)
		fmt.Printf("peirce_params: %d\n", cfg.PeirceParams)
		fmt.Printf("quantile_lower: %g\n", cfg.QuantileLower)
		fmt.Printf("quantile_upper: %g\n", cfg.QuantileUpper)
		fmt.Printf("diff_lower: %g\n", cfg.DiffLower)
		fmt.Printf("diff_upper: %g\n", cfg.DiffUpper)
		fmt.Printf("censor_bins: %d\n", cfg.CensorBins)
		fmt.Printf("censor_degree: %d\n", cfg.CensorDegree)
		fmt.Printf("cluster_method: %s\n", cfg.ClusterMethod)
		fmt.Printf("cluster_k: %d\n", cfg.ClusterK)
		fmt.Printf("cluster_max_iter: %d\n", cfg.ClusterMaxIter)
		fmt.Printf("fuzziness: %g\n", cfg.Fuzziness)
		fmt.Printf("seed: %d\n", cfg.Seed)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigValue(cfg, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("✓ Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	atoi := func(min int) (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < min {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	atof := func() (float64, error) {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid float for %s: %w", key, err)
		}
		return f, nil
	}
	var err error
	switch key {
	case "projects_dir":
		c.ProjectsDir = val
	case "x_column":
		c.XColumn = val
	case "y_column":
		c.YColumn = val
	case "delimiter":
		c.Delimiter = val
	case "negative_method":
		v := strings.ToLower(val)
		switch v {
		case process.NegativeNone, process.NegativeIgnore, process.NegativeMinimum, process.NegativeGaussian:
			c.NegativeMethod = v
		default:
			return fmt.Errorf("invalid negative_method: %s (use none|ignore|minimum|gaussian)", val)
		}
	case "outlier_method":
		v := strings.ToLower(val)
		switch v {
		case process.OutlierNone, process.OutlierChauvenet, process.OutlierPeirce, process.OutlierQuantile:
			c.OutlierMethod = v
		default:
			return fmt.Errorf("invalid outlier_method: %s (use none|chauvenet|peirce|quantile)", val)
		}
	case "chauvenet_threshold":
		c.ChauvenetThreshold, err = atof()
	case "peirce_params":
		c.PeirceParams, err = atoi(1)
	case "quantile_lower":
		c.QuantileLower, err = atof()
	case "quantile_upper":
		c.QuantileUpper, err = atof()
	case "diff_lower":
		c.DiffLower, err = atof()
	case "diff_upper":
		c.DiffUpper, err = atof()
	case "censor_bins":
		c.CensorBins, err = atoi(1)
	case "censor_degree":
		c.CensorDegree, err = atoi(0)
	case "cluster_method":
		v := strings.ToLower(val)
		if v != "kmeans" && v != "fcm" {
			return fmt.Errorf("invalid cluster_method: %s (use kmeans or fcm)", val)
		}
		c.ClusterMethod = v
	case "cluster_k":
		c.ClusterK, err = atoi(1)
	case "cluster_max_iter":
		c.ClusterMaxIter, err = atoi(1)
	case "fuzziness":
		var f float64
		if f, err = atof(); err == nil && f <= 1 {
			err = fmt.Errorf("fuzziness must be > 1")
		}
		c.Fuzziness = f
	case "seed":
		var s int
		s, err = atoi(0)
		c.Seed = int64(s)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
