package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/lamap-cli/internal/utils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	ProjectsDir string `mapstructure:"projects_dir" yaml:"projects_dir"`

	// Map layout
	XColumn   string `mapstructure:"x_column" yaml:"x_column"`
	YColumn   string `mapstructure:"y_column" yaml:"y_column"`
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter"`

	// Conditioning
	NegativeMethod     string  `mapstructure:"negative_method" yaml:"negative_method"`
	OutlierMethod      string  `mapstructure:"outlier_method" yaml:"outlier_method"`
	ChauvenetThreshold float64 `mapstructure:"chauvenet_threshold" yaml:"chauvenet_threshold"`
	PeirceParams       int     `mapstructure:"peirce_params" yaml:"peirce_params"`
	QuantileLower      float64 `mapstructure:"quantile_lower" yaml:"quantile_lower"`
	QuantileUpper      float64 `mapstructure:"quantile_upper" yaml:"quantile_upper"`
	DiffLower          float64 `mapstructure:"diff_lower" yaml:"diff_lower"`
	DiffUpper          float64 `mapstructure:"diff_upper" yaml:"diff_upper"`
	CensorBins         int     `mapstructure:"censor_bins" yaml:"censor_bins"`
	CensorDegree       int     `mapstructure:"censor_degree" yaml:"censor_degree"`

	// Clustering
	ClusterMethod  string  `mapstructure:"cluster_method" yaml:"cluster_method"`
	ClusterK       int     `mapstructure:"cluster_k" yaml:"cluster_k"`
	ClusterMaxIter int     `mapstructure:"cluster_max_iter" yaml:"cluster_max_iter"`
	Fuzziness      float64 `mapstructure:"fuzziness" yaml:"fuzziness"`
	Seed           int64   `mapstructure:"seed" yaml:"seed"`
}

// Dir returns ~/.lamap.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".lamap"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.lamap/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("LAMAP")
	v.AutomaticEnv()

	v.SetDefault("projects_dir", "")
	v.SetDefault("x_column", "X")
	v.SetDefault("y_column", "Y")
	v.SetDefault("delimiter", "")
	// Conditioning defaults
	v.SetDefault("negative_method", "gaussian")
	v.SetDefault("outlier_method", "quantile")
	v.SetDefault("chauvenet_threshold", 0.5)
	v.SetDefault("peirce_params", 1)
	v.SetDefault("quantile_lower", 0.05)
	v.SetDefault("quantile_upper", 99.5)
	v.SetDefault("diff_lower", 99.0)
	v.SetDefault("diff_upper", 99.0)
	v.SetDefault("censor_bins", 10)
	v.SetDefault("censor_degree", 2)
	// Clustering defaults
	v.SetDefault("cluster_method", "kmeans")
	v.SetDefault("cluster_k", 3)
	v.SetDefault("cluster_max_iter", 300)
	v.SetDefault("fuzziness", 2.0)
	v.SetDefault("seed", 0)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Resolve projects_dir default: ~/.lamap/projects
	if c.ProjectsDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.ProjectsDir = filepath.Join(dir, "projects")
	}
	return &c, nil
}
