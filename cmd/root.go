package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	cfgpkg "github.com/KaramelBytes/lamap-cli/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool

	// Loaded configuration
	cfg *cfgpkg.Global

	// dlog prints only with --debug.
	dlog = log.New(io.Discard, "[debug] ", log.Ltime)
)

var rootCmd = &cobra.Command{
	Use:   "lamap",
	Short: "lamap: condition, filter and cluster LA-ICP-MS maps",
	Long: `lamap processes laser ablation ICP-MS elemental maps stored as CSV: it profiles
analyte channels, replaces censored (non-positive) values, rejects outliers,
applies filter tables, clusters pixels and computes principal components.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			dlog.SetOutput(os.Stderr)
		} else {
			dlog.SetOutput(io.Discard)
		}
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.lamap/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c
}
