// Package cmd defines and implements the CLI commands for the pulse executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcadams/pulse/internal/config"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pulse",
		Short: "A progress-state engine for long-running operations.",
		Long: `pulse tracks the progress of long-running operations as sessions.
Each session reports in one of three modes (indeterminate, normal, or
stepped), aggregates step and task percentages into a single figure, and
fans snapshots out to observers such as renderers, history windows, and
Prometheus metrics.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults plus PULSE_* env)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDemoCmd())

	return cmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pulse: %v\n", err)
		os.Exit(1)
	}
}
