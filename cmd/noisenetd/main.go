// Command noisenetd runs the OpenNoiseNet telemetry service: device
// registration, noise-event ingestion, geospatial aggregation, and audio
// snippet lifecycle.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "noisenetd <command>",
	Short: "OpenNoiseNet telemetry service",
	Long: `noisenetd ingests noise measurements from registered sensor devices,
stores them in Postgres, serves heatmap and statistics aggregations, and
manages retention of uploaded audio snippets.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to TOML config file (optional; environment overrides)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
