// Package main implements the layerrun CLI for executing layered
// validation pipelines.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "layerrun",
	Short: "Layered pipeline orchestration engine",
	Long: `layerrun executes an ordered set of layers, each containing one or
more external tools, enforcing inter-layer dependencies, parallel or
sequential dispatch per layer, quality gates, recoverable state, and
rollback on designated failures.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
