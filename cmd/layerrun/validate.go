package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/layerrun/internal/config"
)

var validateConfigPath string

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateConfigPath, "config", "pipeline.yaml", "Pipeline definition file")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the pipeline definition without running it",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(validateConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok: %s (%d layers, %d gates)\n",
			cfg.PipelineName, len(cfg.Layers), len(cfg.QualityGates))
	},
}
