package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/layerrun/internal/config"
	"github.com/fyrsmithlabs/layerrun/internal/logging"
	"github.com/fyrsmithlabs/layerrun/internal/metrics"
	"github.com/fyrsmithlabs/layerrun/internal/orchestrator"
	"github.com/fyrsmithlabs/layerrun/internal/server"
)

var (
	runConfigPath string
	runStartLayer int
	runDryRun     bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runConfigPath, "config", "pipeline.yaml", "Pipeline definition file")
	runCmd.Flags().IntVar(&runStartLayer, "start-layer", 0, "Resume: skip layers with id below N, trusting checkpointed results")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Print the planned execution order and exit")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the pipeline",
	Long: `Execute the pipeline described by the definition file.

The process exit code is 0 iff the run reaches terminal state SUCCEEDED;
1 otherwise. --dry-run prints the planned layer/tool execution order
without invoking anything and never touches the state file.

Examples:
  # Run the full pipeline
  layerrun run --config pipeline.yaml

  # Resume a crashed run from layer 4
  layerrun run --config pipeline.yaml --start-layer 4

  # Show the plan only
  layerrun run --config pipeline.yaml --dry-run`,
	RunE: runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	m := metrics.New()
	orch := orchestrator.New(cfg, logger, orchestrator.Options{Metrics: m})

	if runDryRun {
		fmt.Fprint(cmd.OutOrStdout(), orch.Plan(runStartLayer))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server.Listen, logger, m.Registry, orch.StateSnapshot)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	result, err := orch.Run(ctx, runStartLayer)
	if err != nil {
		return err
	}

	if _, err := orch.WriteSummary(result); err != nil {
		logger.Warn("failed to write summary artifact", zap.Error(err))
	}
	fmt.Fprint(cmd.OutOrStdout(), orch.Summary(result))

	if !result.Succeeded() {
		return fmt.Errorf("pipeline %s finished with status %s", cfg.PipelineName, result.Status)
	}
	return nil
}
