package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/layerrun/internal/config"
	"github.com/fyrsmithlabs/layerrun/internal/pipeline"
)

// ToolExecutor produces a ToolResult for one tool invocation. The
// scheduler and rollback coordinator depend on this interface so tests can
// substitute fakes without spawning processes.
type ToolExecutor interface {
	Execute(ctx context.Context, layerID int, tool config.Tool) *pipeline.ToolResult
}

// Executor wraps a CommandRunner and the metric parser to produce uniform
// tool results.
type Executor struct {
	runner  *CommandRunner
	timeout time.Duration
	logger  *zap.Logger
}

// NewExecutor creates an executor with the given per-tool timeout.
func NewExecutor(runner *CommandRunner, timeout time.Duration, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		runner:  runner,
		timeout: timeout,
		logger:  logger,
	}
}

// Execute runs the tool and converts the raw output into a ToolResult,
// scraping metrics from stdout.
func (e *Executor) Execute(ctx context.Context, layerID int, tool config.Tool) *pipeline.ToolResult {
	e.logger.Debug("executing tool",
		zap.Int("layer_id", layerID),
		zap.String("tool", tool.Name),
		zap.String("script", tool.Script),
	)

	out := e.runner.Run(ctx, tool.Script, tool.Args, e.timeout)

	result := &pipeline.ToolResult{
		ToolName: tool.Name,
		LayerID:  layerID,
		Success:  out.Success(),
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		ExitCode: out.ExitCode,
		TimedOut: out.TimedOut,
		Error:    out.Error,
		Duration: out.Duration,
		Metrics:  ParseMetrics(out.Stdout),
	}

	if result.Success {
		e.logger.Info("tool succeeded",
			zap.Int("layer_id", layerID),
			zap.String("tool", tool.Name),
			zap.Duration("duration", result.Duration),
		)
	} else {
		e.logger.Warn("tool failed",
			zap.Int("layer_id", layerID),
			zap.String("tool", tool.Name),
			zap.Int("exit_code", result.ExitCode),
			zap.Bool("timed_out", result.TimedOut),
			zap.Duration("duration", result.Duration),
		)
	}

	return result
}
