// Package rollback executes compensating actions after a designated
// layer failure. Rollback is strictly best-effort: it never retries,
// never aborts on an action failure, and never rolls back a rollback.
package rollback

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/layerrun/internal/config"
	"github.com/fyrsmithlabs/layerrun/internal/metrics"
	"github.com/fyrsmithlabs/layerrun/internal/pipeline"
	"github.com/fyrsmithlabs/layerrun/internal/runner"
)

// Coordinator runs the configured compensating commands.
type Coordinator struct {
	exec    runner.ToolExecutor
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates a coordinator. metrics may be nil.
func New(exec runner.ToolExecutor, logger *zap.Logger, m *metrics.Metrics) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{exec: exec, logger: logger, metrics: m}
}

// Run executes every action in order. One action's failure is logged and
// does not stop the remaining actions: rollback tries to get as much
// cleanup done as possible. failedLayerID is the layer whose failure
// triggered the rollback and is recorded on each action result.
func (c *Coordinator) Run(ctx context.Context, failedLayerID int, actions []config.Action) []*pipeline.ToolResult {
	c.logger.Warn("starting rollback",
		zap.Int("failed_layer_id", failedLayerID),
		zap.Int("actions", len(actions)),
	)

	results := make([]*pipeline.ToolResult, 0, len(actions))
	for _, action := range actions {
		res := c.exec.Execute(ctx, failedLayerID, config.Tool{
			Name:   action.Name,
			Script: action.Script,
			Args:   action.Args,
		})
		results = append(results, res)
		c.metrics.ObserveRollbackAction(res.Success)

		if !res.Success {
			c.logger.Error("rollback action failed",
				zap.String("action", action.Name),
				zap.Int("exit_code", res.ExitCode),
				zap.String("error", res.Error),
			)
		} else {
			c.logger.Info("rollback action completed", zap.String("action", action.Name))
		}
	}

	c.logger.Warn("rollback finished", zap.Int("actions_run", len(results)))
	return results
}
