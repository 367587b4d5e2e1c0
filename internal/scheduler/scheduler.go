// Package scheduler executes the tools of a single layer, enforcing
// dependency checks, the parallel/sequential dispatch modes, and the
// layer success rules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/layerrun/internal/config"
	"github.com/fyrsmithlabs/layerrun/internal/metrics"
	"github.com/fyrsmithlabs/layerrun/internal/pipeline"
	"github.com/fyrsmithlabs/layerrun/internal/runner"
)

const instrumentationName = "github.com/fyrsmithlabs/layerrun/internal/scheduler"

// Scheduler runs one layer at a time. Parallel layers fan tools out over a
// worker pool bounded by maxParallel; sequential layers short-circuit on
// the first non-optional failure unless the layer is marked always_run.
type Scheduler struct {
	exec        runner.ToolExecutor
	maxParallel int
	logger      *zap.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

// New creates a scheduler. metrics may be nil.
func New(exec runner.ToolExecutor, maxParallel int, logger *zap.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Scheduler{
		exec:        exec,
		maxParallel: maxParallel,
		logger:      logger,
		metrics:     m,
		tracer:      otel.Tracer(instrumentationName),
	}
}

// Execute runs the layer against the results of previously completed
// layers. It never returns an error: every failure mode is folded into
// the LayerResult.
func (s *Scheduler) Execute(ctx context.Context, layer config.Layer, prior map[int]*pipeline.LayerResult) *pipeline.LayerResult {
	ctx, span := s.tracer.Start(ctx, "scheduler.execute_layer")
	defer span.End()

	span.SetAttributes(
		attribute.Int("layer_id", layer.ID),
		attribute.String("layer_name", layer.Name),
		attribute.Bool("parallel", layer.Parallel),
		attribute.Int("tool_count", len(layer.Tools)),
	)

	start := time.Now()

	// Dependency check happens before anything else; an unmet dependency
	// means no tool is ever spawned.
	if unmet := s.unmetDependency(layer, prior); unmet != "" {
		s.logger.Warn("skipping layer, dependency not met",
			zap.Int("layer_id", layer.ID),
			zap.String("layer_name", layer.Name),
			zap.String("reason", unmet),
		)
		result := &pipeline.LayerResult{
			LayerID:   layer.ID,
			LayerName: layer.Name,
			Success:   false,
			Skipped:   true,
			Error:     unmet,
			Tools:     []*pipeline.ToolResult{},
			Duration:  time.Since(start),
		}
		s.metrics.ObserveLayer(false, true)
		return result
	}

	if layer.Delay() > 0 {
		s.logger.Info("delaying layer start",
			zap.Int("layer_id", layer.ID),
			zap.Duration("delay", layer.Delay()),
		)
		select {
		case <-time.After(layer.Delay()):
		case <-ctx.Done():
			result := &pipeline.LayerResult{
				LayerID:   layer.ID,
				LayerName: layer.Name,
				Success:   false,
				Error:     ctx.Err().Error(),
				Tools:     []*pipeline.ToolResult{},
				Duration:  time.Since(start),
			}
			s.metrics.ObserveLayer(false, false)
			return result
		}
	}

	var tools []*pipeline.ToolResult
	if layer.Parallel {
		tools = s.runParallel(ctx, layer)
	} else {
		tools = s.runSequential(ctx, layer)
	}

	result := &pipeline.LayerResult{
		LayerID:   layer.ID,
		LayerName: layer.Name,
		Success:   layerSuccess(layer, tools),
		Tools:     tools,
		Duration:  time.Since(start),
	}

	for _, t := range tools {
		s.metrics.ObserveTool(t.Success, t.Duration.Seconds())
	}
	s.metrics.ObserveLayer(result.Success, false)

	s.logger.Info("layer completed",
		zap.Int("layer_id", layer.ID),
		zap.String("layer_name", layer.Name),
		zap.Bool("success", result.Success),
		zap.Int("tools", len(tools)),
		zap.Duration("duration", result.Duration),
	)
	span.SetAttributes(attribute.Bool("success", result.Success))

	return result
}

// unmetDependency returns a description of the first unmet dependency, or
// "" when all dependencies completed successfully.
func (s *Scheduler) unmetDependency(layer config.Layer, prior map[int]*pipeline.LayerResult) string {
	for _, dep := range layer.Dependencies {
		res, ok := prior[dep]
		if !ok {
			return fmt.Sprintf("dependency layer %d did not run", dep)
		}
		if !res.Success {
			return fmt.Sprintf("dependency layer %d failed", dep)
		}
	}
	return ""
}

// runParallel fans every tool out as an independent task bounded by the
// worker-pool limit. Results arrive in completion order.
func (s *Scheduler) runParallel(ctx context.Context, layer config.Layer) []*pipeline.ToolResult {
	sem := make(chan struct{}, s.maxParallel)
	results := make(chan *pipeline.ToolResult, len(layer.Tools))

	var wg sync.WaitGroup
	for _, tool := range layer.Tools {
		wg.Add(1)
		go func(tool config.Tool) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- s.exec.Execute(ctx, layer.ID, tool)
		}(tool)
	}
	wg.Wait()
	close(results)

	collected := make([]*pipeline.ToolResult, 0, len(layer.Tools))
	for r := range results {
		collected = append(collected, r)
	}
	return collected
}

// runSequential executes tools strictly in declared order, stopping after
// a non-optional failure unless the layer is marked always_run.
func (s *Scheduler) runSequential(ctx context.Context, layer config.Layer) []*pipeline.ToolResult {
	collected := make([]*pipeline.ToolResult, 0, len(layer.Tools))
	for _, tool := range layer.Tools {
		res := s.exec.Execute(ctx, layer.ID, tool)
		collected = append(collected, res)
		if !res.Success && !tool.Optional && !layer.AlwaysRun {
			s.logger.Warn("stopping layer after tool failure",
				zap.Int("layer_id", layer.ID),
				zap.String("tool", tool.Name),
			)
			break
		}
	}
	return collected
}

// layerSuccess applies the layer success rules: an optional layer always
// succeeds; otherwise every non-optional tool among those actually
// executed must have succeeded. A layer with zero tools trivially
// succeeds.
func layerSuccess(layer config.Layer, results []*pipeline.ToolResult) bool {
	if layer.Optional {
		return true
	}
	optional := make(map[string]bool, len(layer.Tools))
	for _, t := range layer.Tools {
		optional[t.Name] = t.Optional
	}
	for _, r := range results {
		if !r.Success && !optional[r.ToolName] {
			return false
		}
	}
	return true
}
