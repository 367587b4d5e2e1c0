package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/layerrun/internal/checkpoint"
	"github.com/fyrsmithlabs/layerrun/internal/config"
	"github.com/fyrsmithlabs/layerrun/internal/gates"
	"github.com/fyrsmithlabs/layerrun/internal/metrics"
	"github.com/fyrsmithlabs/layerrun/internal/pipeline"
	"github.com/fyrsmithlabs/layerrun/internal/rollback"
	"github.com/fyrsmithlabs/layerrun/internal/runner"
	"github.com/fyrsmithlabs/layerrun/internal/scheduler"
)

const instrumentationName = "github.com/fyrsmithlabs/layerrun/internal/orchestrator"

// Options injects collaborators. Zero-value fields get production
// defaults built from the config.
type Options struct {
	// Executor overrides the subprocess-backed tool executor.
	Executor runner.ToolExecutor

	// Store overrides the state store. Ignored when save_state is
	// disabled in the config.
	Store *checkpoint.Store

	// Metrics receives run metrics; may be nil.
	Metrics *metrics.Metrics
}

// RunResult is the outcome of one orchestrator run.
type RunResult struct {
	Status          pipeline.RunStatus
	State           *pipeline.ExecutionState
	Gates           []pipeline.GateOutcome
	RollbackRan     bool
	RollbackResults []*pipeline.ToolResult
	FailedLayerID   int
	Duration        time.Duration
}

// Succeeded reports whether the run reached the SUCCEEDED terminal state.
func (r *RunResult) Succeeded() bool {
	return r.Status == pipeline.StatusSucceeded
}

// Orchestrator composes the scheduler, checkpointer, gate evaluator and
// rollback coordinator for a single run. Created once per run invocation
// and discarded at process exit.
type Orchestrator struct {
	cfg       *config.Config
	sched     *scheduler.Scheduler
	evaluator *gates.Evaluator
	store     *checkpoint.Store
	rollback  *rollback.Coordinator
	logger    *zap.Logger

	tracer      trace.Tracer
	meter       metric.Meter
	runsCounter metric.Int64Counter

	mu    sync.RWMutex
	state *pipeline.ExecutionState
}

// New creates an orchestrator for the given pipeline definition.
func New(cfg *config.Config, logger *zap.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}

	exec := opts.Executor
	if exec == nil {
		exec = runner.NewExecutor(
			runner.NewCommandRunner(logger),
			cfg.Execution.Timeout(),
			logger,
		)
	}

	store := opts.Store
	if store == nil && cfg.Execution.SaveState {
		store = checkpoint.NewStore(cfg.Execution.StateFile, logger)
	}
	if !cfg.Execution.SaveState {
		store = nil
	}

	o := &Orchestrator{
		cfg:       cfg,
		sched:     scheduler.New(exec, cfg.Execution.MaxParallel, logger, opts.Metrics),
		evaluator: gates.New(logger),
		store:     store,
		rollback:  rollback.New(exec, logger, opts.Metrics),
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
	}
	o.initMetrics()
	return o
}

func (o *Orchestrator) initMetrics() {
	var err error
	o.runsCounter, err = o.meter.Int64Counter(
		"layerrun.runs_total",
		metric.WithDescription("Total pipeline runs by terminal status"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		o.logger.Warn("failed to create runs counter", zap.Error(err))
	}
}

// StateSnapshot returns a deep copy of the live execution state for
// concurrent readers such as the status server.
func (o *Orchestrator) StateSnapshot() *pipeline.ExecutionState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state.Clone()
}

func (o *Orchestrator) setState(state *pipeline.ExecutionState) {
	o.mu.Lock()
	o.state = state.Clone()
	o.mu.Unlock()
}

// Run executes the pipeline, optionally resuming from startLayer. Layers
// with id below startLayer are not re-run; their previously persisted
// results are trusted for dependency checks. The returned error is
// non-nil only for resume problems detected before any layer executes.
func (o *Orchestrator) Run(ctx context.Context, startLayer int) (*RunResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.run")
	defer span.End()

	span.SetAttributes(
		attribute.String("pipeline", o.cfg.PipelineName),
		attribute.Int("start_layer", startLayer),
		attribute.Int("layer_count", len(o.cfg.Layers)),
	)

	start := time.Now()
	state := pipeline.NewExecutionState(uuid.New().String(), o.cfg.PipelineName)

	if startLayer > 0 {
		if err := o.seedResumeState(state, startLayer); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	o.logger.Info("starting pipeline",
		zap.String("pipeline", o.cfg.PipelineName),
		zap.String("run_id", state.RunID),
		zap.Int("layers", len(o.cfg.Layers)),
		zap.Int("start_layer", startLayer),
	)

	state.Status = pipeline.StatusRunning
	o.setState(state)

	result := &RunResult{State: state}
	hardFailed := false
	toleratedFailure := false

	for _, layer := range o.cfg.Layers {
		if layer.ID < startLayer {
			o.logger.Info("skipping layer, resumed from checkpoint",
				zap.Int("layer_id", layer.ID),
				zap.String("layer_name", layer.Name),
			)
			continue
		}

		// After a hard failure only always_run layers (cleanup work)
		// still execute; everything else is left without an entry.
		if hardFailed && !layer.AlwaysRun {
			continue
		}

		layerResult := o.sched.Execute(ctx, layer, state.Layers)
		state.Layers[layer.ID] = layerResult
		state.UpdatedAt = time.Now()
		o.setState(state)
		o.checkpoint(state)

		if layerResult.Success || layer.Optional {
			continue
		}
		if o.cfg.Execution.ContinueOnFailure {
			// Progression continues, but the final verdict still
			// reflects the failure.
			toleratedFailure = true
			if result.FailedLayerID == 0 {
				result.FailedLayerID = layer.ID
			}
			o.logger.Warn("layer failed, continuing",
				zap.Int("layer_id", layer.ID),
				zap.String("layer_name", layer.Name),
			)
			continue
		}

		// Hard failure: the pipeline has decided to stop.
		hardFailed = true
		result.FailedLayerID = layer.ID
		o.logger.Error("layer failed, stopping pipeline",
			zap.Int("layer_id", layer.ID),
			zap.String("layer_name", layer.Name),
		)

		if o.cfg.Rollback.Triggered(layer.ID) {
			state.Status = pipeline.StatusRollingBack
			o.setState(state)
			result.RollbackRan = true
			result.RollbackResults = o.rollback.Run(ctx, layer.ID, o.cfg.Rollback.Actions)
		}
	}

	if hardFailed {
		result.Status = pipeline.StatusFailed
	} else {
		// Gate evaluation runs after all layers regardless of tolerated
		// per-layer failures.
		state.Status = pipeline.StatusGateCheck
		o.setState(state)
		result.Gates = o.evaluator.Evaluate(state.Layers, o.cfg.QualityGates)
		if toleratedFailure || len(gates.Failures(result.Gates)) > 0 {
			result.Status = pipeline.StatusFailed
		} else {
			result.Status = pipeline.StatusSucceeded
		}
	}

	state.Status = result.Status
	state.UpdatedAt = time.Now()
	o.setState(state)
	o.checkpoint(state)

	result.Duration = time.Since(start)
	o.notify(result)

	if o.runsCounter != nil {
		o.runsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", string(result.Status)),
		))
	}
	span.SetAttributes(attribute.String("status", string(result.Status)))

	o.logger.Info("pipeline finished",
		zap.String("pipeline", o.cfg.PipelineName),
		zap.String("run_id", state.RunID),
		zap.String("status", string(result.Status)),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

// seedResumeState loads the persisted snapshot and carries over results
// for layers below startLayer.
func (o *Orchestrator) seedResumeState(state *pipeline.ExecutionState, startLayer int) error {
	if o.store == nil {
		return fmt.Errorf("cannot resume from layer %d: state persistence is disabled", startLayer)
	}
	persisted, err := o.store.Load()
	if err != nil {
		return fmt.Errorf("cannot resume from layer %d: %w", startLayer, err)
	}
	for id, lr := range persisted.Layers {
		if id < startLayer {
			state.Layers[id] = lr
		}
	}
	o.logger.Info("resumed from checkpoint",
		zap.Int("start_layer", startLayer),
		zap.Int("carried_layers", len(state.Layers)),
	)
	return nil
}

// checkpoint persists the state snapshot. A write failure jeopardizes
// resume but never fails the run.
func (o *Orchestrator) checkpoint(state *pipeline.ExecutionState) {
	if o.store == nil {
		return
	}
	if err := o.store.Save(state); err != nil {
		o.logger.Error("failed to checkpoint state", zap.Error(err))
	}
}

// notify emits the configured notifications for the terminal state,
// substituting the {layer_id} token.
func (o *Orchestrator) notify(result *RunResult) {
	var (
		entries []config.Notification
		layerID int
	)
	if result.Succeeded() {
		entries = o.cfg.Notifications.OnSuccess
		if n := len(o.cfg.Layers); n > 0 {
			layerID = o.cfg.Layers[n-1].ID
		}
	} else {
		entries = o.cfg.Notifications.OnFailure
		layerID = result.FailedLayerID
	}

	for _, n := range entries {
		msg := strings.ReplaceAll(n.Message, "{layer_id}", strconv.Itoa(layerID))
		switch n.Level {
		case "debug":
			o.logger.Debug(msg)
		case "warn":
			o.logger.Warn(msg)
		case "error":
			o.logger.Error(msg)
		default:
			o.logger.Info(msg)
		}
	}
}
