package pipeline

import (
	"time"
)

// RunStatus represents the orchestrator state machine position.
type RunStatus string

const (
	StatusPending     RunStatus = "pending"
	StatusRunning     RunStatus = "running"
	StatusRollingBack RunStatus = "rolling_back"
	StatusGateCheck   RunStatus = "gate_check"
	StatusSucceeded   RunStatus = "succeeded"
	StatusFailed      RunStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s RunStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ToolResult captures the outcome of a single tool invocation.
// Immutable once produced.
type ToolResult struct {
	// ToolName is the configured name of the tool.
	ToolName string `json:"tool_name"`

	// LayerID is the layer the tool ran in.
	LayerID int `json:"layer_id"`

	// Success is true iff the process exited zero.
	Success bool `json:"success"`

	// Stdout and Stderr are the captured process streams.
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`

	// ExitCode is the process exit code; -1 for spawn failures and timeouts.
	ExitCode int `json:"exit_code"`

	// TimedOut is true when the tool was killed by its timeout.
	TimedOut bool `json:"timed_out,omitempty"`

	// Error describes a spawn failure or timeout, empty otherwise.
	Error string `json:"error,omitempty"`

	// Duration is the wall-clock execution time.
	Duration time.Duration `json:"duration"`

	// Metrics holds named numeric values scraped from stdout.
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// LayerResult captures the outcome of one layer.
//
// Success is true iff every non-optional tool that actually executed
// succeeded, or the layer itself is optional. A layer skipped because of
// unmet dependencies has Success=false, Skipped=true and no tool results.
type LayerResult struct {
	LayerID   int           `json:"layer_id"`
	LayerName string        `json:"layer_name"`
	Success   bool          `json:"success"`
	Skipped   bool          `json:"skipped,omitempty"`
	Error     string        `json:"error,omitempty"`
	Tools     []*ToolResult `json:"tools"`
	Duration  time.Duration `json:"duration"`
}

// Metric looks up a metric produced by the named tool in this layer.
func (r *LayerResult) Metric(toolName, metric string) (float64, bool) {
	for _, t := range r.Tools {
		if t.ToolName != toolName {
			continue
		}
		if v, ok := t.Metrics[metric]; ok {
			return v, true
		}
	}
	return 0, false
}

// ExecutionState is the persisted snapshot of a run. It is overwritten,
// never appended, after every completed layer; the orchestrator is the
// single writer.
type ExecutionState struct {
	RunID        string               `json:"run_id"`
	PipelineName string               `json:"pipeline_name"`
	Status       RunStatus            `json:"status"`
	Layers       map[int]*LayerResult `json:"layers"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// NewExecutionState creates an empty state for a fresh run.
func NewExecutionState(runID, pipelineName string) *ExecutionState {
	return &ExecutionState{
		RunID:        runID,
		PipelineName: pipelineName,
		Status:       StatusPending,
		Layers:       make(map[int]*LayerResult),
		UpdatedAt:    time.Now(),
	}
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (s *ExecutionState) Clone() *ExecutionState {
	if s == nil {
		return nil
	}
	out := &ExecutionState{
		RunID:        s.RunID,
		PipelineName: s.PipelineName,
		Status:       s.Status,
		Layers:       make(map[int]*LayerResult, len(s.Layers)),
		UpdatedAt:    s.UpdatedAt,
	}
	for id, lr := range s.Layers {
		cp := *lr
		cp.Tools = append([]*ToolResult(nil), lr.Tools...)
		out.Layers[id] = &cp
	}
	return out
}

// GateStatus is the outcome of a single quality gate evaluation.
type GateStatus string

const (
	GatePassed       GateStatus = "passed"
	GateFailed       GateStatus = "failed"
	GateNotEvaluated GateStatus = "not_evaluated"
)

// GateOutcome reports one gate's evaluation. Value is meaningful only when
// Status is GatePassed or GateFailed.
type GateOutcome struct {
	Name      string     `json:"name"`
	Status    GateStatus `json:"status"`
	Metric    string     `json:"metric"`
	Value     float64    `json:"value,omitempty"`
	Threshold float64    `json:"threshold"`
	Operator  string     `json:"operator"`
	Reason    string     `json:"reason,omitempty"`
}
