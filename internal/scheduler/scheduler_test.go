package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/layerrun/internal/config"
	"github.com/fyrsmithlabs/layerrun/internal/pipeline"
)

// fakeExecutor records invocations instead of spawning processes. It
// tracks the peak number of concurrently active executions so tests can
// assert the worker-pool bound.
type fakeExecutor struct {
	mu        sync.Mutex
	calls     []string
	active    int
	maxActive int

	fail    map[string]bool
	block   time.Duration
	metrics map[string]map[string]float64
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{fail: make(map[string]bool)}
}

func (f *fakeExecutor) Execute(ctx context.Context, layerID int, tool config.Tool) *pipeline.ToolResult {
	f.mu.Lock()
	f.calls = append(f.calls, tool.Name)
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()

	if f.block > 0 {
		time.Sleep(f.block)
	}

	f.mu.Lock()
	f.active--
	f.mu.Unlock()

	return &pipeline.ToolResult{
		ToolName: tool.Name,
		LayerID:  layerID,
		Success:  !f.fail[tool.Name],
		Metrics:  f.metrics[tool.Name],
		Duration: f.block,
	}
}

func (f *fakeExecutor) callNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func tools(names ...string) []config.Tool {
	out := make([]config.Tool, 0, len(names))
	for _, n := range names {
		out = append(out, config.Tool{Name: n, Script: "true"})
	}
	return out
}

func TestExecute_UnmetDependencySkipsLayer(t *testing.T) {
	exec := newFakeExecutor()
	s := New(exec, 4, zap.NewNop(), nil)

	layer := config.Layer{ID: 3, Name: "gated", Dependencies: []int{2}, Tools: tools("a", "b")}

	// Dependency never ran.
	res := s.Execute(context.Background(), layer, map[int]*pipeline.LayerResult{})
	assert.False(t, res.Success)
	assert.True(t, res.Skipped)
	assert.Empty(t, res.Tools)
	assert.Empty(t, exec.callNames(), "no tool may be spawned for a skipped layer")

	// Dependency ran and failed.
	prior := map[int]*pipeline.LayerResult{2: {LayerID: 2, Success: false}}
	res = s.Execute(context.Background(), layer, prior)
	assert.False(t, res.Success)
	assert.True(t, res.Skipped)
	assert.Contains(t, res.Error, "dependency layer 2 failed")
	assert.Empty(t, exec.callNames())
}

func TestExecute_SequentialShortCircuit(t *testing.T) {
	exec := newFakeExecutor()
	exec.fail["b"] = true
	s := New(exec, 4, zap.NewNop(), nil)

	layer := config.Layer{ID: 1, Name: "seq", Tools: tools("a", "b", "c")}
	res := s.Execute(context.Background(), layer, nil)

	assert.False(t, res.Success)
	assert.Equal(t, []string{"a", "b"}, exec.callNames(), "tools after the failure must not run")
	require.Len(t, res.Tools, 2)
}

func TestExecute_SequentialAlwaysRunContinues(t *testing.T) {
	exec := newFakeExecutor()
	exec.fail["b"] = true
	s := New(exec, 4, zap.NewNop(), nil)

	layer := config.Layer{ID: 1, Name: "seq", AlwaysRun: true, Tools: tools("a", "b", "c")}
	res := s.Execute(context.Background(), layer, nil)

	assert.False(t, res.Success)
	assert.Equal(t, []string{"a", "b", "c"}, exec.callNames())
}

func TestExecute_SequentialOptionalToolFailureContinues(t *testing.T) {
	exec := newFakeExecutor()
	exec.fail["b"] = true
	s := New(exec, 4, zap.NewNop(), nil)

	layer := config.Layer{ID: 1, Name: "seq", Tools: []config.Tool{
		{Name: "a", Script: "true"},
		{Name: "b", Script: "true", Optional: true},
		{Name: "c", Script: "true"},
	}}
	res := s.Execute(context.Background(), layer, nil)

	assert.True(t, res.Success, "an optional tool failure must not fail the layer")
	assert.Equal(t, []string{"a", "b", "c"}, exec.callNames())
}

func TestExecute_ParallelBoundedByMaxParallel(t *testing.T) {
	exec := newFakeExecutor()
	exec.block = 50 * time.Millisecond
	s := New(exec, 2, zap.NewNop(), nil)

	layer := config.Layer{ID: 1, Name: "par", Parallel: true, Tools: tools("a", "b", "c", "d", "e", "f")}
	res := s.Execute(context.Background(), layer, nil)

	assert.True(t, res.Success)
	assert.Len(t, res.Tools, 6)
	assert.LessOrEqual(t, exec.maxActive, 2, "no more than max_parallel tools may be active")
}

func TestExecute_ParallelCollectsAllResults(t *testing.T) {
	exec := newFakeExecutor()
	exec.fail["c"] = true
	s := New(exec, 8, zap.NewNop(), nil)

	layer := config.Layer{ID: 1, Name: "par", Parallel: true, Tools: tools("a", "b", "c")}
	res := s.Execute(context.Background(), layer, nil)

	assert.False(t, res.Success)
	assert.Len(t, res.Tools, 3, "a failing tool does not block siblings in a parallel layer")

	names := make(map[string]bool)
	for _, tr := range res.Tools {
		names[tr.ToolName] = true
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, names)
}

func TestExecute_OptionalLayerAlwaysSucceeds(t *testing.T) {
	exec := newFakeExecutor()
	exec.fail["a"] = true
	s := New(exec, 4, zap.NewNop(), nil)

	layer := config.Layer{ID: 1, Name: "opt", Optional: true, Tools: tools("a")}
	res := s.Execute(context.Background(), layer, nil)

	assert.True(t, res.Success)
	require.Len(t, res.Tools, 1)
	assert.False(t, res.Tools[0].Success)
}

func TestExecute_ZeroToolsTriviallySucceeds(t *testing.T) {
	exec := newFakeExecutor()
	s := New(exec, 4, zap.NewNop(), nil)

	res := s.Execute(context.Background(), config.Layer{ID: 1, Name: "empty"}, nil)

	assert.True(t, res.Success)
	assert.Empty(t, res.Tools)
	assert.Empty(t, exec.callNames())
}

func TestExecute_DelayRespectsCancelledContext(t *testing.T) {
	exec := newFakeExecutor()
	s := New(exec, 4, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	layer := config.Layer{ID: 1, Name: "delayed", DelaySeconds: 60, Tools: tools("a")}
	start := time.Now()
	res := s.Execute(ctx, layer, nil)

	assert.False(t, res.Success)
	assert.Empty(t, exec.callNames())
	assert.Less(t, time.Since(start), 5*time.Second)
}
