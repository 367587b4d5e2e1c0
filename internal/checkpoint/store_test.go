package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/layerrun/internal/pipeline"
)

func sampleState() *pipeline.ExecutionState {
	state := pipeline.NewExecutionState("run-1", "governance-validation")
	state.Status = pipeline.StatusRunning
	state.Layers[1] = &pipeline.LayerResult{
		LayerID:   1,
		LayerName: "static-checks",
		Success:   true,
		Tools: []*pipeline.ToolResult{
			{
				ToolName: "lint",
				LayerID:  1,
				Success:  true,
				Stdout:   "Pass Rate: 97%\n",
				Duration: 1200 * time.Millisecond,
				Metrics:  map[string]float64{"pass_rate": 97},
			},
		},
		Duration: 1300 * time.Millisecond,
	}
	return state
}

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store := NewStore(path, zap.NewNop())

	state := sampleState()
	require.NoError(t, store.Save(state))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, state.RunID, loaded.RunID)
	assert.Equal(t, state.PipelineName, loaded.PipelineName)
	assert.Equal(t, state.Status, loaded.Status)
	require.Contains(t, loaded.Layers, 1)
	assert.Equal(t, state.Layers[1].Tools[0].Metrics, loaded.Layers[1].Tools[0].Metrics)
	assert.Equal(t, state.Layers[1].Duration, loaded.Layers[1].Duration)
}

func TestStore_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path, zap.NewNop())

	state := sampleState()
	require.NoError(t, store.Save(state))

	state.Layers[2] = &pipeline.LayerResult{LayerID: 2, LayerName: "security", Success: false}
	state.Status = pipeline.StatusFailed
	require.NoError(t, store.Save(state))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, loaded.Layers, 2)
	assert.Equal(t, pipeline.StatusFailed, loaded.Status)
}

func TestStore_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "state.json"), zap.NewNop())
	require.NoError(t, store.Save(sampleState()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestStore_LoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.json"), zap.NewNop())
	_, err := store.Load()
	assert.Error(t, err)
}

func TestStore_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := NewStore(path, zap.NewNop())
	_, err := store.Load()
	assert.Error(t, err)
}
