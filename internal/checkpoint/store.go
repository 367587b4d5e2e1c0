// Package checkpoint persists the cumulative execution state after every
// layer so a failed run can be resumed from a specific layer index.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/layerrun/internal/pipeline"
)

// Store writes ExecutionState snapshots to a single file. Each save
// overwrites the previous snapshot; writes are atomic from a concurrent
// reader's perspective (write-to-temp-then-rename), since an operator may
// inspect the file while the pipeline is running.
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore creates a store persisting to path.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Save writes the full accumulated state as a snapshot.
func (s *Store) Save(state *pipeline.ExecutionState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	s.logger.Debug("saved execution state",
		zap.String("path", s.path),
		zap.Int("layers", len(state.Layers)),
	)
	return nil
}

// Load reads the persisted state. Used only when resuming with
// --start-layer; a running pipeline never reads its own snapshot back.
func (s *Store) Load() (*pipeline.ExecutionState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state pipeline.ExecutionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", s.path, err)
	}
	if state.Layers == nil {
		state.Layers = make(map[int]*pipeline.LayerResult)
	}
	return &state, nil
}
