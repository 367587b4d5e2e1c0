package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/layerrun/internal/config"
)

func TestNew_Defaults(t *testing.T) {
	logger, err := New(config.Logging{})
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Info("hello")
	_ = logger.Sync()
}

func TestNew_JSONWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, err := New(config.Logging{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)
	logger.Debug("written to file")
	_ = logger.Sync()

	assert.FileExists(t, path)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.Logging{Level: "verbose"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"", false},
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"error", false},
		{"trace", true},
	}
	for _, tt := range tests {
		_, err := parseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
		} else {
			assert.NoError(t, err, tt.in)
		}
	}
}
