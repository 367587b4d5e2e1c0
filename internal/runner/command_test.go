package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCommandRunner_Success(t *testing.T) {
	r := NewCommandRunner(zap.NewNop())

	out := r.Run(context.Background(), "sh", []string{"-c", "echo hello; echo oops >&2"}, 5*time.Second)

	require.NotNil(t, out)
	assert.True(t, out.Success())
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "hello\n", out.Stdout)
	assert.Equal(t, "oops\n", out.Stderr)
	assert.False(t, out.TimedOut)
	assert.Empty(t, out.Error)
	assert.Greater(t, out.Duration, time.Duration(0))
}

func TestCommandRunner_NonzeroExit(t *testing.T) {
	r := NewCommandRunner(zap.NewNop())

	out := r.Run(context.Background(), "sh", []string{"-c", "exit 3"}, 5*time.Second)

	assert.False(t, out.Success())
	assert.Equal(t, 3, out.ExitCode)
	assert.False(t, out.TimedOut)
	assert.Empty(t, out.Error)
}

func TestCommandRunner_SpawnFailure(t *testing.T) {
	r := NewCommandRunner(zap.NewNop())

	out := r.Run(context.Background(), "/nonexistent/definitely-not-a-binary", nil, 5*time.Second)

	assert.False(t, out.Success())
	assert.Equal(t, -1, out.ExitCode)
	assert.NotEmpty(t, out.Error)
	assert.False(t, out.TimedOut)
}

func TestCommandRunner_Timeout(t *testing.T) {
	r := NewCommandRunner(zap.NewNop())

	start := time.Now()
	out := r.Run(context.Background(), "sleep", []string{"10"}, 200*time.Millisecond)

	assert.False(t, out.Success())
	assert.True(t, out.TimedOut)
	assert.Equal(t, -1, out.ExitCode)
	assert.Equal(t, "timed out", out.Error)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCommandRunner_NilLogger(t *testing.T) {
	r := NewCommandRunner(nil)
	out := r.Run(context.Background(), "true", nil, time.Second)
	assert.True(t, out.Success())
}
