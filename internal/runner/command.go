package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// Output captures everything observable about one subprocess invocation.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	// Error describes a timeout or spawn failure; empty for processes
	// that started and exited, even with a nonzero code.
	Error    string
	Duration time.Duration
}

// Success reports whether the process started and exited zero.
func (o *Output) Success() bool {
	return o.Error == "" && o.ExitCode == 0
}

// CommandRunner invokes external executables with a per-invocation timeout.
type CommandRunner struct {
	logger *zap.Logger
}

// NewCommandRunner creates a command runner.
func NewCommandRunner(logger *zap.Logger) *CommandRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandRunner{logger: logger}
}

// Run starts script with args and waits up to timeout. On timeout the
// process is killed and a synthetic failure is returned. Spawn failures
// (missing executable, permission denied) are returned the same way; Run
// never returns an error.
func (r *CommandRunner) Run(ctx context.Context, script string, args []string, timeout time.Duration) *Output {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, script, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out := &Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		out.TimedOut = true
		out.ExitCode = -1
		out.Error = "timed out"
		r.logger.Warn("command timed out",
			zap.String("script", script),
			zap.Duration("timeout", timeout),
		)
	case err != nil:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		} else {
			// Spawn failure: the process never ran.
			out.ExitCode = -1
			out.Error = err.Error()
		}
		r.logger.Debug("command failed",
			zap.String("script", script),
			zap.Int("exit_code", out.ExitCode),
			zap.String("error", out.Error),
		)
	default:
		out.ExitCode = 0
	}

	return out
}
