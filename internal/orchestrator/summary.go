package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/layerrun/internal/pipeline"
)

// timeRounding keeps durations readable in the summary.
const timeRounding = time.Millisecond

// Plan returns the planned layer/tool execution order without invoking
// anything. Used by --dry-run.
func (o *Orchestrator) Plan(startLayer int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pipeline: %s (version %s)\n", o.cfg.PipelineName, o.cfg.Version)
	fmt.Fprintf(&b, "Layers: %d, max parallel: %d, tool timeout: %s\n\n",
		len(o.cfg.Layers), o.cfg.Execution.MaxParallel, o.cfg.Execution.Timeout())

	for _, layer := range o.cfg.Layers {
		if layer.ID < startLayer {
			fmt.Fprintf(&b, "Layer %d: %s (skipped, resumed from checkpoint)\n", layer.ID, layer.Name)
			continue
		}
		mode := "sequential"
		if layer.Parallel {
			mode = "parallel"
		}
		var flags []string
		if layer.Optional {
			flags = append(flags, "optional")
		}
		if layer.AlwaysRun {
			flags = append(flags, "always_run")
		}
		if len(layer.Dependencies) > 0 {
			flags = append(flags, fmt.Sprintf("depends on %v", layer.Dependencies))
		}
		suffix := ""
		if len(flags) > 0 {
			suffix = " [" + strings.Join(flags, ", ") + "]"
		}
		fmt.Fprintf(&b, "Layer %d: %s (%s)%s\n", layer.ID, layer.Name, mode, suffix)
		for _, tool := range layer.Tools {
			opt := ""
			if tool.Optional {
				opt = " (optional)"
			}
			fmt.Fprintf(&b, "  - %s: %s %s%s\n", tool.Name, tool.Script, strings.Join(tool.Args, " "), opt)
		}
	}

	if len(o.cfg.QualityGates) > 0 {
		fmt.Fprintf(&b, "\nQuality gates:\n")
		for _, g := range o.cfg.QualityGates {
			fmt.Fprintf(&b, "  - %s: %s.%s %s %v\n", g.Name, g.Source, g.Metric, g.Operator, g.Threshold)
		}
	}
	return b.String()
}

// Summary renders the human-readable run summary: per-layer pass/fail,
// per-tool timing, and the gate outcomes.
func (o *Orchestrator) Summary(result *RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pipeline: %s\n", o.cfg.PipelineName)
	fmt.Fprintf(&b, "Run ID:   %s\n", result.State.RunID)
	fmt.Fprintf(&b, "Status:   %s\n", strings.ToUpper(string(result.Status)))
	fmt.Fprintf(&b, "Duration: %s\n\n", result.Duration.Round(timeRounding))

	for _, layer := range o.cfg.Layers {
		lr, ok := result.State.Layers[layer.ID]
		if !ok {
			fmt.Fprintf(&b, "Layer %d: %s - NOT RUN\n", layer.ID, layer.Name)
			continue
		}
		status := "PASS"
		switch {
		case lr.Skipped:
			status = "SKIPPED (" + lr.Error + ")"
		case !lr.Success:
			status = "FAIL"
		}
		fmt.Fprintf(&b, "Layer %d: %s - %s (%s)\n", layer.ID, layer.Name, status, lr.Duration.Round(timeRounding))
		for _, t := range lr.Tools {
			mark := "ok"
			if !t.Success {
				mark = "failed"
				if t.TimedOut {
					mark = "timed out"
				}
			}
			fmt.Fprintf(&b, "  %-24s %-10s %s\n", t.ToolName, mark, t.Duration.Round(timeRounding))
		}
	}

	if len(result.Gates) > 0 {
		fmt.Fprintf(&b, "\nQuality gates:\n")
		for _, g := range result.Gates {
			switch g.Status {
			case pipeline.GatePassed:
				fmt.Fprintf(&b, "  %-24s PASS (%v %s %v)\n", g.Name, g.Value, g.Operator, g.Threshold)
			case pipeline.GateFailed:
				fmt.Fprintf(&b, "  %-24s FAIL (%v %s %v)\n", g.Name, g.Value, g.Operator, g.Threshold)
			case pipeline.GateNotEvaluated:
				fmt.Fprintf(&b, "  %-24s NOT EVALUATED (%s)\n", g.Name, g.Reason)
			}
		}
	}

	if result.RollbackRan {
		fmt.Fprintf(&b, "\nRollback executed after layer %d failure:\n", result.FailedLayerID)
		for _, a := range result.RollbackResults {
			mark := "ok"
			if !a.Success {
				mark = "failed"
			}
			fmt.Fprintf(&b, "  %-24s %s\n", a.ToolName, mark)
		}
	}

	return b.String()
}

// WriteSummary writes the summary artifact next to the state file and
// returns its path. The terminal states always produce a summary before
// the process exits.
func (o *Orchestrator) WriteSummary(result *RunResult) (string, error) {
	dir := "."
	if o.store != nil {
		dir = filepath.Dir(o.store.Path())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create summary directory: %w", err)
	}

	name := strings.ReplaceAll(strings.ToLower(o.cfg.PipelineName), " ", "_") + "_summary.txt"
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(o.Summary(result)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}

	o.logger.Info("wrote run summary", zap.String("path", path))
	return path, nil
}
