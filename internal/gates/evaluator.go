// Package gates evaluates quality gates against metrics scraped from
// completed layer results.
package gates

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/layerrun/internal/config"
	"github.com/fyrsmithlabs/layerrun/internal/pipeline"
)

// Evaluator applies configured thresholds to metrics sourced from layer
// results. Evaluation happens once, after all declared layers have run.
type Evaluator struct {
	logger *zap.Logger
}

// New creates an evaluator.
func New(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{logger: logger}
}

// Evaluate checks every gate against the accumulated layer results. A gate
// whose metric was never produced is reported as not evaluated with a
// warning, never as a failure; instrumentation gaps must not block an
// otherwise green pipeline.
func (e *Evaluator) Evaluate(results map[int]*pipeline.LayerResult, gates []config.QualityGate) []pipeline.GateOutcome {
	outcomes := make([]pipeline.GateOutcome, 0, len(gates))
	for _, gate := range gates {
		outcomes = append(outcomes, e.evaluateOne(results, gate))
	}
	return outcomes
}

func (e *Evaluator) evaluateOne(results map[int]*pipeline.LayerResult, gate config.QualityGate) pipeline.GateOutcome {
	outcome := pipeline.GateOutcome{
		Name:      gate.Name,
		Metric:    gate.Metric,
		Threshold: gate.Threshold,
		Operator:  gate.Operator,
	}

	layerID, toolName, err := gate.SourceRef()
	if err != nil {
		outcome.Status = pipeline.GateNotEvaluated
		outcome.Reason = err.Error()
		e.logger.Warn("gate not evaluated", zap.String("gate", gate.Name), zap.Error(err))
		return outcome
	}

	layerResult, ok := results[layerID]
	if !ok {
		outcome.Status = pipeline.GateNotEvaluated
		outcome.Reason = fmt.Sprintf("layer %d produced no results", layerID)
		e.logger.Warn("gate not evaluated",
			zap.String("gate", gate.Name),
			zap.String("reason", outcome.Reason),
		)
		return outcome
	}

	value, ok := layerResult.Metric(toolName, gate.Metric)
	if !ok {
		outcome.Status = pipeline.GateNotEvaluated
		outcome.Reason = fmt.Sprintf("metric %s not produced by %s in layer %d", gate.Metric, toolName, layerID)
		e.logger.Warn("gate not evaluated",
			zap.String("gate", gate.Name),
			zap.String("reason", outcome.Reason),
		)
		return outcome
	}

	outcome.Value = value
	if compare(value, gate.Operator, gate.Threshold) {
		outcome.Status = pipeline.GatePassed
		e.logger.Info("gate passed",
			zap.String("gate", gate.Name),
			zap.Float64("value", value),
		)
	} else {
		outcome.Status = pipeline.GateFailed
		outcome.Reason = fmt.Sprintf("%v %s %v is false", value, gate.Operator, gate.Threshold)
		e.logger.Warn("gate failed",
			zap.String("gate", gate.Name),
			zap.Float64("value", value),
			zap.String("operator", gate.Operator),
			zap.Float64("threshold", gate.Threshold),
		)
	}
	return outcome
}

// Failures filters outcomes down to failed gates. Pipeline-level success
// requires this to be empty.
func Failures(outcomes []pipeline.GateOutcome) []pipeline.GateOutcome {
	var failed []pipeline.GateOutcome
	for _, o := range outcomes {
		if o.Status == pipeline.GateFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

func compare(value float64, operator string, threshold float64) bool {
	switch operator {
	case ">=":
		return value >= threshold
	case "<=":
		return value <= threshold
	case "==":
		return value == threshold
	case ">":
		return value > threshold
	case "<":
		return value < threshold
	default:
		// Operators are validated at config load.
		return false
	}
}
