// Package orchestrator drives a pipeline run: it iterates layers in
// declared order, delegates each to the scheduler, checkpoints state
// after every layer, triggers rollback on designated failures, evaluates
// quality gates once all layers have run, and emits the final summary.
//
// The state machine:
//
//	PENDING -> RUNNING(layer_i) -> {RUNNING(layer_i+1) | FAILED | ROLLING_BACK | GATE_CHECK}
//	        -> {SUCCEEDED | FAILED}
//
// Tool and layer failures are data, not errors; the only errors Run
// returns are resume problems detected before any layer executes.
package orchestrator
