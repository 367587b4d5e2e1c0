// Package pipeline defines the runtime data model shared across the
// orchestration engine: tool and layer results, the persisted execution
// state, and the run status state machine values.
package pipeline
