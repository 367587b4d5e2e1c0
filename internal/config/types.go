package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Operator values accepted by quality gates.
var validOperators = map[string]bool{
	">=": true,
	"<=": true,
	"==": true,
	">":  true,
	"<":  true,
}

// Config is the complete pipeline definition. Loaded once at process start
// and immutable for the lifetime of the run.
type Config struct {
	PipelineName string `koanf:"pipeline_name"`
	Version      string `koanf:"version"`

	Layers []Layer `koanf:"layers"`

	Execution     Execution     `koanf:"execution"`
	QualityGates  []QualityGate `koanf:"quality_gates"`
	Rollback      Rollback      `koanf:"rollback"`
	Notifications Notifications `koanf:"notifications"`
	Logging       Logging       `koanf:"logging"`
	Server        Server        `koanf:"server"`
}

// Layer is a named, ordered group of tools with declared dependencies on
// other layers.
type Layer struct {
	// ID is both the declared order key and the dependency-reference key.
	ID   int    `koanf:"id"`
	Name string `koanf:"name"`

	Tools []Tool `koanf:"tools"`

	// Parallel dispatches tools concurrently against the bounded pool.
	Parallel bool `koanf:"parallel"`

	// Dependencies lists layer ids that must have succeeded before this
	// layer may run.
	Dependencies []int `koanf:"dependencies"`

	// Optional layers never fail the pipeline regardless of tool outcomes.
	Optional bool `koanf:"optional"`

	// AlwaysRun keeps dispatching tools in a sequential layer after a
	// non-optional tool failure.
	AlwaysRun bool `koanf:"always_run"`

	// DelaySeconds sleeps before dispatching tools, to stagger slow
	// external systems.
	DelaySeconds int `koanf:"delay_seconds"`
}

// Delay returns the configured start delay.
func (l Layer) Delay() time.Duration {
	return time.Duration(l.DelaySeconds) * time.Second
}

// Tool is a single external executable invocation within a layer.
type Tool struct {
	Name   string   `koanf:"name"`
	Script string   `koanf:"script"`
	Args   []string `koanf:"args"`

	// Optional tool failures do not fail the layer.
	Optional bool `koanf:"optional"`
}

// Execution holds global execution settings.
type Execution struct {
	TimeoutSeconds    int    `koanf:"timeout_seconds"`
	MaxParallel       int    `koanf:"max_parallel"`
	ContinueOnFailure bool   `koanf:"continue_on_failure"`
	SaveState         bool   `koanf:"save_state"`
	StateFile         string `koanf:"state_file"`
}

// Timeout returns the per-tool timeout.
func (e Execution) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// QualityGate is a post-run threshold check against a named metric scraped
// from tool output. Source is "layer.tool", e.g. "2.security_scan".
type QualityGate struct {
	Name      string  `koanf:"name"`
	Source    string  `koanf:"source"`
	Metric    string  `koanf:"metric"`
	Operator  string  `koanf:"operator"`
	Threshold float64 `koanf:"threshold"`
}

// SourceRef splits the gate source into its layer id and tool name.
func (g QualityGate) SourceRef() (int, string, error) {
	layerPart, toolPart, ok := strings.Cut(g.Source, ".")
	if !ok {
		return 0, "", fmt.Errorf("gate %q: source %q is not layer.tool", g.Name, g.Source)
	}
	id, err := strconv.Atoi(layerPart)
	if err != nil {
		return 0, "", fmt.Errorf("gate %q: source layer %q is not an integer", g.Name, layerPart)
	}
	return id, toolPart, nil
}

// Rollback configures compensating actions for designated layer failures.
type Rollback struct {
	Enabled           bool     `koanf:"enabled"`
	OnFailureAtLayers []int    `koanf:"on_failure_at_layers"`
	Actions           []Action `koanf:"actions"`
}

// Triggered reports whether a failure at the given layer id is
// rollback-listed.
func (r Rollback) Triggered(layerID int) bool {
	if !r.Enabled {
		return false
	}
	for _, id := range r.OnFailureAtLayers {
		if id == layerID {
			return true
		}
	}
	return false
}

// Action is one compensating command.
type Action struct {
	Name   string   `koanf:"name"`
	Script string   `koanf:"script"`
	Args   []string `koanf:"args"`
}

// Notifications routes templated messages at run completion. Message
// templates support a {layer_id} substitution token.
type Notifications struct {
	OnSuccess []Notification `koanf:"on_success"`
	OnFailure []Notification `koanf:"on_failure"`
}

// Notification is a single log-level + message template pair.
type Notification struct {
	Level   string `koanf:"level"`
	Message string `koanf:"message"`
}

// Logging configures the zap logger.
type Logging struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is json or console.
	Format string `koanf:"format"`
	// File appends the execution log to a path in addition to stderr.
	File string `koanf:"file"`
}

// Server configures the optional live status endpoint.
type Server struct {
	Enabled bool   `koanf:"enabled"`
	Listen  string `koanf:"listen"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Execution: Execution{
			TimeoutSeconds: 300,
			MaxParallel:    4,
			SaveState:      true,
			StateFile:      ".layerrun/state.json",
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
		Server: Server{
			Listen: "127.0.0.1:9464",
		},
	}
}

// Validate checks the definition for programming errors. These are the only
// fatal errors in the system; everything downstream is recovered into result
// objects.
func (c *Config) Validate() error {
	if c.PipelineName == "" {
		return fmt.Errorf("pipeline_name is required")
	}
	if len(c.Layers) == 0 {
		return fmt.Errorf("at least one layer is required")
	}
	if c.Execution.TimeoutSeconds <= 0 {
		return fmt.Errorf("execution.timeout_seconds must be positive, got %d", c.Execution.TimeoutSeconds)
	}
	if c.Execution.MaxParallel <= 0 {
		return fmt.Errorf("execution.max_parallel must be positive, got %d", c.Execution.MaxParallel)
	}
	if c.Execution.SaveState && c.Execution.StateFile == "" {
		return fmt.Errorf("execution.state_file is required when save_state is enabled")
	}

	declared := make(map[int]map[string]bool, len(c.Layers))
	for i, layer := range c.Layers {
		if layer.Name == "" {
			return fmt.Errorf("layer at index %d has no name", i)
		}
		if _, dup := declared[layer.ID]; dup {
			return fmt.Errorf("duplicate layer id %d (%s)", layer.ID, layer.Name)
		}
		if layer.DelaySeconds < 0 {
			return fmt.Errorf("layer %d (%s): delay_seconds must not be negative", layer.ID, layer.Name)
		}
		for _, dep := range layer.Dependencies {
			if _, ok := declared[dep]; !ok {
				return fmt.Errorf("layer %d (%s) depends on undeclared layer %d", layer.ID, layer.Name, dep)
			}
		}
		tools := make(map[string]bool, len(layer.Tools))
		for _, tool := range layer.Tools {
			if tool.Name == "" {
				return fmt.Errorf("layer %d (%s): tool with empty name", layer.ID, layer.Name)
			}
			if tool.Script == "" {
				return fmt.Errorf("layer %d (%s): tool %s has no script", layer.ID, layer.Name, tool.Name)
			}
			if tools[tool.Name] {
				return fmt.Errorf("layer %d (%s): duplicate tool name %s", layer.ID, layer.Name, tool.Name)
			}
			tools[tool.Name] = true
		}
		declared[layer.ID] = tools
	}

	for _, gate := range c.QualityGates {
		if gate.Name == "" {
			return fmt.Errorf("quality gate with empty name")
		}
		if !validOperators[gate.Operator] {
			return fmt.Errorf("gate %q: invalid operator %q", gate.Name, gate.Operator)
		}
		layerID, toolName, err := gate.SourceRef()
		if err != nil {
			return err
		}
		tools, ok := declared[layerID]
		if !ok {
			return fmt.Errorf("gate %q: source references undeclared layer %d", gate.Name, layerID)
		}
		if !tools[toolName] {
			return fmt.Errorf("gate %q: source references unknown tool %q in layer %d", gate.Name, toolName, layerID)
		}
	}

	if c.Rollback.Enabled {
		for _, id := range c.Rollback.OnFailureAtLayers {
			if _, ok := declared[id]; !ok {
				return fmt.Errorf("rollback references undeclared layer %d", id)
			}
		}
		for i, action := range c.Rollback.Actions {
			if action.Script == "" {
				return fmt.Errorf("rollback action at index %d has no script", i)
			}
		}
	}

	return nil
}

// LayerByID returns the layer with the given id.
func (c *Config) LayerByID(id int) (Layer, bool) {
	for _, l := range c.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}
