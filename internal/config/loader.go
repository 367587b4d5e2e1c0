// Package config provides pipeline-definition loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// envPrefix guards which environment variables are considered.
	envPrefix = "LAYERRUN_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// envSections are top-level config keys that environment variables may
// override. LAYERRUN_EXECUTION_MAX_PARALLEL -> execution.max_parallel.
var envSections = []string{"execution", "logging", "server"}

// Load reads the pipeline definition from a YAML file, then overrides the
// execution, logging and server sections from environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (LAYERRUN_EXECUTION_MAX_PARALLEL, ...)
//  2. YAML pipeline definition
//  3. Hardcoded defaults
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is required")
	}

	info, err := os.Stat(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", configPath, maxConfigFileSize)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(content)
}

// Parse loads the pipeline definition from raw YAML bytes. Exposed for
// tests and embedded definitions.
func Parse(content []byte) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline definition: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pipeline definition: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline definition: %w", err)
	}

	return cfg, nil
}

// envTransform maps LAYERRUN_EXECUTION_MAX_PARALLEL to execution.max_parallel.
// Only known sections are mapped; everything else is dropped so unrelated
// LAYERRUN_* variables cannot corrupt the layer definitions.
func envTransform(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, section := range envSections {
		prefix := section + "_"
		if strings.HasPrefix(key, prefix) {
			return section + "." + strings.TrimPrefix(key, prefix)
		}
	}
	return ""
}
