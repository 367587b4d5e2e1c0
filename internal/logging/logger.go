// Package logging constructs the zap logger used across the pipeline
// engine. One logger is built per run invocation and passed explicitly
// into every component constructor.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/layerrun/internal/config"
)

// New builds a logger from the logging config. Output goes to stderr and,
// when configured, appends to the execution log file.
func New(cfg config.Logging) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         encoding(cfg.Format),
		EncoderConfig:    encoderCfg,
		OutputPaths:      outputPaths(cfg),
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch s {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", s)
	}
}

func encoding(format string) string {
	if format == "json" {
		return "json"
	}
	return "console"
}

func outputPaths(cfg config.Logging) []string {
	paths := []string{"stderr"}
	if cfg.File != "" {
		paths = append(paths, cfg.File)
	}
	return paths
}
