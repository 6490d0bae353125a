// Package logging provides zap logger helpers and the process-wide logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L is the shared process logger. It defaults to a no-op logger so that
// packages can log before InitLogger runs (for example during config load).
var L = zap.NewNop()

// InitLogger builds the global logger. Call once at startup, before any
// command logic runs. Verbose selects the colored development encoder.
func InitLogger(verbose bool) {
	logger, err := New(verbose)
	if err != nil {
		// Logging is the one service we cannot report failures through.
		panic(fmt.Sprintf("logging: %v", err))
	}
	L = logger
}

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}
