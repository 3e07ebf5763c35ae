// Package logging builds the process logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ModeRelease selects JSON production logging. Any other mode logs for humans.
const ModeRelease = "release"

// New builds a logger for mode. level overrides the default level when it
// parses ("debug", "info", "warn", "error").
func New(mode, level string) (*zap.Logger, error) {
	var config zap.Config

	if mode == ModeRelease {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	return config.Build()
}

// Sync flushes logger, ignoring the error stderr returns on some platforms.
func Sync(logger *zap.Logger) {
	if logger != nil {
		_ = logger.Sync()
	}
}
