// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger for the given level name. "debug" uses zap's
// development config (console encoder, stack traces on warn); every other
// level uses the production JSON config.
func New(level string) (*zap.Logger, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// MustNew is New for process start-up, falling back to a production logger
// when the level is invalid.
func MustNew(level string) *zap.Logger {
	logger, err := New(level)
	if err == nil {
		return logger
	}
	logger, buildErr := zap.NewProduction()
	if buildErr != nil {
		panic(fmt.Sprintf("failed to build logger: %v", buildErr))
	}
	logger.Warn("invalid LOG_LEVEL, using info", zap.String("level", level), zap.Error(err))
	return logger
}
