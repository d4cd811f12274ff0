// Package logging builds the zap logger shared by every entrypoint.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production JSON logger. The level can be overridden
// with MTPIPE_LOG_LEVEL (debug, info, warn, error).
func New() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(levelFromEnv())
	// Lambda prepends its own timestamps; keep ours ISO8601 for local runs.
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		// Build only fails on invalid config; fall back to a no-frills logger.
		return zap.NewNop()
	}
	return logger
}

func levelFromEnv() zapcore.Level {
	switch strings.ToLower(os.Getenv("MTPIPE_LOG_LEVEL")) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
