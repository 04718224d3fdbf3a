package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process-wide zap logger. Debug mode uses the
// human-readable development encoder at debug level; otherwise JSON output
// at info level with stack traces reserved for errors.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopmentConfig().Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	return cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}
