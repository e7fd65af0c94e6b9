// Package util - File listing and logger helpers for the command line tools.
package util

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nvr-ai/go-detect/common"
)

// NewLoggerConfig returns the console logger configuration at the given level.
func NewLoggerConfig(level zapcore.Level) zap.Config {
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// NewLogger builds a console logger writing to stderr.
//
// Arguments:
//   - level: One of debug, info, warn, error.
//
// Returns:
//   - *zap.Logger: The logger.
//   - error: A configuration error for an unknown level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, common.WrapConfig(err, "log level")
	}
	cfg := NewLoggerConfig(lvl)
	if lvl == zapcore.DebugLevel {
		cfg.Development = true
		cfg.DisableStacktrace = false
	}
	return cfg.Build()
}
