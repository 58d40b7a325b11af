// Package logger builds the zap logger shared by every subsystem.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a zap.Logger for the configured level and format.
// "json" builds a production logger; anything else gets the development
// console encoder, which suits a tool that usually runs on a laptop.
func NewLogger(level string, format string) (*zap.Logger, error) {
	logLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.Level = zap.NewAtomicLevelAt(logLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// Stack traces on every error drown the single-user console; warnings
	// and errors still carry caller information.
	cfg.DisableStacktrace = true

	return cfg.Build()
}
