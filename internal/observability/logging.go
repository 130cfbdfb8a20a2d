// Package observability owns logger construction for the CLI and server.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger for command execution context. Console encoding
// to stderr keeps stdout clean for machine-readable command output.
var CLILogger = newCLILogger(zapcore.InfoLevel)

// SetVerbose switches the CLI logger to debug level.
func SetVerbose(verbose bool) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	CLILogger = newCLILogger(level)
}

func newCLILogger(level zapcore.Level) *zap.Logger {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core)
}
