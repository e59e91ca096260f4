// Package logger builds the zap logger shared by the client and the server.
package logger

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger holds the process logger. Log is a no-op logger until Init succeeds.
type Logger struct {
	Log *zap.Logger
}

// New returns a Logger whose Log is a no-op logger.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init replaces Log with a console logger writing to stdout at the given level
// ("debug", "info", "warn", "error").
func (l *Logger) Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.Config{
		Level:            lvl,
		Encoding:         "console",
		EncoderConfig:    encoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	zl, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	l.Log = zl
	return nil
}

// InitWriter is like Init but writes to w. The CLI uses it to keep log lines
// on stderr, away from the interactive prompt.
func (l *Logger) InitWriter(level string, w io.Writer) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.AddSync(w),
		lvl,
	)
	l.Log = zap.New(core, zap.AddCaller())
	return nil
}

func encoderConfig() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder
	return enc
}
