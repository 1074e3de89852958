package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConf struct {
	// Level is one of off, error, warn, info, debug or trace. Empty means
	// warn.
	Level string `yaml:"level"`

	// Output is stdout, stderr or a file path. Empty means stdout.
	Output string `yaml:"output"`
}

// level returns the zap level, or InvalidLevel for "off".
func (l LogConf) level() (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "", "warn", "warning":
		return zapcore.WarnLevel, nil
	case "off":
		return zapcore.InvalidLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "debug", "trace":
		return zapcore.DebugLevel, nil
	default:
		return 0, fmt.Errorf("invalid log level: %q", l.Level)
	}
}

// Logger builds the process logger.
func (l LogConf) Logger() (*zap.Logger, error) {
	lvl, err := l.level()
	if err != nil {
		return nil, err
	}
	if lvl == zapcore.InvalidLevel {
		return zap.NewNop(), nil
	}

	output := strings.TrimSpace(l.Output)
	if output == "" {
		output = "stdout"
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.Sampling = nil
	zc.DisableStacktrace = true
	zc.OutputPaths = []string{output}
	zc.ErrorOutputPaths = []string{"stderr"}

	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log, nil
}
