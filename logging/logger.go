package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultLevel = "info"

// New builds the JSON zap logger used by the server and the CLI. The level
// comes from LOG_LEVEL and falls back to info.
func New() (*zap.Logger, error) {
	return NewWithLevel(os.Getenv("LOG_LEVEL"))
}

func NewWithLevel(raw string) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(raw)))); err != nil || strings.TrimSpace(raw) == "" {
		_ = level.UnmarshalText([]byte(defaultLevel))
	}

	cfg := zap.Config{
		Level:    level,
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:    "message",
			TimeKey:       "timestamp",
			LevelKey:      "severity",
			NameKey:       "logger",
			CallerKey:     "caller",
			StacktraceKey: "stacktrace",
			EncodeTime:    zapcore.RFC3339NanoTimeEncoder,
			EncodeLevel:   zapcore.CapitalLevelEncoder,
			EncodeCaller:  zapcore.ShortCallerEncoder,
		},
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	return cfg.Build()
}

// Printf adapts zap to printf-style logger interfaces such as gorm's.
type Printf struct {
	logger *zap.SugaredLogger
}

func NewPrintf(logger *zap.Logger) Printf {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Printf{logger: logger.Sugar()}
}

func (p Printf) Printf(format string, args ...any) {
	p.logger.Infof(format, args...)
}
