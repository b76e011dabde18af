package telemetry

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig controls where and how verbosely the server logs.
type LogConfig struct {
	// FilePath enables rolling-file output when non-empty. Console output
	// stays on either way.
	FilePath string
	// Debug lowers the level from Info to Debug.
	Debug bool
}

// NewZapLogger builds a Logger writing console-encoded lines to stderr and,
// when configured, JSON lines to a size-rotated file.
func NewZapLogger(cfg LogConfig) (Logger, func()) {
	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stderr), level),
	}
	if cfg.FilePath != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(lj), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	sugar := logger.Sugar()
	return zapAdapter{sugar}, func() { _ = sugar.Sync() }
}

type zapAdapter struct {
	s *zap.SugaredLogger
}

func (z zapAdapter) Debugf(format string, args ...any) { z.s.Debugf(format, args...) }
func (z zapAdapter) Infof(format string, args ...any)  { z.s.Infof(format, args...) }
func (z zapAdapter) Warnf(format string, args ...any)  { z.s.Warnf(format, args...) }
func (z zapAdapter) Errorf(format string, args ...any) { z.s.Errorf(format, args...) }
