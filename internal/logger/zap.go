package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapConfig selects the zap backend used by long-running processes.
type ZapConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// zapLogger adapts a zap.SugaredLogger to Logger.
type zapLogger struct {
	prefix string
	sugar  *zap.SugaredLogger
}

// NewZap builds a zap-backed Logger. An unknown level falls back to info.
func NewZap(cfg ZapConfig) (Logger, *zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	base, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, nil, fmt.Errorf("build zap logger: %w", err)
	}
	return FromZap(base, ""), base, nil
}

// FromZap wraps an existing zap logger. The prefix is attached as the
// "component" field instead of being written into the message.
func FromZap(z *zap.Logger, prefix string) Logger {
	if prefix != "" {
		z = z.With(zap.String("component", prefix))
	}
	return &zapLogger{prefix: prefix, sugar: z.Sugar()}
}

// With returns a child logger tagged with a component name. For non-zap
// loggers the parent is returned unchanged.
func With(l Logger, component string) Logger {
	if zl, ok := l.(*zapLogger); ok {
		return &zapLogger{prefix: component, sugar: zl.sugar.With("component", component)}
	}
	return l
}

func (l *zapLogger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *zapLogger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *zapLogger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *zapLogger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
