// Package logging provides the module-wide structured logging interface and
// its zap-backed implementation. Every component that logs depends on the
// Logger interface defined here; direct use of go.uber.org/zap is forbidden
// outside this package so the underlying library can be swapped without
// touching engine/orchestrator/worker code. Adapted from
// turtacn-KeyIP-Intelligence's internal/infrastructure/monitoring/logging.
package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a typed key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

func String(key, val string) Field            { return Field{Key: key, Value: val} }
func Int(key string, val int) Field            { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field          { return Field{Key: key, Value: val} }
func Duration(key string, d time.Duration) Field { return Field{Key: key, Value: d} }

// Err captures an error under the canonical key "error".
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Logger is the module-wide structured logging contract.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	With(fields ...Field) Logger
	Named(name string) Logger
}

// Config carries the parameters New needs. Level is one of
// "debug"|"info"|"warn"|"error" (defaults to "info"); Format is
// "json"|"console" (defaults to "json").
type Config struct {
	Level  string
	Format string
}

type zapLogger struct{ z *zap.Logger }

func toZapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			out = append(out, zap.String(f.Key, v))
		case int:
			out = append(out, zap.Int(f.Key, v))
		case bool:
			out = append(out, zap.Bool(f.Key, v))
		case time.Duration:
			out = append(out, zap.Duration(f.Key, v))
		case error:
			out = append(out, zap.NamedError(f.Key, v))
		default:
			out = append(out, zap.Any(f.Key, v))
		}
	}
	return out
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, toZapFields(fields)...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, toZapFields(fields)...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, toZapFields(fields)...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, toZapFields(fields)...) }
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.z.Fatal(msg, toZapFields(fields)...) }

func (l *zapLogger) With(fields ...Field) Logger { return &zapLogger{z: l.z.With(toZapFields(fields)...)} }
func (l *zapLogger) Named(name string) Logger    { return &zapLogger{z: l.z.Named(name)} }

func parseLevel(s string) zapcore.Level {
	switch s {
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

// New builds a Logger backed by zap according to cfg.
func New(cfg Config) (Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encoding := "json"
	if cfg.Format == "console" {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encoding = "console"
	}
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encCfg,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	z, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("logging: building zap logger: %w", err)
	}
	return &zapLogger{z: z}, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Warn(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}
func (nopLogger) Fatal(string, ...Field) {}
func (n nopLogger) With(...Field) Logger { return n }
func (n nopLogger) Named(string) Logger  { return n }

// NewNop returns a Logger that discards all entries; used in tests.
func NewNop() Logger { return nopLogger{} }

// OrchestratorAdapter satisfies orchestrator.Logger (printf-style Warnf/Debugf)
// over a structured Logger, the one place this module's Printf-flavored and
// field-flavored logging conventions meet.
type OrchestratorAdapter struct{ L Logger }

func (a OrchestratorAdapter) Warnf(format string, args ...any) {
	a.L.Warn(fmt.Sprintf(format, args...))
}

func (a OrchestratorAdapter) Debugf(format string, args ...any) {
	a.L.Debug(fmt.Sprintf(format, args...))
}
