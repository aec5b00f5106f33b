// common/logger/logger.go
package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/YaganovValera/universe-client/common/ctxkeys"
)

// Config describes how the zap logger is built.
// Level is one of "debug" | "info" | "warn" | "error" (default "info").
// DevMode switches to a human readable console encoder instead of JSON.
type Config struct {
	Level   string `mapstructure:"level"`
	DevMode bool   `mapstructure:"dev_mode"`
}

func (c *Config) applyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

func (c Config) validate() error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return fmt.Errorf("logger: invalid level %q: %w", c.Level, err)
	}
	return nil
}

// Logger is a thin wrapper over *zap.Logger.
type Logger struct {
	raw *zap.Logger
}

// New builds a Logger from cfg.
func New(cfg Config) (*Logger, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	zapCfg := buildZapConfig(cfg.DevMode)
	if err := setZapLevel(&zapCfg, cfg.Level); err != nil {
		return nil, err
	}

	zl, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("logger: build zap: %w", err)
	}
	return &Logger{raw: zl}, nil
}

// FromZap wraps an existing zap logger. Tests use it with zaptest/observer.
func FromZap(zl *zap.Logger) *Logger {
	return &Logger{raw: zl}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{raw: zap.NewNop()}
}

func buildZapConfig(dev bool) zap.Config {
	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
		cfg.EncoderConfig.StacktraceKey = "stacktrace"
	}

	ec := &cfg.EncoderConfig
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.CallerKey = "caller"
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	return cfg
}

func setZapLevel(cfg *zap.Config, level string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return err
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return nil
}

// Sync flushes buffered entries, ignoring the error.
func (l *Logger) Sync() { _ = l.raw.Sync() }

// Named returns a sub-logger with the given name segment.
func (l *Logger) Named(name string) *Logger {
	return &Logger{raw: l.raw.Named(name)}
}

// With returns a child logger carrying fields on every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{raw: l.raw.With(fields...)}
}

// WithContext adds trace_id, request_id and session from ctx when present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := make([]zap.Field, 0, 3)
	for _, key := range []ctxkeys.Key{ctxkeys.TraceIDKey, ctxkeys.RequestIDKey, ctxkeys.SessionKey} {
		if v, ok := ctx.Value(key).(string); ok {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	if len(fields) == 0 {
		return l
	}
	return &Logger{raw: l.raw.With(fields...)}
}

// Sugar returns a printf-style logger.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.raw.Sugar()
}

// Zap exposes the underlying logger.
func (l *Logger) Zap() *zap.Logger { return l.raw }

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.raw.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.raw.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.raw.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.raw.Error(msg, fields...) }

// ContextWithTraceID returns ctx carrying a trace id.
func ContextWithTraceID(ctx context.Context, tid string) context.Context {
	return context.WithValue(ctx, ctxkeys.TraceIDKey, tid)
}

// ContextWithRequestID returns ctx carrying a request id.
func ContextWithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxkeys.RequestIDKey, rid)
}

// ContextWithSession returns ctx carrying a protocol session id.
func ContextWithSession(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, ctxkeys.SessionKey, sid)
}
