// Package monitoring owns process-wide diagnostic logging.
//
// Three streams are exposed: ops (actionable warnings, errors, dropped
// work), diag (day-to-day diagnostics) and trace (per-frame telemetry).
// All three are backed by zap sugared loggers and can be replaced or
// muted independently.
package monitoring

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	streamsMu sync.RWMutex
	opsLog    *zap.SugaredLogger
	diagLog   *zap.SugaredLogger
	traceLog  *zap.SugaredLogger
)

func init() {
	if err := Configure("info"); err != nil {
		// zap's production config only fails on bad sinks; stderr is always there.
		panic(err)
	}
}

// Configure builds the three log streams at the given level ("debug",
// "info", "warn", "error"). The trace stream is only enabled at debug.
func Configure(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	base, err := cfg.Build(zap.WithCaller(false))
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	SetStreams(base.Named("ops"), base.Named("diag"), base.Named("trace"))
	return nil
}

// SetStreams replaces the ops, diag and trace loggers. A nil logger mutes
// that stream.
func SetStreams(ops, diag, trace *zap.Logger) {
	streamsMu.Lock()
	defer streamsMu.Unlock()
	opsLog = sugar(ops)
	diagLog = sugar(diag)
	traceLog = sugar(trace)
}

// Mute silences every stream. Intended for tests.
func Mute() {
	SetStreams(nil, nil, nil)
}

func sugar(l *zap.Logger) *zap.SugaredLogger {
	if l == nil {
		return nil
	}
	return l.Sugar()
}

// Opsf logs to the ops stream (actionable warnings, errors, data loss).
func Opsf(format string, args ...interface{}) {
	streamsMu.RLock()
	l := opsLog
	streamsMu.RUnlock()
	if l != nil {
		l.Warnf(format, args...)
	}
}

// Diagf logs to the diag stream (day-to-day diagnostics, tuning context).
func Diagf(format string, args ...interface{}) {
	streamsMu.RLock()
	l := diagLog
	streamsMu.RUnlock()
	if l != nil {
		l.Infof(format, args...)
	}
}

// Tracef logs to the trace stream (high-frequency frame telemetry).
func Tracef(format string, args ...interface{}) {
	streamsMu.RLock()
	l := traceLog
	streamsMu.RUnlock()
	if l != nil {
		l.Debugf(format, args...)
	}
}
