package adapters

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLoggerAdapter implements LoggerAdapter on top of zap.
//
// Output is gated twice: by the zap level and by an enable flag that can be
// flipped at runtime without rebuilding the logger.
type ZapLoggerAdapter struct {
	logger  *zap.SugaredLogger
	enabled *atomic.Bool
}

var _ LoggerAdapter = (*ZapLoggerAdapter)(nil)

// NewZapLoggerAdapter creates a production zap logger writing at level.
// LogLevelNone yields a disabled adapter.
func NewZapLoggerAdapter(level LogLevel) *ZapLoggerAdapter {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
	cfg.InitialFields = map[string]any{"component": "spresso"}

	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}

	adapter := NewZapLoggerAdapterFrom(logger)
	adapter.SetEnabled(level != LogLevelNone)
	return adapter
}

// NewZapLoggerAdapterFrom wraps an existing zap logger.
func NewZapLoggerAdapterFrom(logger *zap.Logger) *ZapLoggerAdapter {
	return &ZapLoggerAdapter{
		logger:  logger.Sugar(),
		enabled: atomic.NewBool(true),
	}
}

// SetEnabled turns all output on or off.
func (z *ZapLoggerAdapter) SetEnabled(enabled bool) {
	z.enabled.Store(enabled)
}

// Enabled reports whether output is on.
func (z *ZapLoggerAdapter) Enabled() bool {
	return z.enabled.Load()
}

// Sync flushes buffered log entries.
func (z *ZapLoggerAdapter) Sync() error {
	return z.logger.Sync()
}

func (z *ZapLoggerAdapter) Debug(message string, keysAndValues ...any) {
	if z.enabled.Load() {
		z.logger.Debugw(message, keysAndValues...)
	}
}

func (z *ZapLoggerAdapter) Info(message string, keysAndValues ...any) {
	if z.enabled.Load() {
		z.logger.Infow(message, keysAndValues...)
	}
}

func (z *ZapLoggerAdapter) Warn(message string, keysAndValues ...any) {
	if z.enabled.Load() {
		z.logger.Warnw(message, keysAndValues...)
	}
}

func (z *ZapLoggerAdapter) Error(message string, keysAndValues ...any) {
	if z.enabled.Load() {
		z.logger.Errorw(message, keysAndValues...)
	}
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}
