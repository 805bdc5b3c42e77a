package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedAdapter(level zapcore.Level) (*ZapLoggerAdapter, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewZapLoggerAdapterFrom(zap.New(core)), logs
}

func TestZapLoggerAdapter(t *testing.T) {
	t.Run("should write structured fields", func(t *testing.T) {
		logger, logs := newObservedAdapter(zapcore.DebugLevel)

		logger.Warn("queue overflow", "dropped", 2, "capacity", 10)

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
		assert.Equal(t, "queue overflow", entry.Message)
		assert.EqualValues(t, 2, entry.ContextMap()["dropped"])
		assert.EqualValues(t, 10, entry.ContextMap()["capacity"])
	})

	t.Run("should log every tier", func(t *testing.T) {
		logger, logs := newObservedAdapter(zapcore.DebugLevel)

		logger.Debug("d")
		logger.Info("i")
		logger.Warn("w")
		logger.Error("e")

		assert.Equal(t, 4, logs.Len())
	})

	t.Run("should respect the zap level", func(t *testing.T) {
		logger, logs := newObservedAdapter(zapcore.ErrorLevel)

		logger.Debug("d")
		logger.Info("i")
		logger.Warn("w")
		logger.Error("e")

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "e", logs.All()[0].Message)
	})

	t.Run("should stay silent when disabled", func(t *testing.T) {
		logger, logs := newObservedAdapter(zapcore.DebugLevel)
		logger.SetEnabled(false)

		logger.Error("hidden")
		assert.Equal(t, 0, logs.Len())
		assert.False(t, logger.Enabled())

		logger.SetEnabled(true)
		logger.Error("visible")
		assert.Equal(t, 1, logs.Len())
	})
}

func TestNewZapLoggerAdapter(t *testing.T) {
	assert.True(t, NewZapLoggerAdapter(LogLevelDebug).Enabled())
	assert.False(t, NewZapLoggerAdapter(LogLevelNone).Enabled())
}

func TestZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, zapLevel(LogLevelDebug))
	assert.Equal(t, zapcore.InfoLevel, zapLevel(LogLevelInfo))
	assert.Equal(t, zapcore.WarnLevel, zapLevel(LogLevelWarn))
	assert.Equal(t, zapcore.ErrorLevel, zapLevel(LogLevelError))
	assert.Equal(t, zapcore.WarnLevel, zapLevel(""))
}
