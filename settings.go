package spresso

import (
	"go.uber.org/atomic"
)

// settings holds the options that can change while a client is running.
// Everything else in Config is fixed at construction.
type settings struct {
	sendEnabled       atomic.Bool
	collectionEnabled atomic.Bool
	flushOnBackground atomic.Bool
	loggingEnabled    atomic.Bool
	flushInterval     atomic.Duration
	serverURL         atomic.String
}

func newSettings(config Config) *settings {
	s := &settings{}
	s.sendEnabled.Store(*config.SendEnabled)
	s.collectionEnabled.Store(*config.CollectionEnabled)
	s.flushOnBackground.Store(*config.FlushOnBackground)
	s.loggingEnabled.Store(config.LoggingEnabled)
	s.flushInterval.Store(config.FlushInterval)
	s.serverURL.Store(config.ServerURL)
	return s
}

// switchLogger drops every message while logging is disabled.
type switchLogger struct {
	next    LoggerAdapter
	enabled *atomic.Bool
}

func (l switchLogger) Debug(message string, keysAndValues ...any) {
	if l.enabled.Load() {
		l.next.Debug(message, keysAndValues...)
	}
}

func (l switchLogger) Info(message string, keysAndValues ...any) {
	if l.enabled.Load() {
		l.next.Info(message, keysAndValues...)
	}
}

func (l switchLogger) Warn(message string, keysAndValues ...any) {
	if l.enabled.Load() {
		l.next.Warn(message, keysAndValues...)
	}
}

func (l switchLogger) Error(message string, keysAndValues ...any) {
	if l.enabled.Load() {
		l.next.Error(message, keysAndValues...)
	}
}
