package spresso

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spresso/spresso-go/adapters"
)

type mockHTTPAdapter struct {
	mu        sync.Mutex
	calls     int
	batches   [][]Event
	endpoints []string
	headers   []map[string]string
	// responses are used one per call before falling back to status.
	responses []int
	status    int
	err       error
	// block, when set, holds every Send until it is closed or ctx ends.
	block chan struct{}
}

func (m *mockHTTPAdapter) Send(ctx context.Context, endpoint string, events []Event, headers map[string]string) (*HTTPResponse, error) {
	m.mu.Lock()
	m.calls++
	m.batches = append(m.batches, append([]Event(nil), events...))
	m.endpoints = append(m.endpoints, endpoint)
	m.headers = append(m.headers, headers)
	status := m.status
	if len(m.responses) > 0 {
		status, m.responses = m.responses[0], m.responses[1:]
	}
	err := m.err
	block := m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if status == 0 {
		status = 200
	}
	return &HTTPResponse{OK: status >= 200 && status < 300, Status: status}, nil
}

func (m *mockHTTPAdapter) setStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

func (m *mockHTTPAdapter) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockHTTPAdapter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockHTTPAdapter) batchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sizes := make([]int, len(m.batches))
	for i, batch := range m.batches {
		sizes[i] = len(batch)
	}
	return sizes
}

func (m *mockHTTPAdapter) lastBatch() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.batches) == 0 {
		return nil
	}
	return m.batches[len(m.batches)-1]
}

func (m *mockHTTPAdapter) sentNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, batch := range m.batches {
		for _, event := range batch {
			names = append(names, event.Name)
		}
	}
	return names
}

type mockStorageAdapter struct {
	mu       sync.Mutex
	saved    []Event
	loaded   []Event
	identity *Identity
	saves    int
	clears   int
	closed   bool
	err      error
}

func (m *mockStorageAdapter) Save(events []Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.saved = append([]Event(nil), events...)
	return nil
}

func (m *mockStorageAdapter) Load() ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.loaded, nil
}

func (m *mockStorageAdapter) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.clears++
	m.saved = nil
	return nil
}

func (m *mockStorageAdapter) SaveIdentity(identity Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.identity = &identity
	return nil
}

func (m *mockStorageAdapter) LoadIdentity() (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.identity, nil
}

func (m *mockStorageAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockStorageAdapter) savedEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved
}

func (m *mockStorageAdapter) savedIdentity() *Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

func noopLogger() LoggerAdapter {
	return adapters.NewNoOpLoggerAdapter()
}

func namedEvents(names ...string) []Event {
	events := make([]Event, len(names))
	for i, name := range names {
		events[i] = Event{ID: name, Name: name}
	}
	return events
}

func eventNames(events []Event) []string {
	names := make([]string, len(events))
	for i, event := range events {
		names[i] = event.Name
	}
	return names
}

func newObservedLogger() (LoggerAdapter, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return adapters.NewZapLoggerAdapterFrom(zap.New(core)), logs
}
