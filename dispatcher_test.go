package spresso

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type dispatcherFixture struct {
	dispatcher *Dispatcher
	queue      *Queue
	storage    *mockStorageAdapter
	http       *mockHTTPAdapter
	settings   *settings
}

func newDispatcherFixture(t *testing.T, maxBatchSize int, delegate Delegate) *dispatcherFixture {
	t.Helper()

	config := Config{MaxBatchSize: maxBatchSize}.withDefaults()
	require.NoError(t, config.Validate())

	f := &dispatcherFixture{
		storage:  &mockStorageAdapter{},
		http:     &mockHTTPAdapter{},
		settings: newSettings(config),
	}
	f.queue = NewQueue(config.MaxQueueSize, f.storage, noopLogger())
	delivery := NewDeliveryClient(config, f.settings, f.http, noopLogger())
	f.dispatcher = NewDispatcher(f.queue, delivery, delegate, f.settings, config.MaxBatchSize, noopLogger())

	t.Cleanup(func() {
		_ = f.dispatcher.Stop(context.Background())
	})
	return f
}

func (f *dispatcherFixture) enqueue(names ...string) {
	enqueueAll(f.queue, namedEvents(names...))
}

func TestDispatcher_SuccessEmptiesQueue(t *testing.T) {
	f := newDispatcherFixture(t, 10, nil)
	f.enqueue("a", "b", "c")

	result := <-f.dispatcher.Trigger(TriggerManual)

	assert.Equal(t, FlushDelivered, result.Outcome)
	assert.Equal(t, TriggerManual, result.Trigger)
	assert.Equal(t, 3, result.Sent)
	assert.Equal(t, 0, result.Remaining)
	assert.True(t, f.queue.IsEmpty())
	assert.Equal(t, 1, f.http.callCount())
	assert.Equal(t, []string{"a", "b", "c"}, eventNames(f.http.lastBatch()))
	assert.Equal(t, 1, f.storage.clears, "delivered events are removed from storage")
}

func TestDispatcher_FailureRetainsAndResendsInOrder(t *testing.T) {
	f := newDispatcherFixture(t, 10, nil)
	f.enqueue("a", "b", "c")
	f.http.setStatus(503)

	result := <-f.dispatcher.Trigger(TriggerManual)

	assert.Equal(t, FlushFailed, result.Outcome)
	assert.Equal(t, 3, result.Remaining)
	var derr *DeliveryError
	require.ErrorAs(t, result.Err, &derr)
	assert.Equal(t, 503, derr.Status)
	assert.Equal(t, 3, derr.Count)
	assert.Equal(t, []string{"a", "b", "c"}, eventNames(f.queue.ToSlice()))

	f.http.setStatus(200)
	result = <-f.dispatcher.Trigger(TriggerManual)

	assert.Equal(t, FlushDelivered, result.Outcome)
	assert.Equal(t, []string{"a", "b", "c"}, eventNames(f.http.lastBatch()))
	assert.True(t, f.queue.IsEmpty())
}

func TestDispatcher_NetworkErrorRetains(t *testing.T) {
	f := newDispatcherFixture(t, 10, nil)
	f.enqueue("a")
	f.http.setErr(fmt.Errorf("connection refused"))

	result := <-f.dispatcher.Trigger(TriggerManual)

	assert.Equal(t, FlushFailed, result.Outcome)
	var derr *DeliveryError
	require.ErrorAs(t, result.Err, &derr)
	assert.Zero(t, derr.Status)
	assert.Equal(t, 1, f.queue.Len())
}

func TestDispatcher_ClientErrorRetains(t *testing.T) {
	f := newDispatcherFixture(t, 10, nil)
	f.enqueue("a")
	f.http.setStatus(400)

	result := <-f.dispatcher.Trigger(TriggerManual)

	assert.Equal(t, FlushFailed, result.Outcome)
	assert.Equal(t, 1, f.queue.Len())
}

func TestDispatcher_Batching(t *testing.T) {
	f := newDispatcherFixture(t, 10, nil)
	for i := 0; i < 25; i++ {
		f.enqueue(fmt.Sprintf("e%02d", i))
	}

	result := <-f.dispatcher.Trigger(TriggerManual)

	assert.Equal(t, 25, result.Sent)
	assert.Equal(t, []int{10, 10, 5}, f.http.batchSizes())

	names := f.http.sentNames()
	for i, name := range names {
		assert.Equal(t, fmt.Sprintf("e%02d", i), name)
	}
}

func TestDispatcher_StopsAtFirstFailedBatch(t *testing.T) {
	f := newDispatcherFixture(t, 10, nil)
	for i := 0; i < 25; i++ {
		f.enqueue(fmt.Sprintf("e%02d", i))
	}
	f.http.responses = []int{200, 500}

	result := <-f.dispatcher.Trigger(TriggerManual)

	assert.Equal(t, FlushFailed, result.Outcome)
	assert.Equal(t, 10, result.Sent)
	assert.Equal(t, 15, result.Remaining)
	assert.Equal(t, 2, f.http.callCount())
	assert.Equal(t, "e10", f.queue.ToSlice()[0].Name)
	assert.Len(t, f.storage.savedEvents(), 15, "partial progress is persisted")
}

func TestDispatcher_SingleFlightUnderTriggerStorm(t *testing.T) {
	f := newDispatcherFixture(t, 10, nil)
	f.enqueue("a", "b")
	f.http.block = make(chan struct{})

	first := f.dispatcher.Trigger(TriggerManual)
	require.Eventually(t, func() bool {
		return f.dispatcher.State() == StateInFlight
	}, time.Second, time.Millisecond)

	var wg sync.WaitGroup
	results := make(chan FlushResult, 50)
	for i := 0; i < 50; i++ {
		wg.Go(func() {
			results <- <-f.dispatcher.Trigger(TriggerTimer)
		})
	}
	wg.Wait()
	close(results)

	for result := range results {
		assert.Equal(t, FlushSkipped, result.Outcome)
		assert.Equal(t, SkipInFlight, result.Reason)
	}

	close(f.http.block)
	result := <-first
	assert.Equal(t, FlushDelivered, result.Outcome)
	assert.Equal(t, 1, f.http.callCount())
	assert.Equal(t, StateIdle, f.dispatcher.State())
}

func TestDispatcher_DelegateVeto(t *testing.T) {
	allow := atomic.NewBool(false)
	f := newDispatcherFixture(t, 10, DelegateFunc(allow.Load))
	f.enqueue("a")

	result := <-f.dispatcher.Trigger(TriggerManual)
	assert.Equal(t, FlushSkipped, result.Outcome)
	assert.Equal(t, SkipVetoed, result.Reason)
	assert.Zero(t, f.http.callCount())

	f.enqueue("b")
	assert.Equal(t, 2, f.queue.Len(), "queue keeps growing while vetoed")

	allow.Store(true)
	result = <-f.dispatcher.Trigger(TriggerManual)
	assert.Equal(t, FlushDelivered, result.Outcome)
	assert.Equal(t, 2, result.Sent)
}

func TestDispatcher_DelegateNotAskedForEmptyQueue(t *testing.T) {
	asked := atomic.NewInt32(0)
	f := newDispatcherFixture(t, 10, DelegateFunc(func() bool {
		asked.Inc()
		return true
	}))

	result := <-f.dispatcher.Trigger(TriggerManual)

	assert.Equal(t, SkipEmpty, result.Reason)
	assert.Zero(t, asked.Load())
}

func TestDispatcher_SendDisabled(t *testing.T) {
	f := newDispatcherFixture(t, 10, nil)
	f.enqueue("a")
	f.settings.sendEnabled.Store(false)

	result := <-f.dispatcher.Trigger(TriggerManual)

	assert.Equal(t, FlushSkipped, result.Outcome)
	assert.Equal(t, SkipSendDisabled, result.Reason)
	assert.Equal(t, 1, result.Remaining)
	assert.Zero(t, f.http.callCount())
}

func TestDispatcher_Timer(t *testing.T) {
	t.Run("zero interval never flushes", func(t *testing.T) {
		f := newDispatcherFixture(t, 10, nil)
		f.enqueue("a")

		f.dispatcher.Start()
		time.Sleep(100 * time.Millisecond)

		assert.Zero(t, f.http.callCount())
		assert.Equal(t, 1, f.queue.Len())
	})

	t.Run("fires every interval", func(t *testing.T) {
		f := newDispatcherFixture(t, 10, nil)
		f.settings.flushInterval.Store(10 * time.Millisecond)
		f.enqueue("a")

		f.dispatcher.Start()

		require.Eventually(t, f.queue.IsEmpty, time.Second, 5*time.Millisecond)

		f.enqueue("b")
		require.Eventually(t, f.queue.IsEmpty, time.Second, 5*time.Millisecond)
		assert.Equal(t, []string{"a", "b"}, f.http.sentNames())
	})

	t.Run("interval can be changed at runtime", func(t *testing.T) {
		f := newDispatcherFixture(t, 10, nil)
		f.enqueue("a")
		f.dispatcher.Start()

		f.dispatcher.SetFlushInterval(10 * time.Millisecond)

		require.Eventually(t, f.queue.IsEmpty, time.Second, 5*time.Millisecond)
	})

	t.Run("interval can be disabled at runtime", func(t *testing.T) {
		f := newDispatcherFixture(t, 10, nil)
		f.settings.flushInterval.Store(time.Hour)
		f.dispatcher.Start()

		f.dispatcher.SetFlushInterval(0)

		assert.Zero(t, f.settings.flushInterval.Load())
	})
}

func TestDispatcher_Stop(t *testing.T) {
	t.Run("rejects triggers after stop", func(t *testing.T) {
		f := newDispatcherFixture(t, 10, nil)
		f.enqueue("a")
		f.dispatcher.Start()

		require.NoError(t, f.dispatcher.Stop(context.Background()))

		result := <-f.dispatcher.Trigger(TriggerManual)
		assert.Equal(t, SkipStopped, result.Reason)
		assert.Equal(t, 1, f.queue.Len())
	})

	t.Run("waits for in-flight flush", func(t *testing.T) {
		f := newDispatcherFixture(t, 10, nil)
		f.enqueue("a")
		f.http.block = make(chan struct{})

		pending := f.dispatcher.Trigger(TriggerManual)
		require.Eventually(t, func() bool {
			return f.dispatcher.State() == StateInFlight
		}, time.Second, time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, f.dispatcher.Stop(ctx), context.DeadlineExceeded)

		close(f.http.block)
		require.NoError(t, f.dispatcher.Stop(context.Background()))
		assert.Equal(t, FlushDelivered, (<-pending).Outcome)
	})

	t.Run("shutdown makes a final pass", func(t *testing.T) {
		f := newDispatcherFixture(t, 10, nil)
		f.enqueue("a", "b")
		f.dispatcher.Start()

		result, err := f.dispatcher.Shutdown(context.Background())

		require.NoError(t, err)
		assert.Equal(t, TriggerShutdown, result.Trigger)
		assert.Equal(t, FlushDelivered, result.Outcome)
		assert.True(t, f.queue.IsEmpty())
	})
}

func TestFlushEnumsString(t *testing.T) {
	assert.Equal(t, "background", TriggerBackground.String())
	assert.Equal(t, "in-flight", StateInFlight.String())
	assert.Equal(t, "skipped", FlushSkipped.String())
	assert.Equal(t, "vetoed by delegate", SkipVetoed.String())
}
