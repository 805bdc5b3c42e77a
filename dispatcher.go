package spresso

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// FlushTrigger identifies what asked for a flush.
type FlushTrigger int

const (
	TriggerTimer FlushTrigger = iota + 1
	TriggerManual
	TriggerBackground
	TriggerShutdown
)

func (t FlushTrigger) String() string {
	switch t {
	case TriggerTimer:
		return "timer"
	case TriggerManual:
		return "manual"
	case TriggerBackground:
		return "background"
	case TriggerShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// FlushState is the scheduler state. A flush moves Idle -> Scheduled ->
// InFlight -> Idle; a skipped flush goes back to Idle from Scheduled.
type FlushState int32

const (
	StateIdle FlushState = iota
	StateScheduled
	StateInFlight
)

func (s FlushState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateInFlight:
		return "in-flight"
	default:
		return "unknown"
	}
}

// FlushOutcome summarizes a flush attempt.
type FlushOutcome int

const (
	FlushDelivered FlushOutcome = iota + 1
	FlushFailed
	FlushSkipped
)

func (o FlushOutcome) String() string {
	switch o {
	case FlushDelivered:
		return "delivered"
	case FlushFailed:
		return "failed"
	case FlushSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SkipReason explains a FlushSkipped outcome.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipSendDisabled
	SkipEmpty
	SkipVetoed
	SkipInFlight
	SkipStopped
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return ""
	case SkipSendDisabled:
		return "send disabled"
	case SkipEmpty:
		return "queue empty"
	case SkipVetoed:
		return "vetoed by delegate"
	case SkipInFlight:
		return "flush in flight"
	case SkipStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// FlushResult reports what a flush did.
type FlushResult struct {
	Trigger FlushTrigger
	Outcome FlushOutcome
	Reason  SkipReason
	// Sent is the number of events acknowledged and evicted.
	Sent int
	// Remaining is the queue length when the flush finished.
	Remaining int
	// Err is the *DeliveryError that ended a failed flush.
	Err error
}

// Dispatcher decides when queued events are delivered.
//
// At most one flush runs at a time. A flush sends contiguous batches from the
// front of the queue and evicts each one only after it was acknowledged; the
// first failure ends the flush and leaves the rest queued for the next
// trigger.
type Dispatcher struct {
	queue        *Queue
	delivery     *DeliveryClient
	delegate     Delegate
	logger       LoggerAdapter
	settings     *settings
	maxBatchSize int

	state    atomic.Int32
	interval chan time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewDispatcher creates a dispatcher. It does nothing until Start is called,
// except for flushes requested through Trigger.
func NewDispatcher(queue *Queue, delivery *DeliveryClient, delegate Delegate, settings *settings, maxBatchSize int, logger LoggerAdapter) *Dispatcher {
	return &Dispatcher{
		queue:        queue,
		delivery:     delivery,
		delegate:     delegate,
		logger:       logger,
		settings:     settings,
		maxBatchSize: maxBatchSize,
		interval:     make(chan time.Duration),
		stopChan:     make(chan struct{}),
	}
}

// Start launches the flush timer. Calling Start more than once, or after
// Stop, has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.stopped {
		return
	}
	d.started = true

	interval := d.settings.flushInterval.Load()
	d.wg.Go(func() {
		d.run(interval)
	})
}

func (d *Dispatcher) run(interval time.Duration) {
	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	reset := func(interval time.Duration) {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
		if interval > 0 {
			ticker = time.NewTicker(interval)
			tick = ticker.C
		}
	}
	reset(interval)
	defer reset(0)

	for {
		select {
		case <-tick:
			d.Trigger(TriggerTimer)
		case interval := <-d.interval:
			d.logger.Debug("Flush interval changed", "interval", interval)
			reset(interval)
		case <-d.stopChan:
			return
		}
	}
}

// SetFlushInterval changes the timer period. Zero disables the timer.
func (d *Dispatcher) SetFlushInterval(interval time.Duration) {
	d.settings.flushInterval.Store(interval)

	d.mu.Lock()
	running := d.started && !d.stopped
	d.mu.Unlock()
	if !running {
		return
	}

	select {
	case d.interval <- interval:
	case <-d.stopChan:
	}
}

// State returns the current scheduler state.
func (d *Dispatcher) State() FlushState {
	return FlushState(d.state.Load())
}

// Trigger requests a flush and returns immediately. The returned channel
// receives exactly one FlushResult and is then closed.
//
// A trigger is accepted only while the dispatcher is idle. Triggers that
// arrive while a flush is scheduled or in flight are coalesced into it and
// reported as skipped with SkipInFlight.
func (d *Dispatcher) Trigger(trigger FlushTrigger) <-chan FlushResult {
	result := make(chan FlushResult, 1)

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		result <- d.skipped(trigger, SkipStopped)
		close(result)
		return result
	}
	if !d.state.CompareAndSwap(int32(StateIdle), int32(StateScheduled)) {
		d.mu.Unlock()
		d.logger.Debug("Flush coalesced", "trigger", trigger.String())
		result <- d.skipped(trigger, SkipInFlight)
		close(result)
		return result
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		result <- d.flush(context.Background(), trigger)
		close(result)
	}()
	return result
}

// Stop disables the timer, rejects further triggers and waits for an
// in-flight flush to finish. It returns ctx.Err() if ctx ends first.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.stopChan)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the dispatcher and then makes one last delivery pass on the
// calling goroutine.
func (d *Dispatcher) Shutdown(ctx context.Context) (FlushResult, error) {
	if err := d.Stop(ctx); err != nil {
		return d.skipped(TriggerShutdown, SkipInFlight), err
	}
	if !d.state.CompareAndSwap(int32(StateIdle), int32(StateScheduled)) {
		return d.skipped(TriggerShutdown, SkipInFlight), nil
	}
	return d.flush(ctx, TriggerShutdown), nil
}

func (d *Dispatcher) skipped(trigger FlushTrigger, reason SkipReason) FlushResult {
	return FlushResult{
		Trigger:   trigger,
		Outcome:   FlushSkipped,
		Reason:    reason,
		Remaining: d.queue.Len(),
	}
}

// flush runs one pass. The caller must have moved the state to Scheduled.
func (d *Dispatcher) flush(ctx context.Context, trigger FlushTrigger) FlushResult {
	defer d.state.Store(int32(StateIdle))

	switch {
	case !d.settings.sendEnabled.Load():
		d.logger.Debug("Flush skipped", "trigger", trigger.String(), "reason", SkipSendDisabled.String())
		return d.skipped(trigger, SkipSendDisabled)
	case d.queue.IsEmpty():
		return d.skipped(trigger, SkipEmpty)
	case d.delegate != nil && !d.delegate.ShouldFlushNow():
		d.logger.Debug("Flush skipped", "trigger", trigger.String(), "reason", SkipVetoed.String())
		return d.skipped(trigger, SkipVetoed)
	}

	d.state.Store(int32(StateInFlight))
	d.logger.Debug("Starting flush", "trigger", trigger.String(), "queued", d.queue.Len())

	result := FlushResult{Trigger: trigger, Outcome: FlushDelivered}

	// Only events queued when the flush started are sent, so a steady stream
	// of new events cannot keep a flush running forever.
	pending := d.queue.Len()
	for attempted := 0; attempted < pending; {
		batch := d.queue.PeekBatch(min(d.maxBatchSize, pending-attempted))
		if batch.Len() == 0 {
			break
		}
		attempted += batch.Len()

		ack, err := d.delivery.Send(ctx, batch.Events)
		if err != nil {
			d.logger.Warn("Failed to deliver batch, keeping events queued",
				"trigger", trigger.String(),
				"count", batch.Len(),
				"error", err,
			)
			result.Outcome = FlushFailed
			result.Err = err
			break
		}

		evicted := d.queue.Evict(batch)
		result.Sent += evicted
		d.logger.Debug("Delivered batch", "status", ack.Status, "count", ack.Count, "evicted", evicted)
	}

	if result.Sent > 0 {
		_ = d.queue.Persist()
	}
	result.Remaining = d.queue.Len()

	d.logger.Info("Flush finished",
		"trigger", trigger.String(),
		"outcome", result.Outcome.String(),
		"sent", result.Sent,
		"remaining", result.Remaining,
	)
	return result
}
