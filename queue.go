package spresso

import (
	"container/list"
	"sync"
)

type queuedEvent struct {
	seq   uint64
	event Event
}

// Batch is a contiguous prefix of the queue returned by PeekBatch.
type Batch struct {
	Events []Event
	// from and through are the sequence numbers of the first and last event
	// in the batch.
	from, through uint64
}

// Len returns the number of events in the batch.
func (b Batch) Len() int {
	return len(b.Events)
}

// Queue is a thread-safe, capped FIFO of pending events backed by a
// StorageAdapter.
//
// When the cap is exceeded the oldest events are dropped and a warning is
// logged. Events leave the queue only through Evict, which callers invoke
// after the collector acknowledged a batch.
type Queue struct {
	mu       sync.Mutex
	list     *list.List
	nextSeq  uint64
	capacity int
	restored bool

	persistMu sync.Mutex
	storage   StorageAdapter
	logger    LoggerAdapter
}

// NewQueue creates and returns a new empty Queue. A capacity <= 0 means
// unbounded.
func NewQueue(capacity int, storage StorageAdapter, logger LoggerAdapter) *Queue {
	return &Queue{
		list:     list.New(),
		capacity: capacity,
		storage:  storage,
		logger:   logger,
	}
}

// Enqueue adds an Event to the end of the queue and returns how many of the
// oldest events were dropped to respect the capacity.
func (q *Queue) Enqueue(event Event) int {
	q.mu.Lock()
	q.push(event)
	dropped := q.trim()
	size := q.list.Len()
	q.mu.Unlock()

	if dropped > 0 {
		q.logger.Warn("Dropped oldest events",
			"error", ErrQueueOverflow,
			"dropped", dropped,
			"capacity", q.capacity,
			"size", size,
		)
	}
	return dropped
}

// PeekBatch returns copies of up to maxSize events from the front without
// removing them.
func (q *Queue) PeekBatch(maxSize int) Batch {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.list.Len()
	if maxSize > 0 && maxSize < n {
		n = maxSize
	}

	batch := Batch{Events: make([]Event, 0, n)}
	for e := q.list.Front(); e != nil && len(batch.Events) < n; e = e.Next() {
		item := e.Value.(queuedEvent)
		if len(batch.Events) == 0 {
			batch.from = item.seq
		}
		batch.Events = append(batch.Events, item.event.Clone())
		batch.through = item.seq
	}
	return batch
}

// Evict removes the delivered batch from the queue and returns the number of
// events removed.
//
// Removal is bounded by the batch's sequence range, so events enqueued or
// restored after the batch was peeked are never evicted. The result is
// smaller than batch.Len() only if some of the batch was already dropped by
// an overflow.
func (q *Queue) Evict(batch Batch) int {
	if batch.Len() == 0 {
		return 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for e := q.list.Front(); e != nil; {
		next := e.Next()
		if seq := e.Value.(queuedEvent).seq; seq >= batch.from && seq <= batch.through {
			q.list.Remove(e)
			removed++
		}
		e = next
	}
	return removed
}

// IsEmpty reports whether the queue has no elements.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.Len() == 0
}

// Len returns the number of Events currently in the queue.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.Len()
}

// ToSlice returns all Events in the queue as a slice, preserving order.
func (q *Queue) ToSlice() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshot()
}

// Persist writes the current queue contents to storage.
//
// The snapshot is taken under the queue lock, but the write happens outside
// it so producers are never blocked on disk I/O. Writers are serialized so
// an older snapshot cannot overwrite a newer one.
func (q *Queue) Persist() error {
	q.persistMu.Lock()
	defer q.persistMu.Unlock()

	events := q.ToSlice()

	var err error
	if len(events) == 0 {
		err = q.storage.Clear()
	} else {
		err = q.storage.Save(events)
	}
	if err != nil {
		perr := &PersistenceError{Op: "persist queue", Err: err}
		q.logger.Error("Failed to persist queue", "error", perr, "size", len(events))
		return perr
	}

	q.logger.Debug("Persisted queue", "size", len(events))
	return nil
}

// Restore loads persisted events ahead of anything already queued. Only the
// first successful call has an effect. Events already queued keep their
// sequence numbers, so a batch peeked before Restore can still be evicted.
func (q *Queue) Restore() error {
	q.persistMu.Lock()
	defer q.persistMu.Unlock()

	q.mu.Lock()
	if q.restored {
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	events, err := q.storage.Load()
	if err != nil {
		perr := &PersistenceError{Op: "restore queue", Err: err}
		q.logger.Error("Failed to restore queue", "error", perr)
		return perr
	}

	q.mu.Lock()
	for i := len(events) - 1; i >= 0; i-- {
		q.nextSeq++
		q.list.PushFront(queuedEvent{seq: q.nextSeq, event: events[i]})
	}
	dropped := q.trim()
	q.restored = true
	size := q.list.Len()
	q.mu.Unlock()

	if dropped > 0 {
		q.logger.Warn("Dropped oldest restored events",
			"error", ErrQueueOverflow,
			"dropped", dropped,
			"capacity", q.capacity,
		)
	}
	q.logger.Debug("Restored queue", "restored", len(events), "size", size)
	return nil
}

func (q *Queue) push(event Event) {
	q.nextSeq++
	q.list.PushBack(queuedEvent{seq: q.nextSeq, event: event})
}

func (q *Queue) trim() int {
	if q.capacity <= 0 {
		return 0
	}
	dropped := 0
	for q.list.Len() > q.capacity {
		q.list.Remove(q.list.Front())
		dropped++
	}
	return dropped
}

func (q *Queue) snapshot() []Event {
	events := make([]Event, 0, q.list.Len())
	for e := q.list.Front(); e != nil; e = e.Next() {
		events = append(events, e.Value.(queuedEvent).event)
	}
	return events
}
