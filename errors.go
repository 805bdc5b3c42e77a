package spresso

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrQueueOverflow is logged when the queue drops its oldest records to stay
// within MaxQueueSize.
var ErrQueueOverflow = errors.New("event queue capacity exceeded")

// ConfigurationError reports an invalid or missing setting. It is only ever
// returned while constructing or reconfiguring a client.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("spresso: invalid configuration: %s: %s", e.Field, e.Reason)
}

// DeliveryError reports a batch the collector did not acknowledge. The batch
// stays queued for the next flush.
type DeliveryError struct {
	// Status is the HTTP status, or 0 when no response was received.
	Status  int
	Count   int
	Timeout bool
	Err     error
}

func (e *DeliveryError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("spresso: delivery of %d events timed out", e.Count)
	case e.Status != 0:
		return fmt.Sprintf("spresso: collector rejected %d events with status %d", e.Count, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("spresso: delivery of %d events failed: %v", e.Count, e.Err)
	default:
		return fmt.Sprintf("spresso: delivery of %d events failed", e.Count)
	}
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failed read or write of durable state. The
// client keeps working in memory.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("spresso: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
