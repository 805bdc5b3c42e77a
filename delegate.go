package spresso

// Delegate gives the application control over when queued events are
// uploaded. It is consulted before every flush attempt.
//
// ShouldFlushNow runs on the flush goroutine and must return quickly without
// calling back into the Client. Returning false defers the flush until the
// next trigger; it is not treated as an error.
type Delegate interface {
	ShouldFlushNow() bool
}

// DelegateFunc adapts a function to the Delegate interface.
type DelegateFunc func() bool

// ShouldFlushNow calls f.
func (f DelegateFunc) ShouldFlushNow() bool {
	return f()
}
