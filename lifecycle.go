package spresso

import "context"

// LifecycleEvent is an application state transition reported by the host.
type LifecycleEvent int

const (
	EnteredBackground LifecycleEvent = iota + 1
	EnteredForeground
)

func (e LifecycleEvent) String() string {
	switch e {
	case EnteredBackground:
		return "background"
	case EnteredForeground:
		return "foreground"
	default:
		return "unknown"
	}
}

// HandleLifecycle reacts to an application state transition.
//
// Entering the background archives the queue and identity and, when
// FlushOnBackground is set, triggers a flush. Entering the foreground
// records activity.
func (c *Client) HandleLifecycle(event LifecycleEvent) {
	c.logger.Debug("Lifecycle transition", "state", event.String())

	switch event {
	case EnteredBackground:
		_ = c.Archive()
		if c.settings.flushOnBackground.Load() {
			c.trigger(TriggerBackground)
		}
	case EnteredForeground:
		c.identity.Touch(c.now())
	}
}

// WatchLifecycle handles events from ch until ctx is done, ch is closed or
// the client is disposed.
func (c *Client) WatchLifecycle(ctx context.Context, ch <-chan LifecycleEvent) {
	c.wg.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closed:
				return
			case event, ok := <-ch:
				if !ok {
					return
				}
				c.HandleLifecycle(event)
			}
		}
	})
}
