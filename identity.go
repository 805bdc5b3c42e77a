package spresso

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// IdentityContext holds who is being tracked: the user id, name tag, session
// id, device id and the super-properties merged into every event.
type IdentityContext struct {
	mu       sync.RWMutex
	identity Identity
	newID    func() string
}

// NewIdentityContext creates a context with a fresh device and session id.
func NewIdentityContext() *IdentityContext {
	c := &IdentityContext{newID: uuid.NewString}
	c.identity = c.defaults()
	return c
}

func (c *IdentityContext) defaults() Identity {
	return Identity{
		DeviceID:  c.newID(),
		SessionID: c.newID(),
	}
}

// Identify sets the user id attached to subsequently created events.
func (c *IdentityContext) Identify(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity.UserID = &userID
}

// IdentifySession replaces the session id.
func (c *IdentityContext) IdentifySession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity.SessionID = sessionID
	c.identity.SessionStartedAt = nil
}

// NewSession generates and returns a new session id. The user id is kept.
func (c *IdentityContext) NewSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity.SessionID = c.newID()
	c.identity.SessionStartedAt = nil
	return c.identity.SessionID
}

// SetNameTag sets the display name of the current user.
func (c *IdentityContext) SetNameTag(nameTag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity.NameTag = &nameTag
}

// RegisterSuperProperties merges props into the super-properties. Values
// must already be normalized.
func (c *IdentityContext) RegisterSuperProperties(props map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity.SuperProperties == nil {
		c.identity.SuperProperties = make(map[string]any, len(props))
	}
	for k, v := range props {
		c.identity.SuperProperties[k] = v
	}
}

// UnregisterSuperProperty removes a single super-property.
func (c *IdentityContext) UnregisterSuperProperty(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.identity.SuperProperties, key)
}

// StartSession records when the current session started.
func (c *IdentityContext) StartSession(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity.SessionStartedAt = &at
}

// Touch records user activity.
func (c *IdentityContext) Touch(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity.LastActivity = at
}

// Reset replaces the whole context with defaults: a new device id, a new
// session id, and no user, name tag or super-properties.
func (c *IdentityContext) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = c.defaults()
}

// SoftReset forgets who the user is but keeps the device, the session and
// the super-properties.
func (c *IdentityContext) SoftReset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity.UserID = nil
	c.identity.NameTag = nil
}

// Snapshot returns a deep copy of the current identity.
func (c *IdentityContext) Snapshot() Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity.Clone()
}

// Load replaces the context with a persisted identity. Missing ids are
// regenerated.
func (c *IdentityContext) Load(identity Identity) {
	identity = identity.Clone()
	if identity.DeviceID == "" {
		identity.DeviceID = c.newID()
	}
	if identity.SessionID == "" {
		identity.SessionID = c.newID()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
}
