package spresso

// Property keys written by the session and membership helpers.
const (
	propertyPostalCode          = "postalCode"
	propertySessionDurationMs   = "sessionDurationMs"
	propertyMembershipStatus    = "membershipStatus"
	propertyMembershipAutoRenew = "membershipAutoRenew"
	propertyAlias               = "alias"
	propertyDistinctID          = "distinctId"
)

// TrackSessionStart marks the start of the current session and records a
// session start event. postalCode is added to properties and overrides a
// property with the same key.
func (c *Client) TrackSessionStart(postalCode string, properties map[string]any) {
	c.identity.StartSession(c.now())

	props := make(map[string]any, len(properties)+1)
	for key, value := range properties {
		props[key] = value
	}
	props[propertyPostalCode] = postalCode

	c.track(EventTypeSessionStart, props)
}

// TrackSessionEnd records a session end event and starts a new session. The
// event carries the session duration when the start was tracked.
func (c *Client) TrackSessionEnd() {
	var props map[string]any
	if started := c.identity.Snapshot().SessionStartedAt; started != nil {
		props = map[string]any{
			propertySessionDurationMs: c.now().Sub(*started).Milliseconds(),
		}
	}

	c.track(EventTypeSessionEnd, props)
	c.CreateNewSessionID()
}

// SetMembership attaches the membership status and auto-renew flag to every
// subsequent event.
func (c *Client) SetMembership(status int, autoRenew bool) {
	c.identity.RegisterSuperProperties(map[string]any{
		propertyMembershipStatus:    status,
		propertyMembershipAutoRenew: autoRenew,
	})
}

// CreateAlias records that alias and forID identify the same user. Empty or
// identical ids are rejected.
func (c *Client) CreateAlias(alias, forID string) {
	switch {
	case alias == "" || forID == "":
		c.logger.Error("Rejected alias with empty id", "alias", alias, "distinctId", forID)
		return
	case alias == forID:
		c.logger.Error("Rejected alias identical to distinct id", "alias", alias)
		return
	}

	c.track(EventTypeCreateAlias, map[string]any{
		propertyAlias:      alias,
		propertyDistinctID: forID,
	})
}

// CreateNewSessionID starts a new session and returns its id. The user id is
// kept.
func (c *Client) CreateNewSessionID() string {
	sessionID := c.identity.NewSession()
	c.logger.Debug("Started new session", "sessionId", sessionID)
	return sessionID
}
