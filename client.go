package spresso

import (
	"context"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/spresso/spresso-go/adapters"
)

// ErrClientDisposed is returned by Init after Dispose.
var ErrClientDisposed = errors.New("spresso: client disposed")

// Client records analytics events and delivers them to the collector.
//
// All methods are safe for concurrent use. Recording methods never block on
// network I/O and never return errors; problems are reported through the
// logger.
type Client struct {
	config   Config
	settings *settings
	logger   LoggerAdapter

	httpAdapter    HTTPAdapter
	storageAdapter StorageAdapter

	queue      *Queue
	identity   *IdentityContext
	delivery   *DeliveryClient
	dispatcher *Dispatcher
	archiveMu  *Mutex

	platform Platform
	newID    func() string
	now      func() time.Time

	wg        sync.WaitGroup
	closed    chan struct{}
	closeOnce sync.Once
	initOnce  sync.Once
	disposed  atomic.Bool
}

// Configure creates and initializes a client for env with the default
// settings and the given flush interval. A zero interval disables the timer.
func Configure(env Environment, flushInterval time.Duration) (*Client, error) {
	config := DefaultConfig(env)
	config.FlushInterval = flushInterval

	client, err := NewClient(config)
	if err != nil {
		return nil, err
	}
	if err := client.Init(); err != nil {
		return nil, err
	}
	return client, nil
}

// NewClient creates a client from config. Zero values are replaced by
// defaults; an invalid config returns a *ConfigurationError.
//
// Events can be recorded immediately, but nothing is restored from storage
// and the timer does not run until Init is called.
func NewClient(config Config) (*Client, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	storage, err := newStorageAdapter(config)
	if err != nil {
		return nil, err
	}

	client := &Client{
		config:         config,
		settings:       newSettings(config),
		httpAdapter:    config.Adapters.HTTPAdapter,
		storageAdapter: storage,
		identity:       NewIdentityContext(),
		archiveMu:      NewMutex(),
		platform: Platform{
			Type:       "go",
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			SDKVersion: Version,
		},
		newID:  uuid.NewString,
		now:    time.Now,
		closed: make(chan struct{}),
	}

	logger := config.Adapters.LoggerAdapter
	if logger == nil {
		logger = adapters.NewZapLoggerAdapter(config.LogLevel)
	}
	client.logger = switchLogger{next: logger, enabled: &client.settings.loggingEnabled}

	if client.httpAdapter == nil {
		client.httpAdapter = adapters.NewNetHTTPAdapter(adapters.WithGzip(config.Gzip))
	}

	client.queue = NewQueue(config.MaxQueueSize, client.storageAdapter, client.logger)
	client.delivery = NewDeliveryClient(config, client.settings, client.httpAdapter, client.logger)
	client.dispatcher = NewDispatcher(
		client.queue,
		client.delivery,
		config.Delegate,
		client.settings,
		config.MaxBatchSize,
		client.logger,
	)
	return client, nil
}

func newStorageAdapter(config Config) (StorageAdapter, error) {
	if config.Adapters.StorageAdapter != nil {
		return config.Adapters.StorageAdapter, nil
	}

	switch config.Storage.Driver {
	case StorageDriverNone:
		return adapters.NewNoOpStorageAdapter(), nil
	case StorageDriverSQLite:
		storage, err := adapters.OpenSQLiteStorageAdapter(config.Storage.Path)
		if err != nil {
			return nil, &ConfigurationError{Field: "storage.path", Reason: err.Error()}
		}
		return storage, nil
	default:
		return adapters.NewFileStorageAdapter(config.Storage.Path), nil
	}
}

// Init restores the persisted identity and queue and starts the flush timer.
// Persistence failures are logged and the client continues in memory.
// Calling Init more than once has no effect.
func (c *Client) Init() error {
	if c.disposed.Load() {
		return ErrClientDisposed
	}

	c.initOnce.Do(func() {
		c.restoreIdentity()
		_ = c.queue.Restore()
		c.dispatcher.Start()

		c.logger.Info("Client initialized",
			"environment", c.config.Environment.String(),
			"endpoint", c.delivery.Endpoint(),
			"flushInterval", c.settings.flushInterval.Load(),
			"queued", c.queue.Len(),
		)
	})
	return nil
}

func (c *Client) restoreIdentity() {
	identity, err := c.storageAdapter.LoadIdentity()
	if err != nil {
		perr := &PersistenceError{Op: "restore identity", Err: err}
		c.logger.Error("Failed to restore identity", "error", perr)
		return
	}
	if identity != nil {
		c.identity.Load(*identity)
	}
}

// Identify attributes events recorded from now on to userID. Events already
// queued are not changed.
func (c *Client) Identify(userID string) {
	if userID == "" {
		c.logger.Warn("Ignored empty user id")
		return
	}
	c.identity.Identify(userID)
	c.logger.Debug("Identified user", "userId", userID)
}

// IdentifySession replaces the current session id.
func (c *Client) IdentifySession(sessionID string) {
	if sessionID == "" {
		c.logger.Warn("Ignored empty session id")
		return
	}
	c.identity.IdentifySession(sessionID)
	c.logger.Debug("Identified session", "sessionId", sessionID)
}

// SetNameTag sets the display name attached to subsequent events.
func (c *Client) SetNameTag(nameTag string) {
	c.identity.SetNameTag(nameTag)
}

// RegisterSuperProperties merges props into the properties attached to every
// subsequent event. Event properties win over super-properties with the same
// key.
func (c *Client) RegisterSuperProperties(props map[string]any) {
	normalized := c.normalize("super-properties", props)
	if len(normalized) == 0 {
		return
	}
	c.identity.RegisterSuperProperties(normalized)
}

// UnregisterSuperProperty stops attaching key to subsequent events.
func (c *Client) UnregisterSuperProperty(key string) {
	c.identity.UnregisterSuperProperty(key)
}

// Track records an event. properties may be nil.
//
// Nothing is recorded while collection is disabled or when name is empty or
// longer than 255 characters. Properties with unsupported values are dropped
// one by one and the event is still recorded.
func (c *Client) Track(name string, properties map[string]any) {
	c.track(name, properties)
}

func (c *Client) track(name string, properties map[string]any) bool {
	if c.disposed.Load() {
		c.logger.Warn("Dropped event recorded after dispose", "event", name)
		return false
	}
	if !c.settings.collectionEnabled.Load() {
		return false
	}
	if err := validateName(name); err != nil {
		c.logger.Error("Dropped event with invalid name", "event", name, "error", err)
		return false
	}

	c.record(name, c.normalize(name, properties))
	return true
}

// normalize copies props, dropping invalid keys and values with a warning.
func (c *Client) normalize(event string, props map[string]any) map[string]any {
	normalized, errs := adapters.NormalizeProperties(props)
	for _, err := range errs {
		c.logger.Warn("Dropped invalid property", "event", event, "error", err)
	}
	for key := range normalized {
		if err := validateName(key); err != nil {
			c.logger.Warn("Dropped invalid property", "event", event, "error", err)
			delete(normalized, key)
		}
	}
	return normalized
}

// record enriches props with the identity context and enqueues the event.
// props must already be normalized and owned by the caller.
func (c *Client) record(name string, props map[string]any) {
	now := c.now()
	identity := c.identity.Snapshot()

	properties := identity.SuperProperties
	if properties == nil && len(props) > 0 {
		properties = make(map[string]any, len(props))
	}
	for key, value := range props {
		properties[key] = value
	}

	platform := c.platform
	event := Event{
		ID:          c.newID(),
		Name:        name,
		Properties:  properties,
		Timestamp:   now.UTC(),
		SessionID:   identity.SessionID,
		UserID:      identity.UserID,
		DeviceID:    identity.DeviceID,
		NameTag:     identity.NameTag,
		Environment: c.config.Environment.String(),
		Platform:    &platform,
	}

	c.identity.Touch(now)
	c.queue.Enqueue(event)
	c.logger.Debug("Recorded event", "event", name, "id", event.ID)
}

func validateName(name string) error {
	switch {
	case name == "":
		return errors.New("name cannot be empty")
	case len(name) > maxNameLength:
		return errors.Errorf("name cannot exceed %d characters", maxNameLength)
	}
	return nil
}

// Flush requests delivery of the queued events and returns immediately. The
// channel receives the result once the attempt is over.
func (c *Client) Flush() <-chan FlushResult {
	return c.trigger(TriggerManual)
}

func (c *Client) trigger(trigger FlushTrigger) <-chan FlushResult {
	return c.dispatcher.Trigger(trigger)
}

// Archive persists the queue and the identity without sending anything.
func (c *Client) Archive() error {
	return c.archiveMu.RunAtomic(func() error {
		queueErr := c.queue.Persist()
		identityErr := c.persistIdentity()
		if queueErr != nil {
			return queueErr
		}
		return identityErr
	})
}

func (c *Client) persistIdentity() error {
	if err := c.storageAdapter.SaveIdentity(c.identity.Snapshot()); err != nil {
		perr := &PersistenceError{Op: "persist identity", Err: err}
		c.logger.Error("Failed to persist identity", "error", perr)
		return perr
	}
	return nil
}

// Reset forgets everything about the current user: a new device id and
// session id are generated and the user id, name tag and super-properties
// are cleared. Queued events are kept.
func (c *Client) Reset() {
	c.identity.Reset()
	c.logger.Debug("Identity reset", "deviceId", c.identity.Snapshot().DeviceID)
}

// SoftReset clears the user id and name tag. The device, session and
// super-properties are kept.
func (c *Client) SoftReset() {
	c.identity.SoftReset()
	c.logger.Debug("Identity soft reset")
}

// UserID returns the identified user, or "" before Identify.
func (c *Client) UserID() string {
	if id := c.identity.Snapshot().UserID; id != nil {
		return *id
	}
	return ""
}

// SessionID returns the current session id.
func (c *Client) SessionID() string {
	return c.identity.Snapshot().SessionID
}

// DeviceID returns the device id.
func (c *Client) DeviceID() string {
	return c.identity.Snapshot().DeviceID
}

// LastActivity returns when an event was last recorded or the application
// last came to the foreground.
func (c *Client) LastActivity() time.Time {
	return c.identity.Snapshot().LastActivity
}

// QueueLen returns the number of events waiting for delivery.
func (c *Client) QueueLen() int {
	return c.queue.Len()
}

// FlushState returns the scheduler state.
func (c *Client) FlushState() FlushState {
	return c.dispatcher.State()
}

// SetSendEnabled turns delivery on or off. Events are still recorded while
// sending is disabled.
func (c *Client) SetSendEnabled(enabled bool) {
	c.settings.sendEnabled.Store(enabled)
}

// SetCollectionEnabled turns recording on or off.
func (c *Client) SetCollectionEnabled(enabled bool) {
	c.settings.collectionEnabled.Store(enabled)
}

// SetFlushOnBackground controls whether entering the background flushes.
func (c *Client) SetFlushOnBackground(enabled bool) {
	c.settings.flushOnBackground.Store(enabled)
}

// SetLoggingEnabled turns all client logging on or off.
func (c *Client) SetLoggingEnabled(enabled bool) {
	c.settings.loggingEnabled.Store(enabled)
}

// SetFlushInterval changes the timer period. Zero disables the timer.
func (c *Client) SetFlushInterval(interval time.Duration) error {
	if interval < 0 {
		return &ConfigurationError{Field: "flushInterval", Reason: "must not be negative"}
	}
	c.dispatcher.SetFlushInterval(interval)
	return nil
}

// SetServerURL points delivery at a different collector. Batches already in
// flight keep their endpoint.
func (c *Client) SetServerURL(serverURL string) error {
	serverURL = strings.TrimRight(serverURL, "/")
	if err := validateServerURL(serverURL); err != nil {
		return err
	}
	c.settings.serverURL.Store(serverURL)
	return nil
}

// Dispose stops the timer, makes a final delivery attempt when sending is
// enabled, persists the queue and identity and releases the storage.
func (c *Client) Dispose() error {
	return c.dispose(true)
}

// DisposeWithoutFlush stops the client and persists events to storage without
// flushing to server.
func (c *Client) DisposeWithoutFlush() error {
	return c.dispose(false)
}

func (c *Client) dispose(flush bool) error {
	var err error
	c.closeOnce.Do(func() {
		c.logger.Info("Disposing client", "flush", flush)
		c.disposed.Store(true)
		close(c.closed)

		ctx := context.Background()
		if flush {
			result, _ := c.dispatcher.Shutdown(ctx)
			if result.Err != nil {
				c.logger.Warn("Final flush failed", "remaining", result.Remaining, "error", result.Err)
			}
		} else {
			_ = c.dispatcher.Stop(ctx)
		}
		c.wg.Wait()

		err = c.Archive()
		if closer, ok := c.storageAdapter.(io.Closer); ok {
			if cerr := closer.Close(); cerr != nil && err == nil {
				err = &PersistenceError{Op: "close storage", Err: cerr}
			}
		}
	})
	return err
}
