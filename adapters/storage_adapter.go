package adapters

// StorageAdapter is an interface for durable queue and identity persistence.
// Implement this interface to use custom storage backends (database, key-value store, etc.).
type StorageAdapter interface {
	// Save replaces the persisted queue with events, preserving order.
	//
	// Returns error if save fails.
	Save(events []Event) error

	// Load retrieves persisted events in the order they were saved.
	//
	// Returns an empty slice when nothing has been persisted.
	Load() ([]Event, error)

	// Clear removes all persisted events from storage.
	//
	// Returns error if clear fails.
	Clear() error

	// SaveIdentity persists the identity context.
	SaveIdentity(identity Identity) error

	// LoadIdentity retrieves the persisted identity context.
	//
	// Returns nil and no error when no identity has been persisted.
	LoadIdentity() (*Identity, error)
}
