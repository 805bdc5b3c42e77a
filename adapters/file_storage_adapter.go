package adapters

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

const (
	eventsFileName   = "events.json"
	identityFileName = "identity.json"
	lockFileName     = ".lock"
)

// FileStorageAdapter is the default storage adapter implementation using file system.
// It keeps the queue and the identity as JSON files inside a directory.
//
// Writes go to a temporary file that is renamed into place, so a crash never
// leaves a half-written queue behind. A lock file serializes access between
// processes sharing the same directory.
type FileStorageAdapter struct {
	dir string
}

// Ensure FileStorageAdapter implements StorageAdapter interface
var _ StorageAdapter = (*FileStorageAdapter)(nil)

// NewFileStorageAdapter creates a new FileStorageAdapter instance.
//
// Parameters:
//   - dir: Directory holding the storage files; created on first write
func NewFileStorageAdapter(dir string) *FileStorageAdapter {
	return &FileStorageAdapter{dir: dir}
}

// Dir returns the storage directory.
func (f *FileStorageAdapter) Dir() string {
	return f.dir
}

// Save persists events to the queue file.
func (f *FileStorageAdapter) Save(events []Event) error {
	if events == nil {
		events = []Event{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return errors.Wrap(err, "marshal events")
	}
	return f.write(eventsFileName, data)
}

// Load retrieves events from the queue file.
// Returns empty array if file doesn't exist.
func (f *FileStorageAdapter) Load() ([]Event, error) {
	data, err := f.read(eventsFileName)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return []Event{}, nil
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, errors.Wrap(err, "decode events file")
	}
	return events, nil
}

// Clear removes the queue file. Missing files are not an error.
func (f *FileStorageAdapter) Clear() error {
	if _, err := os.Stat(f.dir); os.IsNotExist(err) {
		return nil
	}
	return f.withLock(func() error {
		err := os.Remove(filepath.Join(f.dir, eventsFileName))
		if err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "remove events file")
		}
		return nil
	})
}

// SaveIdentity persists the identity context.
func (f *FileStorageAdapter) SaveIdentity(identity Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return errors.Wrap(err, "marshal identity")
	}
	return f.write(identityFileName, data)
}

// LoadIdentity retrieves the identity context, or nil if none was saved.
func (f *FileStorageAdapter) LoadIdentity() (*Identity, error) {
	data, err := f.read(identityFileName)
	if err != nil || data == nil {
		return nil, err
	}
	var identity Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, errors.Wrap(err, "decode identity file")
	}
	return &identity, nil
}

func (f *FileStorageAdapter) write(name string, data []byte) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return errors.Wrap(err, "create storage directory")
	}

	return f.withLock(func() error {
		tmp, err := os.CreateTemp(f.dir, name+".*.tmp")
		if err != nil {
			return errors.Wrap(err, "create temp file")
		}
		tmpName := tmp.Name()
		defer os.Remove(tmpName)

		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			return errors.Wrapf(err, "write %s", name)
		}
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return errors.Wrapf(err, "sync %s", name)
		}
		if err := tmp.Close(); err != nil {
			return errors.Wrapf(err, "close %s", name)
		}
		return errors.Wrapf(os.Rename(tmpName, filepath.Join(f.dir, name)), "replace %s", name)
	})
}

// read returns nil data when the file or directory does not exist.
func (f *FileStorageAdapter) read(name string) ([]byte, error) {
	if _, err := os.Stat(f.dir); os.IsNotExist(err) {
		return nil, nil
	}

	var data []byte
	err := f.withLock(func() error {
		raw, err := os.ReadFile(filepath.Join(f.dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return errors.Wrapf(err, "read %s", name)
		}
		data = raw
		return nil
	})
	return data, err
}

func (f *FileStorageAdapter) withLock(fn func() error) error {
	fileLock := flock.New(filepath.Join(f.dir, lockFileName))
	if err := fileLock.Lock(); err != nil {
		return errors.Wrap(err, "acquire storage lock")
	}
	defer func(fileLock *flock.Flock) {
		_ = fileLock.Unlock()
	}(fileLock)

	return fn()
}
