package adapters

import (
	"database/sql"
	"encoding/json"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	id      TEXT NOT NULL,
	payload TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const identityStateKey = "identity"

// SQLiteStorageAdapter persists the queue and identity in a SQLite database.
// The events table is rewritten as a whole on every Save inside a single
// transaction, so readers always observe a complete queue.
type SQLiteStorageAdapter struct {
	db *sql.DB
}

var _ StorageAdapter = (*SQLiteStorageAdapter)(nil)

// OpenSQLiteStorageAdapter creates or opens the database at path.
//
// The database is configured with:
//   - WAL mode so a reader in another process never blocks a write
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func OpenSQLiteStorageAdapter(path string) (*SQLiteStorageAdapter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connect to database")
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "execute %q", pragma)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}

	return &SQLiteStorageAdapter{db: db}, nil
}

// Save replaces the persisted queue with events.
func (s *SQLiteStorageAdapter) Save(events []Event) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM events"); err != nil {
		return errors.Wrap(err, "truncate events")
	}

	stmt, err := tx.Prepare("INSERT INTO events (id, payload) VALUES (?, ?)")
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return errors.Wrapf(err, "marshal event %s", event.ID)
		}
		if _, err := stmt.Exec(event.ID, string(payload)); err != nil {
			return errors.Wrapf(err, "insert event %s", event.ID)
		}
	}

	return errors.Wrap(tx.Commit(), "commit events")
}

// Load retrieves the persisted queue in insertion order.
func (s *SQLiteStorageAdapter) Load() ([]Event, error) {
	rows, err := s.db.Query("SELECT payload FROM events ORDER BY seq")
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		var event Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return nil, errors.Wrap(err, "decode event")
		}
		events = append(events, event)
	}
	return events, errors.Wrap(rows.Err(), "iterate events")
}

// Clear removes all persisted events.
func (s *SQLiteStorageAdapter) Clear() error {
	_, err := s.db.Exec("DELETE FROM events")
	return errors.Wrap(err, "clear events")
}

// SaveIdentity upserts the identity context.
func (s *SQLiteStorageAdapter) SaveIdentity(identity Identity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return errors.Wrap(err, "marshal identity")
	}
	_, err = s.db.Exec(
		"INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		identityStateKey, string(payload),
	)
	return errors.Wrap(err, "save identity")
}

// LoadIdentity retrieves the identity context, or nil if none was saved.
func (s *SQLiteStorageAdapter) LoadIdentity() (*Identity, error) {
	var payload string
	err := s.db.QueryRow("SELECT value FROM state WHERE key = ?", identityStateKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load identity")
	}
	var identity Identity
	if err := json.Unmarshal([]byte(payload), &identity); err != nil {
		return nil, errors.Wrap(err, "decode identity")
	}
	return &identity, nil
}

// Close closes the database connection.
func (s *SQLiteStorageAdapter) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
