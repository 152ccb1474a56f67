package session

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// Provider is an interface for session storage.
// It stores []byte values under a key, scoped to a session ID.
// Values are always written as a whole.
//
// Implementations must be thread-safe!
type Provider interface {
	// Get returns the value stored for the given session and key, if it exists.
	// It also returns a boolean indicating whether the value was found.
	Get(sessionID, key string) ([]byte, bool, error)
	// Put stores the value for the given session and key, replacing any previous value.
	Put(sessionID, key string, value []byte) error
	// Purge removes all values of the given session.
	Purge(sessionID string) error
	// Has checks if anything is stored for the given session.
	Has(sessionID string) bool
}

type MemProvider struct {
	mutex *sync.RWMutex
	db    map[string]map[string][]byte
}

func NewMemProvider() MemProvider {
	return MemProvider{
		mutex: &sync.RWMutex{},
		db:    make(map[string]map[string][]byte),
	}
}

func (m MemProvider) Get(sessionID, key string) ([]byte, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	values, ok := m.db[sessionID]
	if !ok {
		return nil, false, nil
	}
	value, ok := values[key]
	if !ok {
		return nil, false, nil
	}
	// hand out a copy so callers cannot mutate stored state
	return append([]byte(nil), value...), true, nil
}

func (m MemProvider) Put(sessionID, key string, value []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	values, ok := m.db[sessionID]
	if !ok {
		values = make(map[string][]byte)
		m.db[sessionID] = values
	}
	values[key] = append([]byte(nil), value...)
	return nil
}

func (m MemProvider) Purge(sessionID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, sessionID)
	return nil
}

func (m MemProvider) Has(sessionID string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.db[sessionID]
	return ok
}

type SQLiteProvider struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteProvider creates a new provider with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteProvider(filename string) (SQLiteProvider, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return SQLiteProvider{}, fmt.Errorf("could not open session db: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS session (
		id TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB,
		updated_at INTEGER,
		PRIMARY KEY (id, key)
	)`)
	if err != nil {
		return SQLiteProvider{}, fmt.Errorf("could not create session table: %w", err)
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return SQLiteProvider{}, fmt.Errorf("could not set journal mode: %w", err)
	}
	return SQLiteProvider{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s SQLiteProvider) Get(sessionID, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM session WHERE id = ? AND key = ?", sessionID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s SQLiteProvider) Put(sessionID, key string, value []byte) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("INSERT OR REPLACE INTO session (id, key, value, updated_at) VALUES (?, ?, ?, ?)",
		sessionID, key, value, time.Now().Unix())
	return err
}

func (s SQLiteProvider) Purge(sessionID string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM session WHERE id = ?", sessionID)
	return err
}

func (s SQLiteProvider) Has(sessionID string) bool {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM session WHERE id = ? LIMIT 1", sessionID).Scan(&one)
	return err == nil
}

// PurgeOlderThan removes sessions that have not been written to since t.
// It returns the number of removed values.
func (s SQLiteProvider) PurgeOlderThan(t time.Time) (int64, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	result, err := s.db.Exec(`DELETE FROM session WHERE id IN (
		SELECT id FROM session GROUP BY id HAVING MAX(updated_at) < ?
	)`, t.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Close closes the underlying db.
func (s SQLiteProvider) Close() error {
	return s.db.Close()
}
