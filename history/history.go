// Package history keeps a bounded list of recently visited locations
// for a single session.
//
// The list is owned by the session store. A History only reads and writes it
// through the Store interface and never keeps a copy between calls.
package history

import (
	"encoding/json"
	"fmt"
)

// Key is the name of the store slot holding the location list.
const Key = "relocate.history"

// DefaultCapacity is the number of locations kept when no capacity is configured.
const DefaultCapacity = 5

// Store is the session-scoped key-value store the history is persisted in.
// Get reports false if the key does not exist.
// Set overwrites the whole value.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
}

type History struct {
	store    Store
	capacity int
}

// New returns a History persisted in the given store.
// A capacity of zero or less uses DefaultCapacity.
func New(store Store, capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{
		store:    store,
		capacity: capacity,
	}
}

// Capacity returns the maximum number of locations kept.
func (h *History) Capacity() int {
	return h.capacity
}

// Entries returns all stored locations, oldest first.
// It returns an empty slice if nothing has been recorded.
func (h *History) Entries() ([]string, error) {
	b, ok, err := h.store.Get(Key)
	if err != nil {
		return []string{}, fmt.Errorf("could not read history: %w", err)
	}
	if !ok || len(b) == 0 {
		return []string{}, nil
	}
	var entries []string
	if err := json.Unmarshal(b, &entries); err != nil {
		return []string{}, fmt.Errorf("could not decode history: %w", err)
	}
	if entries == nil {
		entries = []string{}
	}
	return entries, nil
}

// Append adds url as the newest location.
// Nothing happens if url equals the newest stored location.
// If the history is full, the oldest locations are evicted first.
// It returns the number of evicted locations.
func (h *History) Append(url string) (int, error) {
	entries, err := h.Entries()
	if err != nil {
		return 0, err
	}
	if n := len(entries); n > 0 && entries[n-1] == url {
		return 0, nil
	}
	// only a single eviction happens unless the stored list was written elsewhere
	evicted := 0
	if len(entries) >= h.capacity {
		evicted = len(entries) - h.capacity + 1
		entries = entries[evicted:]
	}
	entries = append(entries, url)
	if err := h.save(entries); err != nil {
		return 0, err
	}
	return evicted, nil
}

// Last returns a previously visited location, newest first, starting at offset.
// If skipCurrent is set, locations equal to current are passed over.
// It returns an empty string if there is no such location.
func (h *History) Last(current string, skipCurrent bool, offset int) (string, error) {
	entries, err := h.Entries()
	if err != nil {
		return "", err
	}
	if offset < 0 {
		offset = 0
	}
	for i := len(entries) - 1 - offset; i >= 0; i-- {
		if skipCurrent && entries[i] == current {
			continue
		}
		return entries[i], nil
	}
	return "", nil
}

func (h *History) save(entries []string) error {
	b, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("could not encode history: %w", err)
	}
	if err := h.store.Set(Key, b); err != nil {
		return fmt.Errorf("could not write history: %w", err)
	}
	return nil
}
