package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// InMemoryStore implements Store using a map with TTL-based expiration.
// Expired entries are removed on access. Safe for concurrent use.
type InMemoryStore struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

// entry stores an encoded session so callers never share mutable state with the store.
type entry struct {
	raw       []byte
	expiresAt time.Time
}

// NewInMemoryStore creates a new in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

// Get retrieves the session if present and not expired.
func (m *InMemoryStore) Get(ctx context.Context, id string) (*Session, bool, error) {
	m.mu.Lock()
	e, ok := m.data[id]
	if ok && m.now().After(e.expiresAt) {
		delete(m.data, id)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	var s Session
	if err := json.Unmarshal(e.raw, &s); err != nil {
		return nil, false, err
	}
	return &s, true, nil
}

// Set stores the session for ttl.
func (m *InMemoryStore) Set(ctx context.Context, s *Session, ttl time.Duration) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[s.ID] = entry{raw: raw, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Delete removes the session. Unknown IDs are ignored.
func (m *InMemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.data, id)
	m.mu.Unlock()
	return nil
}

// Count returns the number of unexpired sessions and drops expired ones.
func (m *InMemoryStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, e := range m.data {
		if now.After(e.expiresAt) {
			delete(m.data, id)
		}
	}
	return len(m.data)
}
