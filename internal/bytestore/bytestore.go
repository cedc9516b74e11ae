// Package bytestore provides the content-addressed byte store shared by every
// analysis context. Entries are keyed by the BLAKE3 hash of their content, so
// writes are idempotent: the same key always maps to the same bytes, which is
// what lets driver-level results survive a context teardown and recreation.
package bytestore

import (
	"encoding/hex"
	"sync"
	"sync/atomic"

	"github.com/zeebo/blake3"
)

// Store is a concurrent content-addressed byte store. Lookups and writes are
// safe across goroutines; a write for an existing key is a no-op.
type Store struct {
	mu      sync.RWMutex
	entries map[string][]byte

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates an empty store.
func New() *Store {
	return &Store{entries: make(map[string][]byte)}
}

// Hash computes the BLAKE3 content hash of data as a hex string.
func Hash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get returns the bytes stored under key.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	data, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	return data, ok
}

// Put stores data under its content hash and returns the key.
func (s *Store) Put(data []byte) string {
	key := Hash(data)
	s.PutKeyed(key, data)
	return key
}

// PutKeyed stores data under an explicit key. Existing entries are left in
// place: content addressing makes rewrites idempotent.
func (s *Store) PutKeyed(key string, data []byte) {
	s.mu.Lock()
	if _, ok := s.entries[key]; !ok {
		s.entries[key] = data
	}
	s.mu.Unlock()
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats describes store usage.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// GetStats returns usage counters.
func (s *Store) GetStats() Stats {
	return Stats{
		Entries: s.Len(),
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}
}
