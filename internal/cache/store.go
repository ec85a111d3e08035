// Package cache implements the on-disk cache used for capability and region
// catalog payloads. Entries are timestamped JSON documents under a single
// cache directory; an entry is valid while now - fetchedAt < ttl. Expired or
// unparsable entries are treated as misses and never served.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTTL is applied when callers pass a non-positive ttl.
const DefaultTTL = 24 * time.Hour

// Stats holds cache counters. Counters live on the store rather than in
// package globals so tests can assert exact hit/miss counts.
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Writes     int64 `json:"writes"`
	Migrations int64 `json:"migrations"`
}

// envelope is the on-disk representation of one cache entry.
type envelope struct {
	Key       string          `json:"key"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Payload   json.RawMessage `json:"payload"`
}

// Store is a file-backed TTL cache. It is safe for concurrent reads;
// concurrent writes to the same key are not serialized and callers partition
// work so no two concurrent units target the same key.
type Store struct {
	mu  sync.RWMutex
	dir string

	hits       atomic.Int64
	misses     atomic.Int64
	writes     atomic.Int64
	migrations atomic.Int64

	// now is replaceable in tests to exercise TTL expiry deterministically
	now func() time.Time
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// NormalizeKey strips characters unsafe for storage from a cache key so
// provider identifiers containing path separators cannot collide or escape
// the cache directory.
func NormalizeKey(key string) string {
	var b strings.Builder
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '.' || c == '-' || c == '_':
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Get returns the payload stored under key if it is younger than ttl.
// A missing, empty or unparsable file is a miss, never an error. When the
// canonical key is absent, legacy subscription-scoped entries are migrated
// into it first (see migrateLegacy).
func (s *Store) Get(key string, ttl time.Duration) ([]byte, bool) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	key = NormalizeKey(key)

	s.mu.RLock()
	env, ok := s.read(key)
	s.mu.RUnlock()

	if !ok {
		if env, ok = s.migrateLegacy(key); !ok {
			s.misses.Add(1)
			return nil, false
		}
	}

	if s.now().Sub(env.FetchedAt) >= ttl {
		s.misses.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	return env.Payload, true
}

// Put writes payload under key, stamping it with the current time. The entry
// is replaced wholesale; there are no partial updates.
func (s *Store) Put(key string, payload []byte) error {
	key = NormalizeKey(key)

	env := envelope{
		Key:       key,
		FetchedAt: s.now(),
		Payload:   json.RawMessage(payload),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path(key), data, 0o644); err != nil {
		return err
	}
	s.writes.Add(1)
	return nil
}

// PutJSON marshals v and stores it under key.
func (s *Store) PutJSON(key string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Put(key, payload)
}

// GetJSON reads the payload under key into v. Decode failures count as
// misses.
func (s *Store) GetJSON(key string, ttl time.Duration, v interface{}) bool {
	payload, ok := s.Get(key, ttl)
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return false
	}
	return true
}

// IsValid reports whether key holds a payload younger than ttl without
// touching the hit/miss counters.
func (s *Store) IsValid(key string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	env, ok := s.read(NormalizeKey(key))
	if !ok {
		return false
	}
	return s.now().Sub(env.FetchedAt) < ttl
}

// Clear removes every entry from the cache directory.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			os.Remove(filepath.Join(s.dir, e.Name()))
		}
	}
	return nil
}

// GetStats returns a snapshot of the cache counters.
func (s *Store) GetStats() Stats {
	return Stats{
		Hits:       s.hits.Load(),
		Misses:     s.misses.Load(),
		Writes:     s.writes.Load(),
		Migrations: s.migrations.Load(),
	}
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// read loads and decodes one entry. Empty or malformed files read as absent.
func (s *Store) read(key string) (envelope, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil || len(data) == 0 {
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, false
	}
	return env, true
}

// migrateLegacy handles the one-time migration of subscription-scoped keys.
// Earlier releases keyed entries as "<subscriptionID>_<key>"; those entries
// hold the same payload but fragment the cache across subscriptions. On a
// canonical-key miss the newest legacy payload is copied into the canonical
// key and returned, so subsequent reads never touch the legacy entries.
func (s *Store) migrateLegacy(key string) (envelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the write lock; another goroutine may have migrated.
	if env, ok := s.read(key); ok {
		return env, true
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return envelope{}, false
	}

	var newest envelope
	found := false
	suffix := "_" + key + ".json"
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		// Only subscription-prefixed names qualify; a canonical key that
		// happens to end in "_<key>" must not be absorbed.
		if !isSubscriptionPrefix(strings.TrimSuffix(e.Name(), suffix)) {
			continue
		}
		legacyKey := strings.TrimSuffix(e.Name(), ".json")
		env, ok := s.read(legacyKey)
		if !ok {
			continue
		}
		if !found || env.FetchedAt.After(newest.FetchedAt) {
			newest = env
			found = true
		}
	}
	if !found {
		return envelope{}, false
	}

	newest.Key = key
	if data, err := json.Marshal(newest); err == nil {
		if err := os.WriteFile(s.path(key), data, 0o644); err == nil {
			s.migrations.Add(1)
		}
	}
	return newest, true
}

// isSubscriptionPrefix reports whether s has the GUID shape of the
// subscription ids legacy keys were prefixed with.
func isSubscriptionPrefix(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, c := range s {
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
			if !isHex {
				return false
			}
		}
	}
	return true
}
