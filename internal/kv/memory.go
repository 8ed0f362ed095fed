package kv

import (
	"strconv"
	"sync"
	"time"
)

// sweepInterval is how often the janitor removes expired entries.
const sweepInterval = time.Minute

// entry is a stored value or set with its expiry deadline.
type entry struct {
	value     string
	set       map[string]struct{}
	expiresAt time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is an in-process Store implementation. Expired entries
// are invisible to readers immediately and physically removed by a
// background janitor.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry

	janitorStop chan struct{}
	closeOnce   sync.Once

	// now is swappable for tests.
	now func() time.Time
}

// NewMemoryStore creates a memory store and starts its janitor.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries:     make(map[string]*entry),
		janitorStop: make(chan struct{}),
		now:         time.Now,
	}

	go s.janitor()
	return s
}

// janitor periodically sweeps expired entries so long-lived processes
// do not accumulate dead keys between reads.
func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.janitorStop:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
		}
	}
}

// live returns the entry for key if present and not expired. Callers
// must hold at least the read lock.
func (s *MemoryStore) live(key string) *entry {
	e, ok := s.entries[key]
	if !ok || e.expired(s.now()) {
		return nil
	}
	return e
}

// Set stores value under key with the given TTL.
func (s *MemoryStore) Set(key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

// Get returns the value for key, missing on absent or expired entries.
func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.live(key)
	if e == nil || e.set != nil {
		return "", false, nil
	}
	return e.value, true, nil
}

// Del removes the given keys.
func (s *MemoryStore) Del(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

// SAdd adds members to the set under key, creating it if needed.
func (s *MemoryStore) SAdd(key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil || e.set == nil {
		e = &entry{set: make(map[string]struct{})}
		s.entries[key] = e
	}
	for _, m := range members {
		e.set[m] = struct{}{}
	}
	return nil
}

// SMembers returns all members of the set under key.
func (s *MemoryStore) SMembers(key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.live(key)
	if e == nil || e.set == nil {
		return nil, nil
	}

	members := make([]string, 0, len(e.set))
	for m := range e.set {
		members = append(members, m)
	}
	return members, nil
}

// SRem removes members from the set under key.
func (s *MemoryStore) SRem(key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil || e.set == nil {
		return nil
	}
	for _, m := range members {
		delete(e.set, m)
	}
	return nil
}

// Expire sets or refreshes the TTL of an existing key.
func (s *MemoryStore) Expire(key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return nil
	}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	} else {
		e.expiresAt = time.Time{}
	}
	return nil
}

// Incr atomically increments the counter under key.
func (s *MemoryStore) Incr(key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	if e := s.live(key); e != nil && e.set == nil {
		parsed, err := strconv.ParseInt(e.value, 10, 64)
		if err == nil {
			n = parsed
		}
		n++
		e.value = strconv.FormatInt(n, 10)
		return n, nil
	}

	n = 1
	s.entries[key] = &entry{value: "1"}
	return n, nil
}

// Close stops the janitor. The store remains usable afterwards; only
// background sweeping stops.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.janitorStop) })
	return nil
}
