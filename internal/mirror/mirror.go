// Package mirror is the client-side display cache contract: the last
// rendered payload per view, kept so a reconnecting or refreshing
// client can paint immediately and then revalidate. It is never a
// source of truth and can be rebuilt from zero at any time.
package mirror

import (
	"strings"
	"sync"
	"time"
)

// Mirror stores opaque rendered payloads keyed by view.
type Mirror interface {
	// Get returns the payload if present and fresh.
	Get(key string) ([]byte, bool)
	// GetStale returns the payload if present at all, plus whether it
	// is past its TTL. Stale payloads are paint-then-refresh material.
	GetStale(key string) (payload []byte, stale, ok bool)
	Set(key string, payload []byte, ttl time.Duration)
	// InvalidateFolder drops every key mentioning the folder segment.
	InvalidateFolder(folder string)
	// ClearAll wipes the mirror, used at logout and account switch.
	ClearAll()
}

// MemoryMirror is the in-process Mirror implementation.
type MemoryMirror struct {
	mu      sync.Mutex
	entries map[string]mirrorEntry

	now func() time.Time
}

type mirrorEntry struct {
	payload   []byte
	expiresAt time.Time
}

// NewMemory creates an empty in-memory mirror.
func NewMemory() *MemoryMirror {
	return &MemoryMirror{
		entries: make(map[string]mirrorEntry),
		now:     time.Now,
	}
}

func (m *MemoryMirror) Get(key string) ([]byte, bool) {
	payload, stale, ok := m.GetStale(key)
	if !ok || stale {
		return nil, false
	}
	return payload, true
}

func (m *MemoryMirror) GetStale(key string) ([]byte, bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, false
	}
	return entry.payload, m.now().After(entry.expiresAt), true
}

func (m *MemoryMirror) Set(key string, payload []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = mirrorEntry{
		payload:   append([]byte(nil), payload...),
		expiresAt: m.now().Add(ttl),
	}
}

func (m *MemoryMirror) InvalidateFolder(folder string) {
	segment := ":" + folder + ":"

	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.entries {
		if strings.Contains(key, segment) || strings.HasSuffix(key, ":"+folder) {
			delete(m.entries, key)
		}
	}
}

func (m *MemoryMirror) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]mirrorEntry)
}
