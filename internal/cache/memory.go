package cache

import (
	"context"
	"sync"
	"time"
)

type storedSnapshot struct {
	snapshot  Snapshot
	expiresAt time.Time
}

// MemorySnapshotStore is an in-process snapshot store used when no Redis
// backend is configured. Expiry is evaluated lazily on read.
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]storedSnapshot

	// Now is injected for deterministic tests.
	Now func() time.Time
}

// NewMemorySnapshotStore creates a memory store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{
		snapshots: make(map[string]storedSnapshot),
		Now:       time.Now,
	}
}

// Get reads the snapshot stored under key.
func (s *MemorySnapshotStore) Get(_ context.Context, key string) (Snapshot, bool, error) {
	s.mu.RLock()
	stored, found := s.snapshots[key]
	s.mu.RUnlock()

	if !found {
		return Snapshot{}, false, nil
	}
	if !stored.expiresAt.IsZero() && !s.Now().Before(stored.expiresAt) {
		s.mu.Lock()
		delete(s.snapshots, key)
		s.mu.Unlock()
		return Snapshot{}, false, nil
	}
	return stored.snapshot, true, nil
}

// Put writes the snapshot under key with the given TTL.
func (s *MemorySnapshotStore) Put(_ context.Context, key string, snapshot Snapshot, ttl time.Duration) error {
	entry := storedSnapshot{snapshot: snapshot}
	if ttl > 0 {
		entry.expiresAt = s.Now().Add(ttl)
	}

	s.mu.Lock()
	s.snapshots[key] = entry
	s.mu.Unlock()
	return nil
}
