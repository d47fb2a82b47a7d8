package store

import (
	"context"
	"sync"

	"github.com/woslots/WO/internal/player"
)

// MemoryStore keeps player documents in a map. Used by tests and by dev
// runs without a database URL.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*player.Snapshot
	Fails bool // when set, every call reports a write failure
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*player.Snapshot)}
}

func (s *MemoryStore) Fetch(_ context.Context, dname string) (*player.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Fails {
		return nil, context.DeadlineExceeded
	}
	for _, snap := range s.byID {
		if snap.DName == dname {
			return snap.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Upsert(_ context.Context, snap *player.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fails {
		return context.DeadlineExceeded
	}
	s.byID[snap.ID] = snap.Clone()
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, dname, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, snap := range s.byID {
		if snap.DName == dname || (email != "" && snap.Email == email) {
			return true, nil
		}
	}
	return false, nil
}

// Get returns the stored document by id, for assertions.
func (s *MemoryStore) Get(id string) *player.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if snap, ok := s.byID[id]; ok {
		return snap.Clone()
	}
	return nil
}
