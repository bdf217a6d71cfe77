package lock

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	holder     string
	acquiredAt time.Time
	ttl        time.Duration
}

// MemoryStore keeps lock records in process memory. It is the right backend
// for single-node deployments and tests; it upholds the same semantics as
// the persistent stores but coordinates nothing across processes.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[string]memoryRecord
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks: make(map[string]memoryRecord),
		now:   time.Now,
	}
}

func (s *MemoryStore) Acquire(_ context.Context, name, holder string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rec, ok := s.locks[name]; ok && now.Sub(rec.acquiredAt) <= rec.ttl {
		return rec.holder == holder, nil
	}
	s.locks[name] = memoryRecord{holder: holder, acquiredAt: now, ttl: ttl}
	return true, nil
}

func (s *MemoryStore) Heartbeat(_ context.Context, name, holder string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.locks[name]
	if !ok || rec.holder != holder {
		return false, nil
	}
	rec.acquiredAt = s.now()
	s.locks[name] = rec
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, name, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.locks[name]; ok && rec.holder == holder {
		delete(s.locks, name)
	}
	return nil
}
