package session

import (
	"context"
	"sync"

	"github.com/tripflow/platform/pkg/intake"
)

// MemoryStore keeps sessions in process memory. Suitable for a single
// instance; use the redis store when the service is replicated.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*intake.WorkingSubmission
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*intake.WorkingSubmission)}
}

func (s *MemoryStore) Get(ctx context.Context, owner int64) (*intake.WorkingSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws, ok := s.sessions[owner]
	if !ok {
		return nil, nil
	}
	return ws, nil
}

func (s *MemoryStore) Put(ctx context.Context, owner int64, ws *intake.WorkingSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[owner] = ws
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, owner int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, owner)
	return nil
}
