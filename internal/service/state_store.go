package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/GoPolymarket/tradevault/internal/vault"
)

// MemoryStateStore keeps the last snapshot in process. It is used when no
// Redis or Postgres backend is configured, so state does not survive restarts.
type MemoryStateStore struct {
	mu   sync.RWMutex
	body []byte
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

func (s *MemoryStateStore) Save(_ context.Context, snap *vault.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.body = body
	s.mu.Unlock()
	return nil
}

func (s *MemoryStateStore) Load(_ context.Context) (*vault.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.body == nil {
		return nil, nil
	}
	var snap vault.Snapshot
	if err := json.Unmarshal(s.body, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
