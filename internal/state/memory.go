package state

import (
	"context"
	"sync"
)

// MemoryStore keeps states in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[int64]State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: map[int64]State{}}
}

func (m *MemoryStore) Get(_ context.Context, chatID int64) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.states[chatID]; ok {
		return s, nil
	}
	return Start, nil
}

func (m *MemoryStore) Set(_ context.Context, chatID int64, s State) error {
	if _, err := Parse(string(s)); err != nil {
		return err
	}
	m.mu.Lock()
	m.states[chatID] = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Reset(_ context.Context, chatID int64) error {
	m.mu.Lock()
	delete(m.states, chatID)
	m.mu.Unlock()
	return nil
}
