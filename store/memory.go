package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store. It is the default backend and the one used
// in tests; credentials do not survive a restart.
type Memory struct {
	mu    sync.RWMutex
	creds Credentials
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Load returns the current credential pair.
func (m *Memory) Load(_ context.Context) (Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds, nil
}

// Save replaces the credential pair.
func (m *Memory) Save(_ context.Context, creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
	return nil
}

// Clear removes both tokens.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = Credentials{}
	return nil
}
