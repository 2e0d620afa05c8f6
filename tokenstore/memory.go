package tokenstore

import (
	"context"
	"sync"
)

// Memory is an in-process [Store]. Values do not survive a restart; it exists
// for tests and short-lived tools.
type Memory struct {
	mu     sync.RWMutex
	values map[Kind]string
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{values: make(map[Kind]string, 2)}
}

// Read implements [Store].
func (m *Memory) Read(_ context.Context, kind Kind) (string, bool, error) {
	if !kind.Valid() {
		return "", false, ErrInvalidKind
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[kind]
	return v, ok, nil
}

// Write implements [Store].
func (m *Memory) Write(_ context.Context, kind Kind, value string) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}
	m.mu.Lock()
	m.values[kind] = value
	m.mu.Unlock()
	return nil
}

// WritePair implements [PairWriter].
func (m *Memory) WritePair(_ context.Context, access, refresh string) error {
	m.mu.Lock()
	m.values[AccessToken] = access
	m.values[RefreshToken] = refresh
	m.mu.Unlock()
	return nil
}

// Clear implements [Store].
func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.values = make(map[Kind]string, 2)
	m.mu.Unlock()
	return nil
}
