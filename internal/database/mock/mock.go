// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/facelock/internal/database"
)

// MockKV is an in-memory implementation of database.KV
type MockKV struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	sets  int

	// Error injection
	GetError error
	SetError error
}

// NewMockKV creates an empty mock KV
func NewMockKV() *MockKV {
	return &MockKV{blobs: make(map[string][]byte)}
}

// Get returns a copy of the blob stored under key
func (m *MockKV) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[key]
	if !ok {
		return nil, database.ErrNotFound
	}
	return append([]byte(nil), blob...), nil
}

// Set stores a copy of blob under key
func (m *MockKV) Set(ctx context.Context, key string, blob []byte) error {
	if m.SetError != nil {
		return m.SetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), blob...)
	m.sets++
	return nil
}

// Put seeds a raw blob without counting it as a write
func (m *MockKV) Put(key string, blob []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), blob...)
}

// SetCount returns how many successful Set calls were made
func (m *MockKV) SetCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sets
}

// Verify interface compliance
var _ database.KV = (*MockKV)(nil)
