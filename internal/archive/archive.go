// Package archive keeps copies of uploaded bank statements.
package archive

import (
	"context"
	"fmt"
	"sync"
)

// Store saves statement files under a key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Noop discards everything. It is used when no archive is configured.
type Noop struct{}

func (Noop) Put(context.Context, string, []byte) error { return nil }

func (Noop) Get(_ context.Context, key string) ([]byte, error) {
	return nil, fmt.Errorf("archive disabled: %s not stored", key)
}

// Memory holds statements in process memory.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: map[string][]byte{}}
}

func (m *Memory) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("archive: %s not found", key)
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		keys = append(keys, k)
	}
	return keys
}
