package kv

import (
	"errors"
	"sync"
)

// Memory is an in-process Store used by tests and by --ephemeral runs.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string

	// FailWrites makes Set return ErrWriteFailed, for exercising the
	// write-through failure path.
	FailWrites bool
}

// ErrWriteFailed is returned by a Memory store with FailWrites set.
var ErrWriteFailed = errors.New("kv: write failed")

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	if m.FailWrites {
		return ErrWriteFailed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *Memory) Close() error { return nil }
