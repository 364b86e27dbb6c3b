package store

import (
	"context"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// Memory is a thread-safe map-backed store for tests and local development.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memoryObject)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}

	// Copy so callers cannot mutate the stored payload.
	data := make([]byte, len(obj.data))
	copy(data, obj.data)

	return data, nil
}

func (m *Memory) Put(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)

	m.objects[key] = memoryObject{data: stored, contentType: contentType}

	return nil
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
