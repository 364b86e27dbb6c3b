package progress

import (
	"context"
	"sync"
)

// Memory keeps the snapshot in process memory. Used by tests and as the
// fallback when no durable store is configured.
type Memory struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(_ context.Context, snap Snapshot) error {
	snap.Version = SnapshotVersion

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = &snap

	return nil
}

func (m *Memory) Load(_ context.Context, subjectID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.snap == nil || m.snap.SubjectID != subjectID {
		return nil, ErrNotFound
	}

	copied := *m.snap
	return &copied, nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = nil
	return nil
}
