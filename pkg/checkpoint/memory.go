package checkpoint

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store used by tests and single-node deployments
// that do not require durability across restarts.
type Memory struct {
	mu    sync.RWMutex
	snaps map[uuid.UUID][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		snaps: make(map[uuid.UUID][]byte),
	}
}

func (m *Memory) Save(_ context.Context, id uuid.UUID, snapshot []byte) error {
	data := make([]byte, len(snapshot))
	copy(data, snapshot)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[id] = data
	return nil
}

func (m *Memory) Load(_ context.Context, id uuid.UUID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.snaps[id]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, id)
	return nil
}
