package state

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store for tests and single-node runs.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

func (m *Memory) Transition(_ context.Context, docID string, stage Stage, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[docID] = Record{
		DocID:     docID,
		Stage:     stage,
		Detail:    detail,
		UpdatedAt: m.now(),
	}
	return nil
}

func (m *Memory) Get(_ context.Context, docID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[docID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

var _ Store = (*Memory)(nil)
