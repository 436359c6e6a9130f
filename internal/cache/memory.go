package cache

import (
	"context"
	"sync"
)

// Memory is a process-local Backend.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Get(_ context.Context, key string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[key]
	if !ok {
		return Record{}, ErrMiss
	}
	// Copy to avoid race
	r.Value = append([]byte(nil), r.Value...)
	return r, nil
}

func (m *Memory) Put(_ context.Context, r Record) error {
	r.Value = append([]byte(nil), r.Value...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.Key] = r
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *Memory) Close() error { return nil }
