package storage

import (
	"context"
	"sync"

	"groups-exporter/internal/store"
)

// Memory is a Repository kept in process memory.
type Memory struct {
	mu    sync.Mutex
	rows  map[string]GroupRow
	order []string
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[string]GroupRow)}
}

func (m *Memory) UpsertGroup(_ context.Context, row *GroupRow) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.rows[row.Key]
	if !ok {
		m.rows[row.Key] = *row
		m.order = append(m.order, row.Key)
		return true, false, nil
	}
	if existing.CheckSum == row.CheckSum {
		return false, false, nil
	}

	updated := *row
	if !existing.FirstSeenAt.IsZero() {
		updated.FirstSeenAt = existing.FirstSeenAt
	}
	m.rows[row.Key] = updated
	return false, true, nil
}

func (m *Memory) LoadGroups(_ context.Context) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]store.Record, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.rows[key].Record)
	}
	return out, nil
}

func (m *Memory) CountGroups(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order), nil
}

func (m *Memory) ClearGroups(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = make(map[string]GroupRow)
	m.order = nil
	return nil
}

func (m *Memory) Close() error { return nil }
