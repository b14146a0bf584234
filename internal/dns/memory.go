package dns

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process zone. It backs local use without a DNS provider.
type Memory struct {
	domain string

	mu      sync.Mutex
	records map[string]Record
}

// NewMemory returns an empty zone for domain.
func NewMemory(domain string) *Memory {
	return &Memory{domain: domain, records: map[string]Record{}}
}

// Domain implements Zone.
func (m *Memory) Domain() string { return m.domain }

// CreateRecord implements Zone.
func (m *Memory) CreateRecord(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Name] = rec
	return nil
}

// DeleteRecord implements Zone.
func (m *Memory) DeleteRecord(_ context.Context, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[name]; !ok {
		return 0, nil
	}
	delete(m.records, name)
	return 1, nil
}

// ListRecords implements Zone.
func (m *Memory) ListRecords(_ context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
