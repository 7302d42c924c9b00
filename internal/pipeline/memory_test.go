package pipeline

import (
	"context"
	"sync"
)

// MemorySource is a Source over in-process collections.
type MemorySource struct {
	mu          sync.RWMutex
	collections map[string][]Record
}

// NewMemorySource returns an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{collections: make(map[string][]Record)}
}

// Insert appends records to collection.
func (m *MemorySource) Insert(collection string, records ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.collections[collection] = append(m.collections[collection], cloneRecord(r))
	}
}

// Delete removes records of collection whose field equals value.
func (m *MemorySource) Delete(collection, field string, value any) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.collections[collection][:0]
	removed := 0
	for _, r := range m.collections[collection] {
		if Eq(field, value).Matches(r) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.collections[collection] = kept
	return removed
}

func (m *MemorySource) Scan(ctx context.Context, collection string, filter []Predicate) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.collections[collection] {
		if MatchesAll(r, filter) {
			out = append(out, cloneRecord(r))
		}
	}
	return out, nil
}

func (m *MemorySource) Lookup(ctx context.Context, collection, field string, values []any) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.collections[collection] {
		if HasAny(r, field, values) {
			out = append(out, cloneRecord(r))
		}
	}
	return out, nil
}
