package region

import (
	"context"
	"sync"

	"github.com/couchcryptid/metar-etl/internal/domain"
)

// MemoryStore is an in-process domain.RegionStore. It is used when no durable
// store is configured and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	regions map[string]domain.BoundingRegion
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{regions: make(map[string]domain.BoundingRegion)}
}

// Load returns the region stored under key.
func (m *MemoryStore) Load(_ context.Context, key string) (domain.BoundingRegion, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.regions[key]
	return r, ok, nil
}

// Merge stores region under key.
func (m *MemoryStore) Merge(_ context.Context, key string, region domain.BoundingRegion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regions[key] = region
	return nil
}

// Len returns the number of stored regions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.regions)
}
