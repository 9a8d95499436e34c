package repository

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"lumenwatch/internal/model"
)

// MemoryStore keeps everything in process. It backs dry runs and tests and
// enforces the same uniqueness rules as the Postgres schema.
type MemoryStore struct {
	mu         sync.RWMutex
	products   map[string]model.ProductRecord
	byKey      map[string]string
	versions   map[string][]model.ProductVersion
	changeLogs map[string][]model.ChangeLogEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:   make(map[string]model.ProductRecord),
		byKey:      make(map[string]string),
		versions:   make(map[string][]model.ProductVersion),
		changeLogs: make(map[string][]model.ChangeLogEntry),
	}
}

func (m *MemoryStore) FindExistingProduct(_ context.Context, brand, modelName, stateProvince string) (*model.ProductRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byKey[productKey(brand, modelName, stateProvince)]
	if !ok {
		return nil, nil
	}
	p := cloneRecord(m.products[id])
	return &p, nil
}

func (m *MemoryStore) InsertProduct(_ context.Context, p model.ProductRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := productKey(p.Brand, p.Model, p.StateProvince)
	if _, ok := m.byKey[key]; ok {
		return fmt.Errorf("insert product %s/%s/%s: %w", p.Brand, p.Model, p.StateProvince, ErrProductExists)
	}
	if _, ok := m.products[p.ID]; ok {
		return fmt.Errorf("insert product %s: %w", p.ID, ErrProductExists)
	}
	m.products[p.ID] = cloneRecord(p)
	m.byKey[key] = p.ID
	return nil
}

func (m *MemoryStore) UpdateProduct(_ context.Context, p model.ProductRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.products[p.ID]
	if !ok {
		return fmt.Errorf("update product %s: %w", p.ID, ErrNotFound)
	}
	next := cloneRecord(p)
	// identity, hash and creation time are owned elsewhere
	next.Brand, next.Model, next.StateProvince, next.BrandID = cur.Brand, cur.Model, cur.StateProvince, cur.BrandID
	next.SpecHash = cur.SpecHash
	next.CreatedAt = cur.CreatedAt
	m.products[p.ID] = next
	return nil
}

func (m *MemoryStore) FindLatestVersionNumber(_ context.Context, productID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := 0
	for _, v := range m.versions[productID] {
		if v.VersionNumber > latest {
			latest = v.VersionNumber
		}
	}
	return latest, nil
}

func (m *MemoryStore) InsertVersion(_ context.Context, v model.ProductVersion) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[v.ProductID]; !ok {
		return "", fmt.Errorf("insert version for %s: %w", v.ProductID, ErrNotFound)
	}
	for _, existing := range m.versions[v.ProductID] {
		if existing.VersionNumber == v.VersionNumber {
			return "", fmt.Errorf("insert version %d for %s: %w", v.VersionNumber, v.ProductID, ErrVersionConflict)
		}
	}
	v.Snapshot = maps.Clone(v.Snapshot)
	m.versions[v.ProductID] = append(m.versions[v.ProductID], v)
	return v.ID, nil
}

func (m *MemoryStore) InsertChangeLogEntries(_ context.Context, productID, _ string, entries []model.ChangeLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[productID]; !ok {
		return fmt.Errorf("insert change log for %s: %w", productID, ErrNotFound)
	}
	m.changeLogs[productID] = append(m.changeLogs[productID], entries...)
	return nil
}

func (m *MemoryStore) UpdateProductHashAndTimestamp(_ context.Context, productID, specHash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return fmt.Errorf("update hash for %s: %w", productID, ErrNotFound)
	}
	p.SpecHash = specHash
	p.LastScrapedAt = at
	m.products[productID] = p
	return nil
}

func (m *MemoryStore) ListVersions(_ context.Context, productID string) ([]model.ProductVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]model.ProductVersion(nil), m.versions[productID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out, nil
}

func (m *MemoryStore) ListChangeLog(_ context.Context, productID string) ([]model.ChangeLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]model.ChangeLogEntry(nil), m.changeLogs[productID]...), nil
}

// Products returns every stored product ordered by brand, model and region.
func (m *MemoryStore) Products() []model.ProductRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.ProductRecord, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, cloneRecord(p))
	}
	sort.Slice(out, func(i, j int) bool {
		return productKey(out[i].Brand, out[i].Model, out[i].StateProvince) <
			productKey(out[j].Brand, out[j].Model, out[j].StateProvince)
	})
	return out
}

func cloneRecord(p model.ProductRecord) model.ProductRecord {
	p.Extra = maps.Clone(p.Extra)
	return p
}
