package employee

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is the map-backed roster used in development and tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	employees map[string]*Employee
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{employees: make(map[string]*Employee)}
}

func (m *MemoryRepository) Create(ctx context.Context, e *Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.employees[e.ID]; ok {
		return ErrDuplicate
	}
	cp := *e
	m.employees[e.ID] = &cp
	return nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (*Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.employees[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryRepository) List(ctx context.Context) ([]*Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Employee, 0, len(m.employees))
	for _, e := range m.employees {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryRepository) SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.employees[id]
	if !ok {
		return ErrNotFound
	}
	e.Active = active
	e.UpdatedAt = updatedAt
	return nil
}

func (m *MemoryRepository) SetPINDigest(ctx context.Context, id, digest string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.employees[id]
	if !ok {
		return ErrNotFound
	}
	e.PINDigest = digest
	e.UpdatedAt = updatedAt
	return nil
}
