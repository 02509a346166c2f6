package job

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned for unknown or already-reclaimed job ids.
var ErrNotFound = errors.New("job not found")

// Repository owns job records. The in-memory implementation loses state on
// restart (a documented limitation of the process-local design); the redis
// implementation survives restarts but its archive paths are only valid on
// the host that produced them.
type Repository interface {
	Get(ctx context.Context, id string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	// Update applies mutate atomically with respect to other Updates on
	// the same record and returns the stored result.
	Update(ctx context.Context, id string, mutate func(*Record) error) (*Record, error)
	Delete(ctx context.Context, id string) error
}

// MemoryRepository is the default store: a mutex-guarded map.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*Record)}
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryRepository) Put(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *MemoryRepository) Update(_ context.Context, id string, mutate func(*Record) error) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := mutate(rec); err != nil {
		return nil, err
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}
