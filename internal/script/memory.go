package script

import (
	"context"
	"sort"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access and hands out clones.
type MemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	scripts map[int64]*Script
}

// NewMemoryRepository creates a new in-memory script repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		scripts: make(map[int64]*Script),
	}
}

// List returns all scripts ordered by name, then ID.
func (r *MemoryRepository) List(_ context.Context) ([]*Script, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Script, 0, len(r.scripts))
	for _, s := range r.scripts {
		result = append(result, s.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// FindByID retrieves a script by its ID.
func (r *MemoryRepository) FindByID(_ context.Context, id int64) (*Script, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scripts[id]
	if !ok {
		return nil, ErrScriptNotFound
	}
	return s.Clone(), nil
}

// FindByName retrieves a script by its name.
func (r *MemoryRepository) FindByName(_ context.Context, name string) (*Script, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.scripts {
		if s.Name == name {
			return s.Clone(), nil
		}
	}
	return nil, ErrScriptNotFound
}

// Create stores a clone of s under the next free ID and writes the ID back.
func (r *MemoryRepository) Create(_ context.Context, s *Script) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s.ID = r.nextID
	r.scripts[s.ID] = s.Clone()
	return nil
}

// Update replaces the name and lines of the stored script.
func (r *MemoryRepository) Update(_ context.Context, s *Script) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.scripts[s.ID]
	if !ok {
		return ErrScriptNotFound
	}
	updated := s.Clone()
	updated.CreatedAt = existing.CreatedAt
	r.scripts[s.ID] = updated
	s.CreatedAt = existing.CreatedAt
	return nil
}

// Delete removes a script from storage.
func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scripts[id]; !ok {
		return ErrScriptNotFound
	}
	delete(r.scripts, id)
	return nil
}
