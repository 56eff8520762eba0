package recording

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

type recordingKey struct {
	scriptID     int64
	lineIndex    int
	recorderName string
}

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access and hands out clones.
type MemoryRepository struct {
	mu         sync.RWMutex
	nextID     int64
	recordings map[int64]*Recording
	byKey      map[recordingKey]int64
}

// NewMemoryRepository creates a new in-memory recording repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		recordings: make(map[int64]*Recording),
		byKey:      make(map[recordingKey]int64),
	}
}

func keyOf(r *Recording) recordingKey {
	return recordingKey{scriptID: r.ScriptID, lineIndex: r.LineIndex, recorderName: r.RecorderName}
}

// Upsert inserts or replaces the recording sharing rec's conflict key.
func (m *MemoryRepository) Upsert(_ context.Context, rec *Recording) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := keyOf(rec)
	if id, ok := m.byKey[k]; ok {
		rec.ID = id
		rec.CreatedAt = m.recordings[id].CreatedAt
	} else {
		m.nextID++
		rec.ID = m.nextID
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		m.byKey[k] = rec.ID
	}

	stored := rec.Clone()
	stored.ScriptName = ""
	m.recordings[rec.ID] = stored
	return nil
}

// FindByID retrieves a recording by its ID.
func (m *MemoryRepository) FindByID(_ context.Context, id int64) (*Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recordings[id]
	if !ok {
		return nil, ErrRecordingNotFound
	}
	return r.Clone(), nil
}

// List returns the recordings matching f.
func (m *MemoryRepository) List(_ context.Context, f Filter) ([]*Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Recording, 0)
	for _, r := range m.recordings {
		if f.Matches(r) {
			result = append(result, r.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.ScriptID != b.ScriptID {
			return a.ScriptID < b.ScriptID
		}
		if a.LineIndex != b.LineIndex {
			return a.LineIndex < b.LineIndex
		}
		return a.ID < b.ID
	})
	return result, nil
}

// Count returns the number of recordings of scriptID by recorderName.
func (m *MemoryRepository) Count(_ context.Context, scriptID int64, recorderName string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f := Filter{ScriptID: scriptID, RecorderName: recorderName}
	n := 0
	for _, r := range m.recordings {
		if f.Matches(r) {
			n++
		}
	}
	return n, nil
}

// Delete removes a recording from storage.
func (m *MemoryRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recordings[id]
	if !ok {
		return ErrRecordingNotFound
	}
	delete(m.byKey, keyOf(r))
	delete(m.recordings, id)
	return nil
}

// DeleteByScript removes every recording of scriptID.
func (m *MemoryRepository) DeleteByScript(_ context.Context, scriptID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.recordings {
		if r.ScriptID == scriptID {
			delete(m.byKey, keyOf(r))
			delete(m.recordings, id)
		}
	}
	return nil
}
