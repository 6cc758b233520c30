package store

import (
	"context"
	"sync"
	"time"

	"github.com/dotsetgreg/factkeeper/pkg/facts"
)

// MemoryBackend keeps facts in process memory, one slice per sender.
// It never fails and is the local fallback for every durable backend.
type MemoryBackend struct {
	mu    sync.RWMutex
	byKey map[string][]facts.Fact
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{byKey: make(map[string][]facts.Fact)}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Save(_ context.Context, f facts.Fact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	series := m.byKey[f.SubjectKey]
	for i := range series {
		if series[i].ID == f.ID {
			series[i] = cloneFact(f)
			return nil
		}
	}
	m.byKey[f.SubjectKey] = append(series, cloneFact(f))
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, id string) (facts.Fact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, series := range m.byKey {
		for _, f := range series {
			if f.ID == id {
				return cloneFact(f), nil
			}
		}
	}
	return facts.Fact{}, ErrNotFound
}

func (m *MemoryBackend) List(_ context.Context, subjectKey string) ([]facts.Fact, error) {
	m.mu.RLock()
	series := m.byKey[subjectKey]
	out := make([]facts.Fact, 0, len(series))
	for _, f := range series {
		out = append(out, cloneFact(f))
	}
	m.mu.RUnlock()

	facts.NewestFirst(out)
	return out, nil
}

func (m *MemoryBackend) DeleteAll(_ context.Context, subjectKey string) error {
	m.mu.Lock()
	delete(m.byKey, subjectKey)
	m.mu.Unlock()
	return nil
}

// Remove drops a fact once it has reached the durable backend. A copy
// newer than notAfter was written since and is kept.
func (m *MemoryBackend) Remove(subjectKey, id string, notAfter time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	series := m.byKey[subjectKey]
	for i := range series {
		if series[i].ID == id {
			if series[i].CreatedAt.After(notAfter) {
				return
			}
			series = append(series[:i], series[i+1:]...)
			break
		}
	}
	if len(series) == 0 {
		delete(m.byKey, subjectKey)
		return
	}
	m.byKey[subjectKey] = series
}

func (m *MemoryBackend) Search(_ context.Context, query string, limit int) ([]facts.Fact, error) {
	m.mu.RLock()
	var all []facts.Fact
	for _, series := range m.byKey {
		for _, f := range series {
			all = append(all, cloneFact(f))
		}
	}
	m.mu.RUnlock()

	return rank(all, query, limit), nil
}

// Snapshot returns every held fact grouped by sender.
func (m *MemoryBackend) Snapshot() map[string][]facts.Fact {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]facts.Fact, len(m.byKey))
	for k, series := range m.byKey {
		cp := make([]facts.Fact, 0, len(series))
		for _, f := range series {
			cp = append(cp, cloneFact(f))
		}
		out[k] = cp
	}
	return out
}

func (m *MemoryBackend) Close() error { return nil }

func cloneFact(f facts.Fact) facts.Fact {
	if f.Keywords != nil {
		f.Keywords = append([]string(nil), f.Keywords...)
	}
	return f
}
