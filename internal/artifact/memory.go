package artifact

import (
	"context"
	"sync"
)

// Compile-time check that MemoryRegistry implements Registry.
var _ Registry = (*MemoryRegistry)(nil)

// MemoryRegistry is an in-memory Registry guarded by a RWMutex.
type MemoryRegistry struct {
	mu        sync.RWMutex
	artifacts map[string]CompositedArtifact
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		artifacts: make(map[string]CompositedArtifact),
	}
}

// Save stores a copy of a.
func (r *MemoryRegistry) Save(_ context.Context, a *CompositedArtifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.artifacts[a.ID]; ok {
		return ErrArtifactExists
	}
	r.artifacts[a.ID] = *a
	return nil
}

// FindByID returns a copy of the stored record.
func (r *MemoryRegistry) FindByID(_ context.Context, id string) (*CompositedArtifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.artifacts[id]
	if !ok {
		return nil, ErrArtifactNotFound
	}
	return &a, nil
}

// List returns copies of all records.
func (r *MemoryRegistry) List(_ context.Context) ([]*CompositedArtifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*CompositedArtifact, 0, len(r.artifacts))
	for _, a := range r.artifacts {
		a := a
		result = append(result, &a)
	}
	return result, nil
}

// Delete removes a record.
func (r *MemoryRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.artifacts[id]; !ok {
		return ErrArtifactNotFound
	}
	delete(r.artifacts, id)
	return nil
}
