package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/raptor/internal/core/domain"
	"github.com/custodia-labs/raptor/internal/core/ports/driven"
)

// Ensure BuildStateStore implements the interface.
var _ driven.BuildStateStore = (*BuildStateStore)(nil)

// BuildStateStore is an in-memory implementation of driven.BuildStateStore.
type BuildStateStore struct {
	mu    sync.RWMutex
	state *domain.BuildState
}

// NewBuildStateStore creates a new in-memory build state store.
func NewBuildStateStore() *BuildStateStore {
	return &BuildStateStore{}
}

// Save stores or replaces the build marker.
func (s *BuildStateStore) Save(_ context.Context, state domain.BuildState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &state
	return nil
}

// Get retrieves the build marker.
func (s *BuildStateStore) Get(_ context.Context) (*domain.BuildState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, domain.ErrNotFound
	}
	state := *s.state
	return &state, nil
}

// Clear removes the build marker.
func (s *BuildStateStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = nil
	return nil
}
