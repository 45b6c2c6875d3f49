package driven

import (
	"context"

	"github.com/custodia-labs/raptor/internal/core/domain"
)

// BuildStateStore persists the marker recorded after a successful build.
type BuildStateStore interface {
	// Save stores or replaces the build marker.
	Save(ctx context.Context, state domain.BuildState) error

	// Get retrieves the build marker. Returns domain.ErrNotFound when no
	// build has ever been recorded.
	Get(ctx context.Context) (*domain.BuildState, error)

	// Clear removes the build marker. Idempotent.
	Clear(ctx context.Context) error
}
