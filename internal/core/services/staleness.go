package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/raptor/internal/core/domain"
	"github.com/custodia-labs/raptor/internal/core/ports/driven"
	"github.com/custodia-labs/raptor/internal/core/ports/driving"
	"github.com/custodia-labs/raptor/internal/logger"
)

// Ensure StalenessTracker implements the interface.
var _ driving.StalenessChecker = (*StalenessTracker)(nil)

// StalenessTracker decides whether the summary tree still reflects the
// chunk store. Invalidation is conservative: any document mutation after
// the recorded build marks the whole tree stale, whether or not the
// mutated chunks feed an existing node. At the granularity available,
// partial invalidation would require re-deriving the cluster structure
// anyway.
type StalenessTracker struct {
	chunks     driven.ChunkStore
	nodes      driven.RaptorNodeStore
	buildState driven.BuildStateStore
}

// NewStalenessTracker creates a staleness tracker.
func NewStalenessTracker(
	chunks driven.ChunkStore,
	nodes driven.RaptorNodeStore,
	buildState driven.BuildStateStore,
) *StalenessTracker {
	return &StalenessTracker{
		chunks:     chunks,
		nodes:      nodes,
		buildState: buildState,
	}
}

// Freshness returns the tri-state staleness result:
//
//   - FreshnessNeverBuilt: no build marker recorded and no nodes stored.
//   - FreshnessStale: the chunk store changed since the recorded build,
//     or nodes exist without a marker (an interrupted build).
//   - FreshnessFresh: the recorded build matches the live store version.
//
// A missing marker is an expected state, never an error, so callers can
// distinguish "nothing to compare" from "needs rebuild".
func (t *StalenessTracker) Freshness(ctx context.Context) (domain.Freshness, error) {
	state, err := t.buildState.Get(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("get build marker: %w", err)
	}

	if state == nil {
		count, err := t.nodes.Count(ctx)
		if err != nil {
			return "", fmt.Errorf("count nodes: %w", err)
		}
		if count == 0 {
			return domain.FreshnessNeverBuilt, nil
		}
		// Nodes without a marker: a build was interrupted before it
		// completed. Treat as stale so the caller rebuilds.
		logger.Debug("Staleness: %d nodes but no build marker, treating as stale", count)
		return domain.FreshnessStale, nil
	}

	version, err := t.chunks.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("read store version: %w", err)
	}

	if version != state.StoreVersion {
		logger.Debug("Staleness: store version %q differs from build version %q",
			version, state.StoreVersion)
		return domain.FreshnessStale, nil
	}
	return domain.FreshnessFresh, nil
}
