package cluster

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/raptor/internal/core/domain"
)

// Group holds the members assigned to one cluster index.
type Group[T any] struct {
	// Index is the cluster index as produced by the clusterer.
	Index int

	// Members are the items assigned to this cluster, in original
	// item order. An item may appear in several groups.
	Members []T
}

// GroupBy inverts point-to-cluster assignments into cluster-to-members
// groupings. Groups come back in ascending cluster index order.
//
// The function is pure and generic so that parallel structures (cluster
// texts and their source chunk id lists) can be grouped in lockstep:
// grouping two equal-length slices by the same assignments yields
// groups whose positions correspond exactly.
func GroupBy[T any](items []T, assignments Assignments) ([]Group[T], error) {
	if len(items) != len(assignments) {
		return nil, fmt.Errorf("%w: %d items but %d assignment sets",
			domain.ErrInvalidInput, len(items), len(assignments))
	}
	if len(items) == 0 {
		return []Group[T]{}, nil
	}

	byCluster := make(map[int][]T)
	for i, set := range assignments {
		for _, c := range set {
			byCluster[c] = append(byCluster[c], items[i])
		}
	}

	indices := make([]int, 0, len(byCluster))
	for c := range byCluster {
		indices = append(indices, c)
	}
	sort.Ints(indices)

	groups := make([]Group[T], 0, len(indices))
	for _, c := range indices {
		groups = append(groups, Group[T]{Index: c, Members: byCluster[c]})
	}
	return groups, nil
}
