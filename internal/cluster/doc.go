// Package cluster implements the unsupervised machinery behind the
// RAPTOR tree builder: non-linear dimensionality reduction, soft
// Gaussian-mixture clustering with automatic model selection, and the
// pure grouping step that inverts point assignments into clusters.
//
// The package is deterministic for a fixed seed. It depends on gonum
// for the numeric primitives and has no knowledge of chunks, nodes or
// stores; inputs and outputs are plain vectors and index sets.
package cluster
