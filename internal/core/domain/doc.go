// Package domain defines the core business entities for the RAPTOR index.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A leaf unit of retrievable text with its embedding
//   - RaptorNode: A persisted summary of a cluster of chunks or lower-layer summaries
//   - BuildState: The marker recorded after a successful tree build
//   - SearchResult: A combined chunk-or-summary retrieval hit
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
