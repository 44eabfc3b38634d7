// Package domain defines the core retrieval entities for sercha-rag.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: Extracted text of one file, split into pages
//   - Chunk: A page-bounded slice of a document, the unit of retrieval
//   - VectorRecord: A chunk paired with its embedding
//   - EphemeralIndex: An in-memory index built for a single attached file
//   - SearchResult and Citation: Ranked hits and their display markers
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
