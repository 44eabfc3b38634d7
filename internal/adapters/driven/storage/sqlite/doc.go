// Package sqlite provides the SQLite-backed durable index.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Vectors are stored as little-endian
// float32 blobs next to the chunk text and citation metadata.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Search
//
// SQLite has no vector operators, so Search scans the records whose dimension
// matches the query and ranks them in Go. This suits corpora of up to a few
// hundred thousand chunks; larger corpora belong in the postgres backend.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-rag/data/index.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
