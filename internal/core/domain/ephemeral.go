package domain

import "time"

// EphemeralIndex is the in-memory index of one attached document.
// Once published by the cache it is never modified; a changed file
// produces a new EphemeralIndex.
type EphemeralIndex struct {
	// Path is the resolved file path and the cache key.
	Path string

	// Title is the extracted document title.
	Title string

	// Chunks are the document chunks in order.
	Chunks []Chunk

	// Vectors holds the embedding of Chunks[i] at index i.
	Vectors [][]float32

	// FileSize is the size of the file the index was built from.
	FileSize int64

	// FileModTime is the modification time of the file the index was built from.
	FileModTime time.Time

	// BuiltAt is when the build finished.
	BuiltAt time.Time
}

// Len returns the number of indexed chunks.
func (e *EphemeralIndex) Len() int {
	return len(e.Chunks)
}

// Matches reports whether the index was built from the given file version.
func (e *EphemeralIndex) Matches(info FileInfo) bool {
	return e.FileSize == info.Size && e.FileModTime.Equal(info.ModTime)
}

// EphemeralEntryInfo is a snapshot of one cache entry for diagnostics.
type EphemeralEntryInfo struct {
	Path      string
	Chunks    int
	ExpiresAt time.Time
}
