package domain

import (
	"strconv"
	"time"
)

// SearchResult is a single ranked hit from the durable or an ephemeral index.
type SearchResult struct {
	Chunk

	// Distance is the Euclidean distance to the query. Lower is closer.
	Distance float64

	// Ephemeral reports whether the hit came from an attached document.
	Ephemeral bool
}

// Citation is the display reference for a selected result.
type Citation struct {
	// Marker is the 1-based position of the result in the final answer set.
	Marker int

	// SourceTitle is the document title shown to the user.
	SourceTitle string

	// Source is the document identifier.
	Source string

	// Page is the 1-indexed page the cited chunk came from.
	Page int
}

// Label renders the marker as it appears in context text, e.g. "[1]".
func (c Citation) Label() string {
	return "[" + strconv.Itoa(c.Marker) + "]"
}

// NoInformationResponse is shown instead of a model answer when a
// retrieval is empty.
const NoInformationResponse = "I couldn't find any information about that in your documents."

// Retrieval is the outcome of one retrieve call.
type Retrieval struct {
	// RequestID correlates log lines for one call.
	RequestID string

	// Results are ordered ephemeral first, then durable.
	Results []SearchResult

	// Citations correspond 1:1 with Results.
	Citations []Citation
}

// Empty reports the no-information state: nothing relevant was found anywhere.
// Callers must not invoke a language model with an empty context.
func (r *Retrieval) Empty() bool {
	return r == nil || len(r.Results) == 0
}

// IndexStats describes the contents of a durable index.
type IndexStats struct {
	TotalRecords    int
	DistinctSources int
}

// FileInfo identifies the version of a file on disk.
type FileInfo struct {
	// Path is the resolved path.
	Path string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the last modification time.
	ModTime time.Time

	// IsDir is true for directories, which are never indexable.
	IsDir bool
}

// SameVersion reports whether two stats describe the same file contents.
func (f FileInfo) SameVersion(other FileInfo) bool {
	return f.Size == other.Size && f.ModTime.Equal(other.ModTime)
}
