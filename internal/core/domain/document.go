package domain

import (
	"strconv"
	"strings"
)

// Page is the extracted text of a single page.
type Page struct {
	// Number is the 1-indexed page number.
	Number int

	// Text is the page content after normalisation.
	Text string
}

// Document is the extracted, page-split text of one file.
// It is the input to chunking.
type Document struct {
	// Source identifies the document. For files this is the resolved path.
	Source string

	// Title is the human-readable title used in citations.
	Title string

	// Pages holds the document text in page order.
	Pages []Page
}

// Chunk is a contiguous slice of one page of a document.
// Chunks are values and are never mutated once produced.
type Chunk struct {
	// Source identifies the document the chunk was cut from.
	Source string

	// Title is the document title, carried for citation rendering.
	Title string

	// Page is the 1-indexed page the chunk was cut from.
	Page int

	// ChunkIndex is the 0-indexed position of the chunk within its source.
	ChunkIndex int

	// Text is the chunk content.
	Text string
}

// VectorRecord pairs a chunk with its embedding.
type VectorRecord struct {
	// ID is deterministic, see RecordID.
	ID string

	// Vector is the embedding of Chunk.Text.
	Vector []float32

	// Chunk is the embedded chunk.
	Chunk Chunk
}

// recordIDSeparator joins source and chunk index in record IDs.
const recordIDSeparator = "#"

// RecordID returns the deterministic record key for a chunk.
func RecordID(source string, chunkIndex int) string {
	return source + recordIDSeparator + strconv.Itoa(chunkIndex)
}

// ParseRecordID splits a record key produced by RecordID.
func ParseRecordID(id string) (source string, chunkIndex int, err error) {
	i := strings.LastIndex(id, recordIDSeparator)
	if i < 0 {
		return "", 0, ErrInvalidInput
	}
	idx, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return "", 0, ErrInvalidInput
	}
	return id[:i], idx, nil
}

// NewVectorRecords zips chunks with their vectors.
// The slices must have equal length.
func NewVectorRecords(chunks []Chunk, vectors [][]float32) ([]VectorRecord, error) {
	if len(chunks) != len(vectors) {
		return nil, ErrInvalidInput
	}
	records := make([]VectorRecord, len(chunks))
	for i := range chunks {
		records[i] = VectorRecord{
			ID:     RecordID(chunks[i].Source, chunks[i].ChunkIndex),
			Vector: vectors[i],
			Chunk:  chunks[i],
		}
	}
	return records, nil
}

// Texts returns the chunk texts in order, ready for batch embedding.
func Texts(chunks []Chunk) []string {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	return texts
}

// IngestReport summarises indexing of a single file into the durable index.
type IngestReport struct {
	// Source is the resolved path used as the record source.
	Source string

	// Title is the extracted document title.
	Title string

	// Pages is the number of pages extracted.
	Pages int

	// Chunks is the number of records written.
	Chunks int
}
