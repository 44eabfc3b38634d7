package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// --- Mock implementations shared by the service tests ---

type fakeFile struct {
	data    []byte
	modTime time.Time
	dir     bool
}

// fakeFS resolves relative references against /docs.
type fakeFS struct {
	mu      sync.Mutex
	files   map[string]*fakeFile
	readErr error
	reads   int
}

func newFakeFS() *fakeFS {
	return &fakeFS{files: make(map[string]*fakeFile)}
}

func (f *fakeFS) put(p, content string, modTime time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[f.abs(p)] = &fakeFile{data: []byte(content), modTime: modTime}
}

func (f *fakeFS) mkdir(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[f.abs(p)] = &fakeFile{dir: true}
}

func (f *fakeFS) remove(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, f.abs(p))
}

func (f *fakeFS) abs(ref string) string {
	if strings.HasPrefix(ref, "/") {
		return path.Clean(ref)
	}
	return path.Join("/docs", ref)
}

func (f *fakeFS) Resolve(ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.abs(ref)
	if _, ok := f.files[p]; !ok {
		return "", fmt.Errorf("resolve %s: %w", ref, os.ErrNotExist)
	}
	return p, nil
}

func (f *fakeFS) Stat(p string) (domain.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[p]
	if !ok {
		return domain.FileInfo{}, os.ErrNotExist
	}
	return domain.FileInfo{
		Path:    p,
		Size:    int64(len(file.data)),
		ModTime: file.modTime,
		IsDir:   file.dir,
	}, nil
}

func (f *fakeFS) ReadFile(p string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	file, ok := f.files[p]
	if !ok {
		return nil, os.ErrNotExist
	}
	return append([]byte(nil), file.data...), nil
}

// fakeEmbedder returns deterministic vectors. When gate is set, EmbedBatch
// blocks until the gate is closed or its context ends.
type fakeEmbedder struct {
	mu         sync.Mutex
	vectors    map[string][]float32
	err        error
	queryErr   error
	gate       chan struct{}
	started    chan struct{}
	batchCalls int
	queryCalls int
	cancelled  int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		vectors: make(map[string][]float32),
		started: make(chan struct{}, 16),
	}
}

func (e *fakeEmbedder) set(text string, vec ...float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[text] = vec
}

func (e *fakeEmbedder) vectorFor(text string) []float32 {
	if v, ok := e.vectors[text]; ok {
		return v
	}
	return []float32{float32(len(text)), 0}
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queryCalls++
	if e.queryErr != nil {
		return nil, e.queryErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vectorFor(text), nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.batchCalls++
	gate, err := e.gate, e.err
	e.mu.Unlock()

	select {
	case e.started <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			e.mu.Lock()
			e.cancelled++
			e.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vectorFor(text)
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int              { return 2 }
func (e *fakeEmbedder) ModelName() string            { return "fake-embed" }
func (e *fakeEmbedder) Ping(_ context.Context) error { return nil }
func (e *fakeEmbedder) Close() error                 { return nil }

func (e *fakeEmbedder) counts() (batch, query, cancelled int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batchCalls, e.queryCalls, e.cancelled
}

func (e *fakeEmbedder) setErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// fakeDurable is an in-memory DurableIndex with brute-force search.
type fakeDurable struct {
	mu        sync.Mutex
	records   map[string][]domain.VectorRecord
	searchErr error
	upsertErr error
	block     bool
	searches  int
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{records: make(map[string][]domain.VectorRecord)}
}

func (d *fakeDurable) add(source, title string, texts map[string][]float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(texts))
	for text := range texts {
		keys = append(keys, text)
	}
	sort.Strings(keys)
	for i, text := range keys {
		chunk := domain.Chunk{Source: source, Title: title, Page: 1, ChunkIndex: i, Text: text}
		d.records[source] = append(d.records[source], domain.VectorRecord{
			ID:     domain.RecordID(source, i),
			Vector: texts[text],
			Chunk:  chunk,
		})
	}
}

func (d *fakeDurable) UpsertBySource(_ context.Context, source string, records []domain.VectorRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.upsertErr != nil {
		return d.upsertErr
	}
	d.records[source] = append([]domain.VectorRecord(nil), records...)
	return nil
}

func (d *fakeDurable) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	d.mu.Lock()
	d.searches++
	block, searchErr := d.block, d.searchErr
	d.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if searchErr != nil {
		return nil, searchErr
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	var results []domain.SearchResult
	for _, recs := range d.records {
		for _, r := range recs {
			results = append(results, domain.SearchResult{
				Chunk:    r.Chunk,
				Distance: domain.EuclideanDistance(vector, r.Vector),
			})
		}
	}
	domain.SortByDistance(results)
	return domain.Truncate(results, k), nil
}

func (d *fakeDurable) Stats(_ context.Context) (domain.IndexStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	stats := domain.IndexStats{DistinctSources: len(d.records)}
	for _, recs := range d.records {
		stats.TotalRecords += len(recs)
	}
	return stats, nil
}

func (d *fakeDurable) DeleteSource(_ context.Context, source string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.records, source)
	return nil
}

func (d *fakeDurable) Clear(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = make(map[string][]domain.VectorRecord)
	return nil
}

func (d *fakeDurable) Close() error { return nil }

// fakeNotifier records watch registrations.
type fakeNotifier struct {
	mu       sync.Mutex
	watched  map[string]bool
	watchErr error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{watched: make(map[string]bool)}
}

func (n *fakeNotifier) Watch(p string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.watchErr != nil {
		return n.watchErr
	}
	n.watched[p] = true
	return nil
}

func (n *fakeNotifier) Unwatch(p string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.watched, p)
}

func (n *fakeNotifier) isWatched(p string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.watched[p]
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakePrompts serves prompts from a map.
type fakePrompts struct {
	prompts map[string]string
}

func (p *fakePrompts) Load(name string) (string, error) {
	if s, ok := p.prompts[name]; ok {
		return s, nil
	}
	return "", errors.New("prompt not found: " + name)
}

func (p *fakePrompts) Reload() {}

// Verify interface compliance
var (
	_ driven.FileSystem       = (*fakeFS)(nil)
	_ driven.EmbeddingService = (*fakeEmbedder)(nil)
	_ driven.DurableIndex     = (*fakeDurable)(nil)
	_ driven.ChangeNotifier   = (*fakeNotifier)(nil)
	_ driven.PromptStore      = (*fakePrompts)(nil)
)

// longText returns n sentences, enough to pass the chunker's minimum length.
func longText(topic string, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "This sentence talks about %s in some detail, number %d. ", topic, i)
	}
	return strings.TrimSpace(b.String())
}
