package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// EphemeralCache builds and caches in-memory indexes of documents attached
// to individual requests.
//
// Each resolved path moves through absent -> building -> ready and back to
// absent when its entry expires, its file changes, or it is invalidated.
// Concurrent requests for a path that is building share one build. Entries
// are published only when a build succeeds, so a failed build leaves the
// path absent and the next request retries.
//
// Builds run on a context detached from the requesting caller. A caller
// that gives up returns immediately; the build keeps running and populates
// the cache for later requests unless CancelOrphanedBuilds is set, in which
// case it is cancelled once no caller is waiting for it.
type EphemeralCache struct {
	fs        driven.FileSystem
	extractor driven.PageExtractor
	chunker   driven.Chunker
	embedder  driven.EmbeddingService
	notifier  driven.ChangeNotifier
	gate      documentGate

	ttl           time.Duration
	buildTimeout  time.Duration
	sweepInterval time.Duration
	cancelOrphans bool
	now           func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	entries   map[string]*cacheEntry
	flights   map[string]*flight
	lastSweep time.Time
	closed    bool
}

// cacheEntry is the cache-owned record around a published index.
type cacheEntry struct {
	index     *domain.EphemeralIndex
	expiresAt time.Time
}

// flight tracks the callers waiting on one build. Its context carries no
// deadline; the build timeout is applied when the build starts.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// EphemeralOption configures an EphemeralCache.
type EphemeralOption func(*EphemeralCache)

// WithClock replaces the time source used for expiry.
func WithClock(now func() time.Time) EphemeralOption {
	return func(c *EphemeralCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithChangeNotifier registers cached paths with n so file changes
// invalidate entries before their next access.
func WithChangeNotifier(n driven.ChangeNotifier) EphemeralOption {
	return func(c *EphemeralCache) {
		c.notifier = n
	}
}

// NewEphemeralCache creates an empty cache.
func NewEphemeralCache(
	fs driven.FileSystem,
	extractor driven.PageExtractor,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	settings domain.EphemeralSettings,
	opts ...EphemeralOption,
) *EphemeralCache {
	defaults := domain.DefaultSettings().Ephemeral
	if settings.TTL <= 0 {
		settings.TTL = defaults.TTL
	}
	if settings.MaxFileBytes <= 0 {
		settings.MaxFileBytes = defaults.MaxFileBytes
	}
	if settings.BuildTimeout <= 0 {
		settings.BuildTimeout = defaults.BuildTimeout
	}
	if settings.SweepInterval <= 0 {
		settings.SweepInterval = defaults.SweepInterval
	}

	c := &EphemeralCache{
		fs:            fs,
		extractor:     extractor,
		chunker:       chunker,
		embedder:      embedder,
		gate:          documentGate{fs: fs, extractor: extractor, maxFileBytes: settings.MaxFileBytes},
		ttl:           settings.TTL,
		buildTimeout:  settings.BuildTimeout,
		sweepInterval: settings.SweepInterval,
		cancelOrphans: settings.CancelOrphanedBuilds,
		now:           time.Now,
		entries:       make(map[string]*cacheEntry),
		flights:       make(map[string]*flight),
	}

	for _, opt := range opts {
		opt(c)
	}
	c.lastSweep = c.now()

	return c
}

// GetIndex returns the index for ref, building it if it is absent, expired
// or stale. Invalid references are rejected with *domain.InputError before
// any work starts.
func (c *EphemeralCache) GetIndex(ctx context.Context, ref string) (*domain.EphemeralIndex, error) {
	path, info, err := c.gate.check(ref)
	if err != nil {
		return nil, err
	}

	idx, f, err := c.lookupOrJoin(ctx, path, info)
	if err != nil {
		return nil, err
	}
	if idx != nil {
		logger.Debug("ephemeral: hit %s (%d chunks)", path, idx.Len())
		return idx, nil
	}

	ch := c.group.DoChan(path, func() (any, error) {
		return c.build(f, path, info)
	})

	select {
	case res := <-ch:
		c.leave(path, f, false)
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logger.Debug("ephemeral: shared build result for %s", path)
		}
		return res.Val.(*domain.EphemeralIndex), nil
	case <-ctx.Done():
		c.leave(path, f, true)
		logger.Debug("ephemeral: caller gave up waiting for %s: %v", path, ctx.Err())
		return nil, ctx.Err()
	}
}

// Resolve validates ref without building and returns its canonical path,
// the key it is cached under.
func (c *EphemeralCache) Resolve(ref string) (string, error) {
	path, _, err := c.gate.check(ref)
	return path, err
}

// Search ranks every chunk of index by exact Euclidean distance to query
// and returns the k closest, ascending.
func (c *EphemeralCache) Search(query []float32, index *domain.EphemeralIndex, k int) []domain.SearchResult {
	if index == nil || k <= 0 {
		return nil
	}

	results := make([]domain.SearchResult, 0, index.Len())
	for i, vec := range index.Vectors {
		if len(vec) != len(query) {
			continue
		}
		results = append(results, domain.SearchResult{
			Chunk:     index.Chunks[i],
			Distance:  domain.EuclideanDistance(query, vec),
			Ephemeral: true,
		})
	}

	domain.SortByDistance(results)
	return domain.Truncate(results, k)
}

// Invalidate drops the entry for ref. A build already in flight for the
// path is not affected.
func (c *EphemeralCache) Invalidate(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return domain.NewInputError(ref, "empty document reference", nil)
	}

	path, err := c.fs.Resolve(ref)
	if err != nil {
		// The file may already be gone; fall back to the reference itself.
		path = ref
	}

	c.mu.Lock()
	_, ok := c.entries[path]
	delete(c.entries, path)
	c.mu.Unlock()

	if ok {
		logger.Debug("ephemeral: invalidated %s", path)
		c.unwatch(path)
	}
	return nil
}

// InvalidatePath drops the entry for an already resolved path.
// It is the callback used by change notifiers.
func (c *EphemeralCache) InvalidatePath(path string) {
	c.mu.Lock()
	_, ok := c.entries[path]
	delete(c.entries, path)
	c.mu.Unlock()

	if ok {
		logger.Debug("ephemeral: %s changed on disk, dropped", path)
		c.unwatch(path)
	}
}

// Clear drops every entry. Builds in flight still publish when they finish.
func (c *EphemeralCache) Clear() {
	c.mu.Lock()
	paths := make([]string, 0, len(c.entries))
	for path := range c.entries {
		paths = append(paths, path)
	}
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()

	logger.Debug("ephemeral: cleared %d entries", len(paths))
	for _, path := range paths {
		c.unwatch(path)
	}
}

// Sweep removes expired entries and returns how many were removed.
func (c *EphemeralCache) Sweep() int {
	c.mu.Lock()
	removed := c.sweepLocked(c.now())
	c.mu.Unlock()

	for _, path := range removed {
		c.unwatch(path)
	}
	if len(removed) > 0 {
		logger.Debug("ephemeral: swept %d expired entries", len(removed))
	}
	return len(removed)
}

// SweepInterval returns how often Sweep should run in the background.
func (c *EphemeralCache) SweepInterval() time.Duration {
	return c.sweepInterval
}

// Len returns the number of ready entries.
func (c *EphemeralCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entries returns a snapshot of the ready entries, sorted by path.
func (c *EphemeralCache) Entries() []domain.EphemeralEntryInfo {
	c.mu.Lock()
	infos := make([]domain.EphemeralEntryInfo, 0, len(c.entries))
	for path, e := range c.entries {
		infos = append(infos, domain.EphemeralEntryInfo{
			Path:      path,
			Chunks:    e.index.Len(),
			ExpiresAt: e.expiresAt,
		})
	}
	c.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos
}

// Close rejects further GetIndex calls and drops every entry.
func (c *EphemeralCache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Clear()
}

// lookupOrJoin returns a ready entry for path, or registers the caller as
// a waiter on the path's build. Check and registration happen under one
// lock so a path never has two builds.
func (c *EphemeralCache) lookupOrJoin(
	ctx context.Context, path string, info domain.FileInfo,
) (*domain.EphemeralIndex, *flight, error) {
	var unwatch []string
	defer func() {
		for _, p := range unwatch {
			c.unwatch(p)
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, nil, domain.ErrCacheClosed
	}

	now := c.now()
	if now.Sub(c.lastSweep) >= c.sweepInterval {
		unwatch = c.sweepLocked(now)
	}

	if e, ok := c.entries[path]; ok {
		switch {
		case !now.Before(e.expiresAt):
			logger.Debug("ephemeral: %s expired", path)
			delete(c.entries, path)
			unwatch = append(unwatch, path)
		case !e.index.Matches(info):
			logger.Debug("ephemeral: %s changed (size %d -> %d), rebuilding", path, e.index.FileSize, info.Size)
			delete(c.entries, path)
			unwatch = append(unwatch, path)
		default:
			e.expiresAt = now.Add(c.ttl)
			return e.index, nil, nil
		}
	}

	f, ok := c.flights[path]
	if !ok {
		buildCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: buildCtx, cancel: cancel}
		c.flights[path] = f
	}
	f.waiters++

	return nil, f, nil
}

// leave unregisters a waiter. A build is only ever cancelled here when
// its last waiter gave up and orphan cancellation is enabled; it is then
// forgotten so the next request starts afresh. Otherwise the build runs
// to completion and publishes, whether or not it has started yet.
func (c *EphemeralCache) leave(path string, f *flight, abandoned bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}

	c.dropFlightLocked(path, f)

	if abandoned && c.cancelOrphans {
		logger.Debug("ephemeral: cancelling orphaned build of %s", path)
		f.cancel()
		c.group.Forget(path)
	}
}

// build produces and publishes the index for path. It runs at most once
// per path at a time.
func (c *EphemeralCache) build(f *flight, path string, info domain.FileInfo) (*domain.EphemeralIndex, error) {
	defer f.cancel()
	if err := f.ctx.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(f.ctx, c.buildTimeout)
	defer cancel()

	c.mu.Lock()
	// A previous build may have published between lookup and now.
	if e, ok := c.entries[path]; ok && e.index.Matches(info) && c.now().Before(e.expiresAt) {
		c.dropFlightLocked(path, f)
		c.mu.Unlock()
		return e.index, nil
	}
	c.mu.Unlock()

	logger.Debug("ephemeral: building %s", path)
	start := time.Now()
	idx, err := c.load(ctx, path, info)

	c.mu.Lock()
	c.dropFlightLocked(path, f)
	if err == nil && !c.closed {
		c.entries[path] = &cacheEntry{index: idx, expiresAt: c.now().Add(c.ttl)}
	}
	c.mu.Unlock()

	if err != nil {
		logger.Debug("ephemeral: build of %s failed: %v", path, err)
		return nil, err
	}

	logger.Debug("ephemeral: built %s in %s (%d chunks)", path, time.Since(start).Round(time.Millisecond), idx.Len())
	c.watch(path)
	return idx, nil
}

// load reads, extracts, chunks and embeds one file.
func (c *EphemeralCache) load(ctx context.Context, path string, info domain.FileInfo) (*domain.EphemeralIndex, error) {
	data, err := c.gate.read(path)
	if err != nil {
		return nil, err
	}

	doc, err := c.extractor.Extract(ctx, path, data)
	if err != nil {
		return nil, err
	}

	chunks := c.chunker.Chunk(doc)
	idx := &domain.EphemeralIndex{
		Path:        path,
		Title:       doc.Title,
		Chunks:      chunks,
		FileSize:    info.Size,
		FileModTime: info.ModTime,
	}

	if len(chunks) > 0 {
		vectors, err := c.embedder.EmbedBatch(ctx, domain.Texts(chunks))
		if err != nil {
			return nil, fmt.Errorf("embed %s: %w", path, err)
		}
		if len(vectors) != len(chunks) {
			return nil, &domain.UpstreamError{
				Service: c.embedder.ModelName(),
				Op:      "embed_batch",
				Err:     fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks)),
			}
		}
		idx.Vectors = vectors
	}

	idx.BuiltAt = c.now()
	return idx, nil
}

// dropFlightLocked stops new callers from joining f. Caller must hold c.mu.
func (c *EphemeralCache) dropFlightLocked(path string, f *flight) {
	if c.flights[path] == f {
		delete(c.flights, path)
	}
}

// sweepLocked removes expired entries. Caller must hold c.mu.
func (c *EphemeralCache) sweepLocked(now time.Time) []string {
	c.lastSweep = now

	var removed []string
	for path, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, path)
			removed = append(removed, path)
		}
	}
	return removed
}

func (c *EphemeralCache) watch(path string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Watch(path); err != nil {
		logger.Warn("ephemeral: cannot watch %s: %v", path, err)
	}
}

func (c *EphemeralCache) unwatch(path string) {
	if c.notifier != nil {
		c.notifier.Unwatch(path)
	}
}
