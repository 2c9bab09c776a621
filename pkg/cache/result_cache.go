// Package cache provides the content-addressed analysis result cache shared
// by concurrent scan pipelines.
package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
	"github.com/Sumatoshi-tech/autoscan/pkg/fingerprint"
	"github.com/Sumatoshi-tech/autoscan/pkg/safeconv"
)

// DefaultShards is the default number of independently locked shards.
const DefaultShards = 32

// DefaultMaxEntries is the default cap on cached (file, analyzer) results.
const DefaultMaxEntries = 16384

// ResultCache maps (file identity, analyzer name) to a prior analysis result.
// Entries for a file are valid only while the file fingerprint is unchanged;
// a mismatch evicts that file's entries and counts as a miss.
//
// Each path hashes to one shard with its own lock, so workers scanning
// different files rarely contend. Within a shard files are kept in LRU order
// and whole files are evicted once the shard exceeds its share of MaxEntries.
type ResultCache struct {
	shards      []*shard
	maxPerShard int

	// Metrics (atomic for lock-free reads).
	hits      atomic.Int64
	misses    atomic.Int64
	stale     atomic.Int64
	evictions atomic.Int64
}

type shard struct {
	mu      sync.Mutex
	files   map[string]*fileEntry
	head    *fileEntry // Most recently used.
	tail    *fileEntry // Least recently used.
	entries int
}

type fileEntry struct {
	path    string
	fp      fingerprint.Fingerprint
	results map[string]analyze.Result
	prev    *fileEntry
	next    *fileEntry
}

// Option configures a ResultCache.
type Option func(*config)

type config struct {
	shards     int
	maxEntries int
}

// WithShards sets the shard count.
func WithShards(n int) Option {
	return func(c *config) { c.shards = n }
}

// WithMaxEntries caps the number of cached results across all shards.
func WithMaxEntries(n int) Option {
	return func(c *config) { c.maxEntries = n }
}

// New creates an empty cache.
func New(opts ...Option) *ResultCache {
	cfg := config{shards: DefaultShards, maxEntries: DefaultMaxEntries}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.shards <= 0 {
		cfg.shards = DefaultShards
	}

	if cfg.maxEntries <= 0 {
		cfg.maxEntries = DefaultMaxEntries
	}

	c := &ResultCache{
		shards:      make([]*shard, cfg.shards),
		maxPerShard: max(cfg.maxEntries/cfg.shards, 1),
	}

	for i := range c.shards {
		c.shards[i] = &shard{files: make(map[string]*fileEntry)}
	}

	return c
}

func (c *ResultCache) shardFor(path string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))

	return c.shards[h.Sum32()%safeconv.MustIntToUint32(len(c.shards))]
}

// Get returns the cached result for the analyzer, or false on a miss. A
// lookup with a newer fingerprint evicts the file's stale entries.
func (c *ResultCache) Get(id fingerprint.FileID, analyzerName string) (analyze.Result, bool) {
	s := c.shardFor(id.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.files[id.Path]
	if !ok {
		c.misses.Add(1)

		return analyze.Result{}, false
	}

	if entry.fp != id.Fingerprint {
		// A reader holding an older fingerprint must not drop newer results.
		if !entry.fp.NewerThan(id.Fingerprint) {
			s.remove(entry)
			c.stale.Add(1)
		}

		c.misses.Add(1)

		return analyze.Result{}, false
	}

	result, ok := entry.results[analyzerName]
	if !ok {
		c.misses.Add(1)

		return analyze.Result{}, false
	}

	c.hits.Add(1)
	s.moveToFront(entry)

	return result.Clone(), true
}

// Put stores a result. A newer fingerprint replaces every entry of the file;
// a result computed from an older one is dropped.
func (c *ResultCache) Put(id fingerprint.FileID, analyzerName string, result analyze.Result) {
	s := c.shardFor(id.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.files[id.Path]
	if ok && entry.fp != id.Fingerprint {
		if entry.fp.NewerThan(id.Fingerprint) {
			return
		}

		s.remove(entry)
		c.stale.Add(1)

		ok = false
	}

	if !ok {
		entry = &fileEntry{
			path:    id.Path,
			fp:      id.Fingerprint,
			results: make(map[string]analyze.Result),
		}
		s.files[id.Path] = entry
		s.addToFront(entry)
	} else {
		s.moveToFront(entry)
	}

	if _, exists := entry.results[analyzerName]; !exists {
		s.entries++
	}

	entry.results[analyzerName] = result.Clone()

	for s.entries > c.maxPerShard && s.tail != nil && s.tail != entry {
		c.evictions.Add(int64(len(s.tail.results)))
		s.remove(s.tail)
	}
}

// IsValid reports whether the cache holds entries for the file at its current fingerprint.
func (c *ResultCache) IsValid(id fingerprint.FileID) bool {
	s := c.shardFor(id.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.files[id.Path]

	return ok && entry.fp == id.Fingerprint
}

// Invalidate drops every entry for path.
func (c *ResultCache) Invalidate(path string) {
	s := c.shardFor(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.files[path]; ok {
		s.remove(entry)
	}
}

// Clear removes all entries. Statistics are kept.
func (c *ResultCache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.files = make(map[string]*fileEntry)
		s.head = nil
		s.tail = nil
		s.entries = 0
		s.mu.Unlock()
	}
}

// Stats returns a snapshot of cache statistics.
func (c *ResultCache) Stats() Stats {
	stats := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Stale:     c.stale.Load(),
		Evictions: c.evictions.Load(),
	}

	for _, s := range c.shards {
		s.mu.Lock()
		stats.Entries += s.entries
		stats.Files += len(s.files)
		s.mu.Unlock()
	}

	return stats
}

// Stats holds cache performance metrics.
type Stats struct {
	Hits      int64
	Misses    int64
	Stale     int64
	Evictions int64
	Entries   int
	Files     int
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}

	return float64(s.Hits) / float64(total)
}

func (s *shard) remove(entry *fileEntry) {
	s.unlink(entry)
	delete(s.files, entry.path)
	s.entries -= len(entry.results)
}

func (s *shard) moveToFront(entry *fileEntry) {
	if entry == s.head {
		return
	}

	s.unlink(entry)
	s.addToFront(entry)
}

func (s *shard) addToFront(entry *fileEntry) {
	entry.prev = nil
	entry.next = s.head

	if s.head != nil {
		s.head.prev = entry
	}

	s.head = entry

	if s.tail == nil {
		s.tail = entry
	}
}

func (s *shard) unlink(entry *fileEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		s.head = entry.next
	}

	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		s.tail = entry.prev
	}

	entry.prev = nil
	entry.next = nil
}
