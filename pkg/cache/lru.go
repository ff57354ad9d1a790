// Package cache provides a size-bounded, LZ4-compressed LRU cache for
// source blobs read during a rule run, so scanning the same tree with
// several rules in one process does not reread and recompress the same
// file bytes each time.
package cache

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pierrec/lz4/v4"
)

// DefaultLRUCacheSize is the default maximum memory size for the blob cache
// (256 MB, measured post-compression).
const DefaultLRUCacheSize = 256 * 1024 * 1024

const bytesPerKB = 1024.0

// Key identifies a cached blob: the SHA-256 of whatever bytes the caller
// passes to KeyOf (internal/walk passes the blob's git object id).
type Key [sha256.Size]byte

// KeyOf hashes content into a Key.
func KeyOf(content []byte) Key { return sha256.Sum256(content) }

// LRUBlobCache is a cross-run LRU cache for source blobs. Entries are
// stored LZ4-compressed; Get transparently decompresses. It tracks memory
// usage (of the compressed form) and, when the limit is exceeded, evicts
// the entry with the lowest evictionCost among up to evictionSampleSize
// entries taken from the least-recently-used end.
type LRUBlobCache struct {
	mu          sync.RWMutex
	entries     map[Key]*lruEntry
	head        *lruEntry // Most recently used.
	tail        *lruEntry // Least recently used.
	maxSize     int64
	currentSize int64

	hits   atomic.Int64
	misses atomic.Int64
}

type lruEntry struct {
	key         Key
	compressed  []byte
	plainSize   int64
	size        int64
	accessCount int64
	prev        *lruEntry
	next        *lruEntry
}

// evictionCost favors evicting large, rarely accessed entries first.
func (e *lruEntry) evictionCost() float64 {
	if e.size == 0 {
		return float64(e.accessCount)
	}

	sizeKB := float64(e.size) / bytesPerKB
	if sizeKB < 1 {
		sizeKB = 1
	}

	return float64(e.accessCount) / sizeKB
}

// NewLRUBlobCache creates a cache bounded to maxSize compressed bytes.
func NewLRUBlobCache(maxSize int64) *LRUBlobCache {
	if maxSize <= 0 {
		maxSize = DefaultLRUCacheSize
	}

	return &LRUBlobCache{
		entries: make(map[Key]*lruEntry),
		maxSize: maxSize,
	}
}

// Get retrieves and decompresses a blob, or returns (nil, false) on a miss.
func (c *LRUBlobCache) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		c.mu.Unlock()

		return nil, false
	}

	c.hits.Add(1)
	entry.accessCount++
	c.moveToFront(entry)
	compressed := entry.compressed
	plainSize := entry.plainSize
	c.mu.Unlock()

	plain := make([]byte, plainSize)
	if _, err := io.ReadFull(lz4.NewReader(bytes.NewReader(compressed)), plain); err != nil {
		return nil, false
	}

	return plain, true
}

// Put compresses and stores content under key, evicting lower-value
// entries by sampled cost if the cache is over budget.
func (c *LRUBlobCache) Put(key Key, content []byte) error {
	var buf bytes.Buffer

	w := lz4.NewWriter(&buf)
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("compress blob: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("compress blob: %w", err)
	}

	compressed := buf.Bytes()
	size := int64(len(compressed))

	c.mu.Lock()
	defer c.mu.Unlock()

	if size > c.maxSize {
		return nil
	}

	if entry, ok := c.entries[key]; ok {
		entry.accessCount++
		c.moveToFront(entry)

		return nil
	}

	for c.currentSize+size > c.maxSize && c.tail != nil {
		c.evictLowestCost()
	}

	entry := &lruEntry{
		key:         key,
		compressed:  compressed,
		plainSize:   int64(len(content)),
		size:        size,
		accessCount: 1,
	}

	c.entries[key] = entry
	c.currentSize += size
	c.addToFront(entry)

	return nil
}

// Stats reports cache performance counters.
type LRUStats struct {
	Hits        int64
	Misses      int64
	Entries     int
	CurrentSize int64
	MaxSize     int64
}

func (s LRUStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}

	return float64(s.Hits) / float64(total)
}

func (c *LRUBlobCache) Stats() LRUStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return LRUStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Entries:     len(c.entries),
		CurrentSize: c.currentSize,
		MaxSize:     c.maxSize,
	}
}

// CacheHits implements observability.CacheStatsProvider.
func (c *LRUBlobCache) CacheHits() int64 {
	return c.hits.Load()
}

// CacheMisses implements observability.CacheStatsProvider.
func (c *LRUBlobCache) CacheMisses() int64 {
	return c.misses.Load()
}

// Clear removes every entry.
func (c *LRUBlobCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key]*lruEntry)
	c.head = nil
	c.tail = nil
	c.currentSize = 0
}

func (c *LRUBlobCache) moveToFront(entry *lruEntry) {
	if entry == c.head {
		return
	}

	c.removeFromList(entry)
	c.addToFront(entry)
}

func (c *LRUBlobCache) addToFront(entry *lruEntry) {
	entry.prev = nil
	entry.next = c.head

	if c.head != nil {
		c.head.prev = entry
	}

	c.head = entry

	if c.tail == nil {
		c.tail = entry
	}
}

func (c *LRUBlobCache) removeFromList(entry *lruEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		c.head = entry.next
	}

	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		c.tail = entry.prev
	}
}

// evictionSampleSize bounds the LRU-tail sample used for size-aware eviction.
const evictionSampleSize = 5

func (c *LRUBlobCache) evictLowestCost() {
	if c.tail == nil {
		return
	}

	var candidates [evictionSampleSize]*lruEntry

	count := 0
	entry := c.tail

	for entry != nil && count < evictionSampleSize {
		candidates[count] = entry
		count++
		entry = entry.prev
	}

	if count == 0 {
		return
	}

	victim := candidates[0]
	lowestCost := victim.evictionCost()

	for i := 1; i < count; i++ {
		cost := candidates[i].evictionCost()
		if cost < lowestCost {
			lowestCost = cost
			victim = candidates[i]
		}
	}

	c.removeFromList(victim)
	delete(c.entries, victim.key)
	c.currentSize -= victim.size
}
