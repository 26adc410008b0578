package server

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/playperu/packimport/internal/pack"
	"github.com/playperu/packimport/internal/store"
)

var (
	fileCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packimport_file_cache_hits_total",
		Help: "Media downloads served from the in-memory cache.",
	})
	fileCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packimport_file_cache_misses_total",
		Help: "Media downloads that had to read the file store.",
	})
)

// maxCachedFileBytes keeps large videos out of the cache.
const maxCachedFileBytes = 8 << 20

// FileCache holds recently downloaded media. Stored files never change, so
// entries only leave by eviction, expiry or pack deletion.
type FileCache struct {
	lru *expirable.LRU[pack.FileRef, *store.File]
}

func NewFileCache(size int, ttl time.Duration) *FileCache {
	return &FileCache{lru: expirable.NewLRU[pack.FileRef, *store.File](size, nil, ttl)}
}

func (c *FileCache) Get(ref pack.FileRef) (*store.File, bool) {
	f, ok := c.lru.Get(ref)
	if ok {
		fileCacheHitsTotal.Inc()
		return f, true
	}
	fileCacheMissesTotal.Inc()
	return nil, false
}

func (c *FileCache) Add(f *store.File) {
	if f.Size > maxCachedFileBytes {
		return
	}
	c.lru.Add(f.Ref, f)
}

func (c *FileCache) Remove(refs ...pack.FileRef) {
	for _, r := range refs {
		c.lru.Remove(r)
	}
}
