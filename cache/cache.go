// Package cache provides bounded, concurrency safe caches for decoded store content.
package cache

import (
	"sync/atomic"
)

type Stats struct {
	hits     *atomic.Int64
	misses   *atomic.Int64
	size     *atomic.Int64
	Capacity int
}

func NewStats(capacity int) Stats {
	return Stats{
		hits:     &atomic.Int64{},
		misses:   &atomic.Int64{},
		size:     &atomic.Int64{},
		Capacity: capacity,
	}
}

func (s Stats) Miss() {
	s.misses.Add(1)
}

func (s Stats) Misses() int64 {
	return s.misses.Load()
}

func (s Stats) Hit() {
	s.hits.Add(1)
}

func (s Stats) Hits() int64 {
	return s.hits.Load()
}

// HitRatio is the fraction of lookups that were served from the cache.
func (s Stats) HitRatio() float64 {
	var (
		hits  = s.Hits()
		total = hits + s.Misses()
	)

	if total == 0 {
		return 0
	}

	return float64(hits) / float64(total)
}

func (s Stats) Size() int64 {
	return s.size.Load()
}

func (s Stats) Put() {
	s.size.Add(1)
}

func (s Stats) Delete() {
	s.size.Add(-1)
}

type Cache[K comparable, V any] interface {
	Put(key K, value V)
	Get(key K) (V, bool)
	Delete(key K)
	Stats() Stats
}
