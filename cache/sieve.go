package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

type entry[K comparable, V any] struct {
	key     K
	value   V
	visited atomic.Bool
	element *list.Element
}

// Sieve is a fixed capacity cache using the SIEVE eviction algorithm. New entries enter at the front of the
// queue and a hand sweeps from the back, clearing visited flags until it finds an entry that has not been read
// since the last sweep.
type Sieve[K comparable, V any] struct {
	lock  sync.RWMutex
	store map[K]*entry[K, V]
	queue *list.List
	hand  *list.Element
	stats Stats
}

// NewSieve creates a cache that holds at most capacity entries. A capacity below one is raised to one.
func NewSieve[K comparable, V any](capacity int) Cache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}

	return &Sieve[K, V]{
		store: make(map[K]*entry[K, V], capacity),
		queue: list.New(),
		stats: NewStats(capacity),
	}
}

func (s *Sieve[K, V]) Stats() Stats {
	return s.stats
}

func (s *Sieve[K, V]) Put(key K, value V) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if existing, exists := s.store[key]; exists {
		existing.value = value
		existing.visited.Store(true)
		return
	}

	if s.queue.Len() >= s.stats.Capacity {
		s.evict()
	}

	s.store[key] = &entry[K, V]{
		key:     key,
		value:   value,
		element: s.queue.PushFront(key),
	}

	s.stats.Put()
}

func (s *Sieve[K, V]) Get(key K) (V, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if existing, exists := s.store[key]; exists {
		s.stats.Hit()
		existing.visited.Store(true)

		return existing.value, true
	}

	s.stats.Miss()

	var empty V
	return empty, false
}

func (s *Sieve[K, V]) Delete(key K) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if existing, exists := s.store[key]; exists {
		if existing.element == s.hand {
			s.hand = s.hand.Prev()
		}

		s.remove(existing)
	}
}

func (s *Sieve[K, V]) remove(target *entry[K, V]) {
	s.queue.Remove(target.element)
	delete(s.store, target.key)

	s.stats.Delete()
}

// evict must be called with the write lock held.
func (s *Sieve[K, V]) evict() {
	hand := s.hand

	if hand == nil {
		hand = s.queue.Back()
	}

	candidate := s.store[hand.Value.(K)]

	for candidate.visited.Load() {
		candidate.visited.Store(false)

		if hand = hand.Prev(); hand == nil {
			hand = s.queue.Back()
		}

		candidate = s.store[hand.Value.(K)]
	}

	s.hand = hand.Prev()
	s.remove(candidate)
}
