package index

import (
	"cmp"
	"slices"
	"sync"

	"github.com/specterops/recordcheck/cardinality"
	"github.com/specterops/recordcheck/record"
)

// MemoryValueIndex keeps value entries in buckets keyed by the xxhash of their value tuple.
type MemoryValueIndex struct {
	descriptor Descriptor
	buckets    map[uint64][]Entry
	estimator  cardinality.Estimator
	numEntries int
	lock       sync.RWMutex
}

func newMemoryValueIndex(descriptor Descriptor) *MemoryValueIndex {
	return &MemoryValueIndex{
		descriptor: descriptor,
		buckets:    map[uint64][]Entry{},
		estimator:  cardinality.NewEstimator(),
	}
}

func (s *MemoryValueIndex) Descriptor() Descriptor {
	return s.descriptor
}

// Add indexes the entity under the value tuple. Adding the same entity and tuple twice produces two entries.
func (s *MemoryValueIndex) Add(entityID int64, values ...record.Value) {
	s.lock.Lock()
	defer s.lock.Unlock()

	hash := record.HashTuple(values)

	s.buckets[hash] = append(s.buckets[hash], Entry{
		EntityID: entityID,
		Values:   slices.Clone(values),
	})

	s.estimator.Add(uint64(entityID))
	s.numEntries++
}

// Remove drops one entry for the entity and value tuple. The entity estimate is not decremented.
func (s *MemoryValueIndex) Remove(entityID int64, values ...record.Value) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	var (
		hash   = record.HashTuple(values)
		bucket = s.buckets[hash]
	)

	for idx, entry := range bucket {
		if entry.EntityID == entityID && record.CompareTuples(entry.Values, values) == 0 {
			if bucket = slices.Delete(bucket, idx, idx+1); len(bucket) == 0 {
				delete(s.buckets, hash)
			} else {
				s.buckets[hash] = bucket
			}

			s.numEntries--
			return true
		}
	}

	return false
}

func (s *MemoryValueIndex) EntryCount() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.numEntries
}

func (s *MemoryValueIndex) EstimatedEntityCount() uint64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.estimator.Cardinality()
}

func (s *MemoryValueIndex) Lookup(values []record.Value) []int64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var matches []int64

	for _, entry := range s.buckets[record.HashTuple(values)] {
		if record.CompareTuples(entry.Values, values) == 0 {
			matches = append(matches, entry.EntityID)
		}
	}

	slices.Sort(matches)
	return matches
}

func compareEntries(a, b Entry) int {
	if byValue := record.CompareTuples(a.Values, b.Values); byValue != 0 {
		return byValue
	}

	return cmp.Compare(a.EntityID, b.EntityID)
}

func (s *MemoryValueIndex) sortedEntries() []Entry {
	s.lock.RLock()
	defer s.lock.RUnlock()

	entries := make([]Entry, 0, s.numEntries)

	for _, bucket := range s.buckets {
		entries = append(entries, bucket...)
	}

	slices.SortFunc(entries, compareEntries)
	return entries
}

func (s *MemoryValueIndex) NewAllEntriesValueReader(partitions int) []EntryReader {
	if partitions < 1 {
		partitions = 1
	}

	var (
		entries    = s.sortedEntries()
		numEntries = len(entries)
		readers    = make([]EntryReader, partitions)
		start      = 0
	)

	for partition := 0; partition < partitions; partition++ {
		end := numEntries

		if partition < partitions-1 {
			end = max(start, numEntries*(partition+1)/partitions)

			// Extend the partition to the end of the value group it stops inside of
			for end > start && end < numEntries && record.CompareTuples(entries[end-1].Values, entries[end].Values) == 0 {
				end++
			}
		}

		readers[partition] = &sliceEntryReader{
			entries: entries[start:end],
		}

		start = end
	}

	return readers
}

// MemoryTokenIndex maps entity ids to their sorted token sets.
type MemoryTokenIndex struct {
	descriptor Descriptor
	tokens     map[int64][]int32
	lock       sync.RWMutex
}

func newMemoryTokenIndex(descriptor Descriptor) *MemoryTokenIndex {
	return &MemoryTokenIndex{
		descriptor: descriptor,
		tokens:     map[int64][]int32{},
	}
}

func (s *MemoryTokenIndex) Descriptor() Descriptor {
	return s.descriptor
}

// Add merges tokens into the entity's token set.
func (s *MemoryTokenIndex) Add(entityID int64, tokens ...int32) {
	s.lock.Lock()
	defer s.lock.Unlock()

	merged := append(s.tokens[entityID], tokens...)
	slices.Sort(merged)

	s.tokens[entityID] = slices.Compact(merged)
}

// Set replaces the entity's token set. An empty set removes the entity.
func (s *MemoryTokenIndex) Set(entityID int64, tokens ...int32) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(tokens) == 0 {
		delete(s.tokens, entityID)
		return
	}

	sorted := slices.Clone(tokens)
	slices.Sort(sorted)

	s.tokens[entityID] = slices.Compact(sorted)
}

// Remove drops a single token from the entity's token set.
func (s *MemoryTokenIndex) Remove(entityID int64, token int32) {
	s.lock.Lock()
	defer s.lock.Unlock()

	remaining := slices.DeleteFunc(s.tokens[entityID], func(next int32) bool {
		return next == token
	})

	if len(remaining) == 0 {
		delete(s.tokens, entityID)
	} else {
		s.tokens[entityID] = remaining
	}
}

func (s *MemoryTokenIndex) Tokens(entityID int64) ([]int32, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	tokens, found := s.tokens[entityID]
	return slices.Clone(tokens), found
}

func (s *MemoryTokenIndex) Entries(from, to int64) TokenReader {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var entries []TokenEntry

	for entityID, tokens := range s.tokens {
		if entityID >= from && entityID < to {
			entries = append(entries, TokenEntry{
				EntityID: entityID,
				Tokens:   slices.Clone(tokens),
			})
		}
	}

	slices.SortFunc(entries, func(a, b TokenEntry) int {
		return cmp.Compare(a.EntityID, b.EntityID)
	})

	return &sliceTokenReader{
		entries: entries,
	}
}

// Memory is an in-memory Accessor. Indexes are created online unless marked otherwise.
type Memory struct {
	values  map[int64]*MemoryValueIndex
	tokens  map[record.EntityType]*MemoryTokenIndex
	offline map[int64]struct{}
	lock    sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{
		values:  map[int64]*MemoryValueIndex{},
		tokens:  map[record.EntityType]*MemoryTokenIndex{},
		offline: map[int64]struct{}{},
	}
}

// CreateValueIndex registers a value index, replacing any index with the same id.
func (s *Memory) CreateValueIndex(descriptor Descriptor) *MemoryValueIndex {
	s.lock.Lock()
	defer s.lock.Unlock()

	created := newMemoryValueIndex(descriptor)
	s.values[descriptor.ID] = created

	return created
}

// CreateTokenIndex registers the token lookup index of the descriptor's entity type.
func (s *Memory) CreateTokenIndex(descriptor Descriptor) *MemoryTokenIndex {
	s.lock.Lock()
	defer s.lock.Unlock()

	created := newMemoryTokenIndex(descriptor)
	s.tokens[descriptor.EntityType] = created

	return created
}

func (s *Memory) SetOnline(id int64, online bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if online {
		delete(s.offline, id)
	} else {
		s.offline[id] = struct{}{}
	}
}

func (s *Memory) isOnline(id int64) bool {
	_, offline := s.offline[id]
	return !offline
}

func (s *Memory) OnlineRules(entityType record.EntityType) []Descriptor {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var descriptors []Descriptor

	for id, valueIndex := range s.values {
		if valueIndex.descriptor.EntityType == entityType && s.isOnline(id) {
			descriptors = append(descriptors, valueIndex.descriptor)
		}
	}

	if tokenIndex, found := s.tokens[entityType]; found && s.isOnline(tokenIndex.descriptor.ID) {
		descriptors = append(descriptors, tokenIndex.descriptor)
	}

	slices.SortFunc(descriptors, func(a, b Descriptor) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return descriptors
}

func (s *Memory) ValueIndex(id int64) (ValueIndex, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if valueIndex, found := s.values[id]; found && s.isOnline(id) {
		return valueIndex, true
	}

	return nil, false
}

func (s *Memory) TokenIndex(entityType record.EntityType) (TokenIndex, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if tokenIndex, found := s.tokens[entityType]; found && s.isOnline(tokenIndex.descriptor.ID) {
		return tokenIndex, true
	}

	return nil, false
}

// MemoryValueIndex returns the writable value index with the given id regardless of its online state.
func (s *Memory) MemoryValueIndex(id int64) (*MemoryValueIndex, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	valueIndex, found := s.values[id]
	return valueIndex, found
}

// MemoryTokenIndex returns the writable token index of the entity type regardless of its online state.
func (s *Memory) MemoryTokenIndex(entityType record.EntityType) (*MemoryTokenIndex, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	tokenIndex, found := s.tokens[entityType]
	return tokenIndex, found
}
