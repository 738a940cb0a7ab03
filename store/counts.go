package store

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/specterops/recordcheck/record"
)

// AnyToken keys the total count of an entity type regardless of label or relationship type.
const AnyToken int32 = -1

const countsEntrySize = 13

type CountsKey struct {
	Entity record.EntityType
	Token  int32
}

func NodeCountsKey(label int32) CountsKey {
	return CountsKey{
		Entity: record.EntityNode,
		Token:  label,
	}
}

func RelationshipCountsKey(relationshipType int32) CountsKey {
	return CountsKey{
		Entity: record.EntityRelationship,
		Token:  relationshipType,
	}
}

func (s CountsKey) Compare(other CountsKey) int {
	if s.Entity != other.Entity {
		return cmp.Compare(s.Entity, other.Entity)
	}

	return cmp.Compare(s.Token, other.Token)
}

func (s CountsKey) String() string {
	if s.Token == AnyToken {
		return fmt.Sprintf("%s(*)", s.Entity)
	}

	return fmt.Sprintf("%s(%d)", s.Entity, s.Token)
}

// Counts holds aggregate entity counts keyed by entity type and token. It is safe for concurrent use.
type Counts struct {
	lock   sync.RWMutex
	counts map[CountsKey]int64
}

func NewCounts() *Counts {
	return &Counts{
		counts: map[CountsKey]int64{},
	}
}

func (s *Counts) Get(key CountsKey) int64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.counts[key]
}

func (s *Counts) Set(key CountsKey, count int64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if count == 0 {
		delete(s.counts, key)
	} else {
		s.counts[key] = count
	}
}

func (s *Counts) Increment(key CountsKey, delta int64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if next := s.counts[key] + delta; next == 0 {
		delete(s.counts, key)
	} else {
		s.counts[key] = next
	}
}

// Keys returns every key with a non-zero count in ascending order.
func (s *Counts) Keys() []CountsKey {
	s.lock.RLock()
	defer s.lock.RUnlock()

	keys := make([]CountsKey, 0, len(s.counts))

	for key := range s.counts {
		keys = append(keys, key)
	}

	slices.SortFunc(keys, CountsKey.Compare)
	return keys
}

func (s *Counts) MarshalBinary() ([]byte, error) {
	keys := s.Keys()
	buffer := make([]byte, 0, len(keys)*countsEntrySize)

	for _, key := range keys {
		buffer = append(buffer, byte(key.Entity))
		buffer = binary.BigEndian.AppendUint32(buffer, uint32(key.Token))
		buffer = binary.BigEndian.AppendUint64(buffer, uint64(s.Get(key)))
	}

	return buffer, nil
}

func (s *Counts) UnmarshalBinary(data []byte) error {
	if len(data)%countsEntrySize != 0 {
		return fmt.Errorf("counts state length %d is not a multiple of %d", len(data), countsEntrySize)
	}

	counts := make(map[CountsKey]int64, len(data)/countsEntrySize)

	for offset := 0; offset < len(data); offset += countsEntrySize {
		key := CountsKey{
			Entity: record.EntityType(data[offset]),
			Token:  int32(binary.BigEndian.Uint32(data[offset+1 : offset+5])),
		}

		counts[key] = int64(binary.BigEndian.Uint64(data[offset+5 : offset+13]))
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.counts = counts
	return nil
}
