package store

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/specterops/recordcheck/cardinality"
)

// IDGenerator tracks the high id of a store along with the ids below it that are free for reuse.
type IDGenerator struct {
	lock   sync.RWMutex
	highID int64
	free   cardinality.IDSet
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		free: cardinality.NewIDSet(),
	}
}

func (s *IDGenerator) HighID() int64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.highID
}

// EnsureHighID raises the high id to at least highID.
func (s *IDGenerator) EnsureHighID(highID int64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if highID > s.highID {
		s.highID = highID
	}
}

// NextID returns the lowest free id, or the high id when no id is free. The returned id is marked used.
func (s *IDGenerator) NextID() int64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	nextID := s.highID

	s.free.Each(func(id int64) bool {
		nextID = id
		return false
	})

	if nextID == s.highID {
		s.highID += 1
	} else {
		s.free.Remove(nextID)
	}

	return nextID
}

func (s *IDGenerator) MarkUsed(id int64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if id >= s.highID {
		s.highID = id + 1
	}

	s.free.Remove(id)
}

func (s *IDGenerator) MarkFree(id int64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if id >= s.highID {
		s.highID = id + 1
	}

	s.free.Add(id)
}

func (s *IDGenerator) IsFree(id int64) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.free.Contains(id)
}

// EachNotUsed visits the free ids in [from, to) in ascending order until the delegate returns false.
func (s *IDGenerator) EachNotUsed(from, to int64, delegate func(id int64) bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	s.free.EachInRange(from, min(to, s.highID), delegate)
}

// NotUsedIDs returns the free ids in [from, to) in ascending order.
func (s *IDGenerator) NotUsedIDs(from, to int64) []int64 {
	var ids []int64

	s.EachNotUsed(from, to, func(id int64) bool {
		ids = append(ids, id)
		return true
	})

	return ids
}

func (s *IDGenerator) MarshalBinary() ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	freeBytes, err := s.free.MarshalBinary()
	if err != nil {
		return nil, err
	}

	return append(binary.BigEndian.AppendUint64(nil, uint64(s.highID)), freeBytes...), nil
}

func (s *IDGenerator) UnmarshalBinary(data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(data) < 8 {
		return fmt.Errorf("id generator state truncated: %d bytes", len(data))
	}

	free := cardinality.NewIDSet()

	if err := free.UnmarshalBinary(data[8:]); err != nil {
		return fmt.Errorf("decoding free ids: %w", err)
	}

	s.highID = int64(binary.BigEndian.Uint64(data[:8]))
	s.free = free

	return nil
}
