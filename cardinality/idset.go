package cardinality

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

type bitmapIDSet struct {
	bitmap *roaring64.Bitmap
}

func NewIDSet() IDSet {
	return bitmapIDSet{
		bitmap: roaring64.New(),
	}
}

func NewIDSetWith(ids ...int64) IDSet {
	set := NewIDSet()
	set.Add(ids...)

	return set
}

func (s bitmapIDSet) Add(ids ...int64) {
	for _, id := range ids {
		if id >= 0 {
			s.bitmap.Add(uint64(id))
		}
	}
}

func (s bitmapIDSet) CheckedAdd(id int64) bool {
	if id < 0 {
		return false
	}

	return s.bitmap.CheckedAdd(uint64(id))
}

func (s bitmapIDSet) Remove(id int64) {
	if id >= 0 {
		s.bitmap.Remove(uint64(id))
	}
}

func (s bitmapIDSet) Contains(id int64) bool {
	return id >= 0 && s.bitmap.Contains(uint64(id))
}

func (s bitmapIDSet) Clear() {
	s.bitmap.Clear()
}

func (s bitmapIDSet) Cardinality() uint64 {
	return s.bitmap.GetCardinality()
}

func (s bitmapIDSet) Each(delegate func(id int64) bool) {
	for itr := s.bitmap.Iterator(); itr.HasNext(); {
		if !delegate(int64(itr.Next())) {
			break
		}
	}
}

func (s bitmapIDSet) EachInRange(from, to int64, delegate func(id int64) bool) {
	if from < 0 {
		from = 0
	}

	if to <= from {
		return
	}

	itr := s.bitmap.Iterator()
	itr.AdvanceIfNeeded(uint64(from))

	for itr.HasNext() {
		next := itr.Next()

		if next >= uint64(to) || !delegate(int64(next)) {
			break
		}
	}
}

func (s bitmapIDSet) Clone() IDSet {
	return bitmapIDSet{
		bitmap: s.bitmap.Clone(),
	}
}

func (s bitmapIDSet) MarshalBinary() ([]byte, error) {
	s.bitmap.RunOptimize()
	return s.bitmap.MarshalBinary()
}

func (s bitmapIDSet) UnmarshalBinary(data []byte) error {
	return s.bitmap.UnmarshalBinary(data)
}

type threadSafeIDSet struct {
	set  IDSet
	lock *sync.RWMutex
}

// ThreadSafeIDSet wraps an id set so that it may be shared between workers.
func ThreadSafeIDSet(set IDSet) IDSet {
	return threadSafeIDSet{
		set:  set,
		lock: &sync.RWMutex{},
	}
}

func (s threadSafeIDSet) Add(ids ...int64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.set.Add(ids...)
}

func (s threadSafeIDSet) CheckedAdd(id int64) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.set.CheckedAdd(id)
}

func (s threadSafeIDSet) Remove(id int64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.set.Remove(id)
}

func (s threadSafeIDSet) Contains(id int64) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.set.Contains(id)
}

func (s threadSafeIDSet) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.set.Clear()
}

func (s threadSafeIDSet) Cardinality() uint64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.set.Cardinality()
}

func (s threadSafeIDSet) Each(delegate func(id int64) bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	s.set.Each(delegate)
}

func (s threadSafeIDSet) EachInRange(from, to int64, delegate func(id int64) bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	s.set.EachInRange(from, to, delegate)
}

func (s threadSafeIDSet) Clone() IDSet {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return ThreadSafeIDSet(s.set.Clone())
}

func (s threadSafeIDSet) MarshalBinary() ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.set.MarshalBinary()
}

func (s threadSafeIDSet) UnmarshalBinary(data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.set.UnmarshalBinary(data)
}
