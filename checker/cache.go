package checker

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	ErrInvalidSlots     = errors.New("invalid cache slot layout")
	ErrCacheRangeTooBig = errors.New("id range exceeds cache capacity")
)

const wordBits = 64

// Slot declares one fixed width field of the per-entity cache state.
type Slot struct {
	Name string
	Bits int
}

// Node cache slots, in declaration order.
const (
	SlotInUse = iota
	SlotDense
	SlotCheckMark
	SlotRelationshipID
)

// NodeSlots is the per-node cache layout shared by the node, group and relationship checkers.
var NodeSlots = []Slot{
	{Name: "in_use", Bits: 1},
	{Name: "dense", Bits: 1},
	{Name: "check_mark", Bits: 1},
	{Name: "relationship_id", Bits: 64},
}

type slotLayout struct {
	word  int
	shift uint
	mask  uint64
}

func layoutSlots(slots []Slot) ([]slotLayout, int, error) {
	if len(slots) == 0 {
		return nil, 0, fmt.Errorf("%w: no slots declared", ErrInvalidSlots)
	}

	var (
		layouts  = make([]slotLayout, len(slots))
		word     = 0
		usedBits = 0
	)

	for idx, slot := range slots {
		if slot.Bits < 1 || slot.Bits > wordBits {
			return nil, 0, fmt.Errorf("%w: slot %q has width %d", ErrInvalidSlots, slot.Name, slot.Bits)
		}

		// Slots never straddle a word
		if usedBits+slot.Bits > wordBits {
			word++
			usedBits = 0
		}

		mask := ^uint64(0)
		if slot.Bits < wordBits {
			mask = (uint64(1) << slot.Bits) - 1
		}

		layouts[idx] = slotLayout{
			word:  word,
			shift: uint(usedBits),
			mask:  mask,
		}

		usedBits += slot.Bits
	}

	return layouts, word + 1, nil
}

// SlotBytesPerEntity returns the cache footprint of a single entity under the slot layout.
func SlotBytesPerEntity(slots []Slot) (int64, error) {
	_, wordsPerEntity, err := layoutSlots(slots)
	return int64(wordsPerEntity) * 8, err
}

// CacheAccess is a flat array of fixed width slots addressed by entity id. Every entity owns a whole number of
// words so writers working on disjoint id ranges never touch the same word.
type CacheAccess struct {
	slots          []Slot
	layouts        []slotLayout
	wordsPerEntity int
	words          []atomic.Uint64
	capacity       int64
	idRange        IDRange
}

// NewCacheAccess allocates room for capacity entities. The slot layout is validated once here.
func NewCacheAccess(capacity int64, slots ...Slot) (*CacheAccess, error) {
	layouts, wordsPerEntity, err := layoutSlots(slots)
	if err != nil {
		return nil, err
	}

	if capacity < 1 {
		capacity = 1
	}

	return &CacheAccess{
		slots:          slots,
		layouts:        layouts,
		wordsPerEntity: wordsPerEntity,
		words:          make([]atomic.Uint64, capacity*int64(wordsPerEntity)),
		capacity:       capacity,
	}, nil
}

func (s *CacheAccess) Capacity() int64 {
	return s.capacity
}

func (s *CacheAccess) BytesPerEntity() int64 {
	return int64(s.wordsPerEntity) * 8
}

func (s *CacheAccess) Range() IDRange {
	return s.idRange
}

// Prepare points the cache at a new id range and clears the state of every entity in it. It must not run
// concurrently with any client.
func (s *CacheAccess) Prepare(idRange IDRange) error {
	if idRange.Size() > s.capacity {
		return fmt.Errorf("%w: %s holds %d ids, capacity is %d", ErrCacheRangeTooBig, idRange, idRange.Size(), s.capacity)
	}

	for idx := range s.words {
		s.words[idx].Store(0)
	}

	s.idRange = idRange
	return nil
}

// Client returns an accessor for the prepared range. Clients are cheap and should be created per task.
func (s *CacheAccess) Client() CacheClient {
	return CacheClient{
		cache: s,
	}
}

type CacheClient struct {
	cache *CacheAccess
}

func (s CacheClient) Contains(id int64) bool {
	return s.cache.idRange.Contains(id)
}

func (s CacheClient) word(id int64, slot int) (*atomic.Uint64, slotLayout) {
	layout := s.cache.layouts[slot]
	offset := (id-s.cache.idRange.From)*int64(s.cache.wordsPerEntity) + int64(layout.word)

	return &s.cache.words[offset], layout
}

// Put stores value in the slot of the entity. Ids outside of the prepared range are ignored.
func (s CacheClient) Put(id int64, slot int, value uint64) {
	if !s.Contains(id) {
		return
	}

	word, layout := s.word(id, slot)

	for {
		current := word.Load()
		next := (current &^ (layout.mask << layout.shift)) | ((value & layout.mask) << layout.shift)

		if word.CompareAndSwap(current, next) {
			return
		}
	}
}

// Get reads the slot of the entity. Ids outside of the prepared range read as zero.
func (s CacheClient) Get(id int64, slot int) uint64 {
	if !s.Contains(id) {
		return 0
	}

	word, layout := s.word(id, slot)
	return (word.Load() >> layout.shift) & layout.mask
}

func (s CacheClient) PutBool(id int64, slot int, value bool) {
	if value {
		s.Put(id, slot, 1)
	} else {
		s.Put(id, slot, 0)
	}
}

func (s CacheClient) GetBool(id int64, slot int) bool {
	return s.Get(id, slot) != 0
}

func (s CacheClient) PutInt64(id int64, slot int, value int64) {
	s.Put(id, slot, uint64(value))
}

func (s CacheClient) GetInt64(id int64, slot int) int64 {
	return int64(s.Get(id, slot))
}

// ClearBool atomically resets a boolean slot and reports whether it was set.
func (s CacheClient) ClearBool(id int64, slot int) bool {
	if !s.Contains(id) {
		return false
	}

	word, layout := s.word(id, slot)
	bit := layout.mask << layout.shift

	for {
		current := word.Load()

		if current&bit == 0 {
			return false
		}

		if word.CompareAndSwap(current, current&^bit) {
			return true
		}
	}
}
