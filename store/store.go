// Package store provides typed access to the record stores of a graph store along with their id generators and
// the aggregate counts store.
package store

import (
	"errors"
	"fmt"

	"github.com/specterops/recordcheck/record"
)

var (
	ErrNotInUse   = errors.New("record not in use")
	ErrOutOfRange = errors.New("record id out of range")
	ErrClosed     = errors.New("store closed")
)

// LoadMode selects how a record load treats data defects.
type LoadMode uint8

const (
	// Normal fails on records that are out of range, not in use or undecodable.
	Normal LoadMode = iota

	// Force never fails on data defects. Undecodable records come back empty and not in use.
	Force

	// Check never fails on data defects. Undecodable records come back partially decoded with Corrupt set.
	Check
)

func (s LoadMode) String() string {
	switch s {
	case Normal:
		return "NORMAL"
	case Force:
		return "FORCE"
	case Check:
		return "CHECK"
	default:
		return fmt.Sprintf("LoadMode(%d)", uint8(s))
	}
}

// Backend persists raw record bytes per record type. Read returns a nil slice without error for ids that were
// never written. Implementations must be safe for concurrent readers.
type Backend interface {
	Read(recordType record.Type, id int64) ([]byte, error)
	Write(recordType record.Type, id int64, data []byte) error
	IDGenerator(recordType record.Type) *IDGenerator
	ReadMeta(key string) ([]byte, error)
	WriteMeta(key string, value []byte) error
	Flush() error
	Close() error
}

// Store is a typed view over one record type of a backend.
type Store[T record.Record] struct {
	recordType record.Type
	backend    Backend
	codec      record.Codec[T]
}

func NewStore[T record.Record](recordType record.Type, backend Backend, codec record.Codec[T]) *Store[T] {
	return &Store[T]{
		recordType: recordType,
		backend:    backend,
		codec:      codec,
	}
}

func (s *Store[T]) Type() record.Type {
	return s.recordType
}

func (s *Store[T]) IDGenerator() *IDGenerator {
	return s.backend.IDGenerator(s.recordType)
}

func (s *Store[T]) HighID() int64 {
	return s.IDGenerator().HighID()
}

// NextID allocates an id, reusing a freed id when one exists.
func (s *Store[T]) NextID() int64 {
	return s.IDGenerator().NextID()
}

// Empty returns the not-in-use record for an id.
func (s *Store[T]) Empty(id int64) T {
	return s.codec.Empty(id)
}

// Record loads the record with the given id. Backend failures are always returned as errors; data defects are
// handled according to mode.
func (s *Store[T]) Record(id int64, mode LoadMode) (T, error) {
	if id < 0 || id >= s.HighID() {
		if mode == Normal {
			return s.codec.Empty(id), fmt.Errorf("%w: %s record %d", ErrOutOfRange, s.recordType, id)
		}

		return s.codec.Empty(id), nil
	}

	data, err := s.backend.Read(s.recordType, id)
	if err != nil {
		return s.codec.Empty(id), fmt.Errorf("reading %s record %d: %w", s.recordType, id, err)
	}

	if data == nil {
		if mode == Normal {
			return s.codec.Empty(id), fmt.Errorf("%w: %s record %d", ErrNotInUse, s.recordType, id)
		}

		return s.codec.Empty(id), nil
	}

	rec, err := s.codec.Decode(id, data)
	if err != nil {
		switch mode {
		case Force:
			return s.codec.Empty(id), nil
		case Check:
			return rec, nil
		default:
			return rec, err
		}
	}

	if mode == Normal && !rec.IsInUse() {
		return rec, fmt.Errorf("%w: %s record %d", ErrNotInUse, s.recordType, id)
	}

	return rec, nil
}

// Write stores the record and keeps the id generator in agreement with its in-use flag.
func (s *Store[T]) Write(rec T) error {
	if err := s.Overwrite(rec); err != nil {
		return err
	}

	if rec.IsInUse() {
		s.IDGenerator().MarkUsed(rec.RecordID())
	} else {
		s.IDGenerator().MarkFree(rec.RecordID())
	}

	return nil
}

// Overwrite stores the record without touching the id generator's free ids.
func (s *Store[T]) Overwrite(rec T) error {
	return s.WriteRaw(rec.RecordID(), s.codec.Encode(rec))
}

// WriteRaw stores bytes for an id as-is. The id generator's high id is raised to cover the id.
func (s *Store[T]) WriteRaw(id int64, data []byte) error {
	if id < 0 {
		return fmt.Errorf("%w: %s record %d", ErrOutOfRange, s.recordType, id)
	}

	if err := s.backend.Write(s.recordType, id, data); err != nil {
		return fmt.Errorf("writing %s record %d: %w", s.recordType, id, err)
	}

	s.IDGenerator().EnsureHighID(id + 1)
	return nil
}
