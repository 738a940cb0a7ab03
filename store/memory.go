package store

import (
	"slices"
	"sync"

	"github.com/specterops/recordcheck/record"
)

type memoryKey struct {
	recordType record.Type
	id         int64
}

// MemoryBackend keeps record bytes in process memory. It is used for tests and for building stores before they
// are written out.
type MemoryBackend struct {
	lock    sync.RWMutex
	records map[memoryKey][]byte
	meta    map[string][]byte
	ids     map[record.Type]*IDGenerator
}

func NewMemoryBackend() *MemoryBackend {
	ids := map[record.Type]*IDGenerator{}

	for _, recordType := range record.Types() {
		ids[recordType] = NewIDGenerator()
	}

	return &MemoryBackend{
		records: map[memoryKey][]byte{},
		meta:    map[string][]byte{},
		ids:     ids,
	}
}

func (s *MemoryBackend) Read(recordType record.Type, id int64) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if data, found := s.records[memoryKey{recordType: recordType, id: id}]; found {
		return slices.Clone(data), nil
	}

	return nil, nil
}

func (s *MemoryBackend) Write(recordType record.Type, id int64, data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.records[memoryKey{recordType: recordType, id: id}] = slices.Clone(data)
	return nil
}

func (s *MemoryBackend) IDGenerator(recordType record.Type) *IDGenerator {
	return s.ids[recordType]
}

func (s *MemoryBackend) ReadMeta(key string) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if value, found := s.meta[key]; found {
		return slices.Clone(value), nil
	}

	return nil, nil
}

func (s *MemoryBackend) WriteMeta(key string, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.meta[key] = slices.Clone(value)
	return nil
}

func (s *MemoryBackend) Flush() error {
	return nil
}

func (s *MemoryBackend) Close() error {
	return nil
}
