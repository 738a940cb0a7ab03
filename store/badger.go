package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/specterops/recordcheck/cache"
	"github.com/specterops/recordcheck/record"
)

const (
	prefixRecord byte = 'r'
	prefixMeta   byte = 'm'

	metaIDGeneratorPrefix = "ids/"

	defaultRecordCacheCapacity = 64 * 1024
)

type BadgerOptions struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	ReadOnly   bool

	// RecordCacheCapacity bounds the number of raw records kept in the read cache. Zero selects a default.
	RecordCacheCapacity int
}

// BadgerBackend persists record bytes in a badger database. Reads are served through a SIEVE cache of raw
// record bytes.
type BadgerBackend struct {
	db       *badger.DB
	records  cache.Cache[memoryKey, []byte]
	ids      map[record.Type]*IDGenerator
	readOnly bool
	closed   bool
	lock     sync.RWMutex
}

func recordKey(recordType record.Type, id int64) []byte {
	key := make([]byte, 10)
	key[0] = prefixRecord
	key[1] = byte(recordType)

	binary.BigEndian.PutUint64(key[2:], uint64(id))
	return key
}

func metaKey(name string) []byte {
	return append([]byte{prefixMeta}, name...)
}

func OpenBadger(opts BadgerOptions) (*BadgerBackend, error) {
	badgerOpts := badger.DefaultOptions(opts.Path).WithLogger(nil)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}

	if opts.ReadOnly {
		badgerOpts = badgerOpts.WithReadOnly(true)
	}

	cacheCapacity := opts.RecordCacheCapacity
	if cacheCapacity <= 0 {
		cacheCapacity = defaultRecordCacheCapacity
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store at %q: %w", opts.Path, err)
	}

	backend := &BadgerBackend{
		db:       db,
		records:  cache.NewSieve[memoryKey, []byte](cacheCapacity),
		ids:      map[record.Type]*IDGenerator{},
		readOnly: opts.ReadOnly,
	}

	if err := backend.loadIDGenerators(); err != nil {
		db.Close()
		return nil, err
	}

	return backend, nil
}

// DB exposes the underlying database so that index and counts state can share it.
func (s *BadgerBackend) DB() *badger.DB {
	return s.db
}

func (s *BadgerBackend) CacheStats() cache.Stats {
	return s.records.Stats()
}

func (s *BadgerBackend) loadIDGenerators() error {
	for _, recordType := range record.Types() {
		generator := NewIDGenerator()

		if state, err := s.ReadMeta(metaIDGeneratorPrefix + recordType.String()); err != nil {
			return err
		} else if state != nil {
			if err := generator.UnmarshalBinary(state); err != nil {
				return fmt.Errorf("loading %s id generator: %w", recordType, err)
			}
		}

		s.ids[recordType] = generator
	}

	return nil
}

func (s *BadgerBackend) ensureOpen() error {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed {
		return ErrClosed
	}

	return nil
}

func (s *BadgerBackend) get(key []byte) ([]byte, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	var value []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)

		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		} else if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})

	return value, err
}

func (s *BadgerBackend) set(key, value []byte) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *BadgerBackend) Read(recordType record.Type, id int64) ([]byte, error) {
	cacheKey := memoryKey{recordType: recordType, id: id}

	if cached, found := s.records.Get(cacheKey); found {
		return cached, nil
	}

	data, err := s.get(recordKey(recordType, id))
	if err != nil {
		return nil, err
	}

	if data != nil {
		s.records.Put(cacheKey, data)
	}

	return data, nil
}

func (s *BadgerBackend) Write(recordType record.Type, id int64, data []byte) error {
	if err := s.set(recordKey(recordType, id), data); err != nil {
		return err
	}

	s.records.Delete(memoryKey{recordType: recordType, id: id})
	return nil
}

func (s *BadgerBackend) IDGenerator(recordType record.Type) *IDGenerator {
	return s.ids[recordType]
}

func (s *BadgerBackend) ReadMeta(key string) ([]byte, error) {
	return s.get(metaKey(key))
}

func (s *BadgerBackend) WriteMeta(key string, value []byte) error {
	return s.set(metaKey(key), value)
}

// Flush persists id generator state.
func (s *BadgerBackend) Flush() error {
	if s.readOnly {
		return nil
	}

	for recordType, generator := range s.ids {
		state, err := generator.MarshalBinary()
		if err != nil {
			return fmt.Errorf("encoding %s id generator: %w", recordType, err)
		}

		if err := s.WriteMeta(metaIDGeneratorPrefix+recordType.String(), state); err != nil {
			return fmt.Errorf("writing %s id generator: %w", recordType, err)
		}
	}

	return nil
}

func (s *BadgerBackend) Close() error {
	if s.ensureOpen() != nil {
		return nil
	}

	flushErr := s.Flush()

	s.lock.Lock()
	defer s.lock.Unlock()

	s.closed = true
	stats := s.records.Stats()

	slog.Debug("Closing badger record store",
		slog.Int64("cache_hits", stats.Hits()),
		slog.Int64("cache_misses", stats.Misses()),
		slog.Float64("cache_hit_ratio", stats.HitRatio()))

	return errors.Join(flushErr, s.db.Close())
}
