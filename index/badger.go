package index

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/specterops/recordcheck/record"
)

const (
	prefixIndex      byte = 'x'
	kindDescriptor   byte = 'd'
	kindValueEntry   byte = 'v'
	kindTokenEntry   byte = 't'
	descriptorOnline byte = 1
)

func indexPrefix(kind byte) []byte {
	return []byte{prefixIndex, kind}
}

func descriptorKey(id int64) []byte {
	return binary.BigEndian.AppendUint64(indexPrefix(kindDescriptor), uint64(id))
}

func valueEntryKey(indexID int64, sequence uint64) []byte {
	key := binary.BigEndian.AppendUint64(indexPrefix(kindValueEntry), uint64(indexID))
	return binary.BigEndian.AppendUint64(key, sequence)
}

func tokenEntryKey(entityType record.EntityType, entityID int64) []byte {
	key := append(indexPrefix(kindTokenEntry), byte(entityType))
	return binary.BigEndian.AppendUint64(key, uint64(entityID))
}

func iteratorOptions(prefix []byte, keysOnly bool) badger.IteratorOptions {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = !keysOnly
	opts.Prefix = prefix

	return opts
}

func clearIndexes(db *badger.DB) error {
	var (
		prefix = []byte{prefixIndex}
		keys   [][]byte
	)

	if err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(iteratorOptions(prefix, true))
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}

		return nil
	}); err != nil {
		return err
	}

	batch := db.NewWriteBatch()
	defer batch.Cancel()

	for _, key := range keys {
		if err := batch.Delete(key); err != nil {
			return err
		}
	}

	return batch.Flush()
}

// SaveBadger replaces any index state in the database with the contents of the memory accessor.
func SaveBadger(db *badger.DB, memory *Memory) error {
	if err := clearIndexes(db); err != nil {
		return fmt.Errorf("clearing index state: %w", err)
	}

	memory.lock.RLock()
	defer memory.lock.RUnlock()

	var (
		batch = db.NewWriteBatch()
		codec = record.SchemaCodec{}
	)

	defer batch.Cancel()

	writeDescriptor := func(descriptor Descriptor) error {
		value := []byte{0}

		if memory.isOnline(descriptor.ID) {
			value[0] = descriptorOnline
		}

		return batch.Set(descriptorKey(descriptor.ID), append(value, codec.Encode(descriptor.Rule())...))
	}

	for _, valueIndex := range memory.values {
		if err := writeDescriptor(valueIndex.descriptor); err != nil {
			return err
		}

		var sequence uint64

		for _, entry := range valueIndex.sortedEntries() {
			value := binary.BigEndian.AppendUint64(nil, uint64(entry.EntityID))

			if err := batch.Set(valueEntryKey(valueIndex.descriptor.ID, sequence), append(value, record.TupleKey(entry.Values)...)); err != nil {
				return err
			}

			sequence++
		}
	}

	for entityType, tokenIndex := range memory.tokens {
		if err := writeDescriptor(tokenIndex.descriptor); err != nil {
			return err
		}

		tokenIndex.lock.RLock()

		for entityID, tokens := range tokenIndex.tokens {
			value := make([]byte, 0, len(tokens)*4)

			for _, token := range tokens {
				value = binary.BigEndian.AppendUint32(value, uint32(token))
			}

			if err := batch.Set(tokenEntryKey(entityType, entityID), value); err != nil {
				tokenIndex.lock.RUnlock()
				return err
			}
		}

		tokenIndex.lock.RUnlock()
	}

	return batch.Flush()
}

// LoadBadger reads index state written by SaveBadger. A database without index state yields an empty accessor.
func LoadBadger(db *badger.DB) (*Memory, error) {
	memory := NewMemory()

	err := db.View(func(txn *badger.Txn) error {
		if err := loadDescriptors(txn, memory); err != nil {
			return err
		}

		if err := loadValueEntries(txn, memory); err != nil {
			return err
		}

		return loadTokenEntries(txn, memory)
	})

	if err != nil {
		return nil, fmt.Errorf("loading index state: %w", err)
	}

	return memory, nil
}

func loadDescriptors(txn *badger.Txn, memory *Memory) error {
	var (
		prefix = indexPrefix(kindDescriptor)
		codec  = record.SchemaCodec{}
		it     = txn.NewIterator(iteratorOptions(prefix, false))
	)

	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var (
			item = it.Item()
			id   = int64(binary.BigEndian.Uint64(item.Key()[len(prefix):]))
		)

		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		if len(value) < 1 {
			return fmt.Errorf("index descriptor %d is empty", id)
		}

		rule, err := codec.Decode(id, value[1:])
		if err != nil {
			return fmt.Errorf("index descriptor %d: %w", id, err)
		}

		descriptor := DescriptorFromRule(rule)

		if descriptor.IsTokenLookup() {
			memory.CreateTokenIndex(descriptor)
		} else {
			memory.CreateValueIndex(descriptor)
		}

		memory.SetOnline(id, value[0] == descriptorOnline)
	}

	return nil
}

func loadValueEntries(txn *badger.Txn, memory *Memory) error {
	var (
		prefix = indexPrefix(kindValueEntry)
		it     = txn.NewIterator(iteratorOptions(prefix, false))
	)

	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var (
			item    = it.Item()
			indexID = int64(binary.BigEndian.Uint64(item.Key()[len(prefix):]))
		)

		valueIndex, found := memory.MemoryValueIndex(indexID)
		if !found {
			return fmt.Errorf("value entry for unknown index %d", indexID)
		}

		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		if len(value) < 8 {
			return fmt.Errorf("value entry for index %d is truncated", indexID)
		}

		values, err := record.DecodeTuple(value[8:])
		if err != nil {
			return fmt.Errorf("value entry for index %d: %w", indexID, err)
		}

		valueIndex.Add(int64(binary.BigEndian.Uint64(value[:8])), values...)
	}

	return nil
}

func loadTokenEntries(txn *badger.Txn, memory *Memory) error {
	var (
		prefix = indexPrefix(kindTokenEntry)
		it     = txn.NewIterator(iteratorOptions(prefix, false))
	)

	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var (
			item       = it.Item()
			key        = item.Key()[len(prefix):]
			entityType = record.EntityType(key[0])
			entityID   = int64(binary.BigEndian.Uint64(key[1:]))
		)

		tokenIndex, found := memory.MemoryTokenIndex(entityType)
		if !found {
			return fmt.Errorf("token entry for %s %d has no lookup index", entityType, entityID)
		}

		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		if len(value)%4 != 0 {
			return fmt.Errorf("token entry for %s %d is truncated", entityType, entityID)
		}

		tokens := make([]int32, 0, len(value)/4)

		for offset := 0; offset < len(value); offset += 4 {
			tokens = append(tokens, int32(binary.BigEndian.Uint32(value[offset:])))
		}

		tokenIndex.Set(entityID, tokens...)
	}

	return nil
}
