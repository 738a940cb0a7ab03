package store_test

import (
	"testing"

	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/store"
	"github.com/stretchr/testify/require"
)

func TestBadgerBackend_ReopenPreservesState(t *testing.T) {
	var (
		path     = t.TempDir()
		property = record.NewProperty(3)
	)

	backend, err := store.OpenBadger(store.BadgerOptions{Path: path})
	require.NoError(t, err)

	stores, err := store.Create(backend, store.DefaultFormat())
	require.NoError(t, err)

	property.InUse = true
	property.Blocks = []record.PropertyBlock{record.IntBlock(0, 12)}

	require.NoError(t, stores.Properties.Write(property))
	require.NoError(t, stores.Properties.Write(record.NewProperty(1)))
	stores.Counts.Set(store.NodeCountsKey(store.AnyToken), 5)

	require.NoError(t, stores.Flush())
	require.NoError(t, stores.Close())

	backend, err = store.OpenBadger(store.BadgerOptions{Path: path})
	require.NoError(t, err)

	reopened, err := store.Open(backend)
	require.NoError(t, err)

	defer reopened.Close()

	loaded, err := reopened.Properties.Record(3, store.Normal)
	require.NoError(t, err)
	require.Equal(t, property, loaded)

	require.Equal(t, int64(4), reopened.Properties.HighID())
	require.Equal(t, []int64{1}, reopened.Properties.IDGenerator().NotUsedIDs(0, 4))
	require.Equal(t, int64(5), reopened.Counts.Get(store.NodeCountsKey(store.AnyToken)))
	require.Equal(t, store.DefaultFormat(), reopened.Format)
}

func TestBadgerBackend_ReadCache(t *testing.T) {
	backend, err := store.OpenBadger(store.BadgerOptions{InMemory: true, RecordCacheCapacity: 16})
	require.NoError(t, err)

	defer backend.Close()

	require.NoError(t, backend.Write(record.TypeNode, 1, []byte{1, 2, 3}))

	for range 3 {
		data, err := backend.Read(record.TypeNode, 1)
		require.NoError(t, err)
		require.Equal(t, []byte{1, 2, 3}, data)
	}

	require.Equal(t, int64(2), backend.CacheStats().Hits())

	// Writes replace cached bytes
	require.NoError(t, backend.Write(record.TypeNode, 1, []byte{4}))

	data, err := backend.Read(record.TypeNode, 1)
	require.NoError(t, err)
	require.Equal(t, []byte{4}, data)

	data, err = backend.Read(record.TypeNode, 99)
	require.NoError(t, err)
	require.Nil(t, data)
}
