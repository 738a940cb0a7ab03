package store_test

import (
	"testing"

	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/store"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) *store.Stores {
	stores, err := store.Create(store.NewMemoryBackend(), store.DefaultFormat())
	require.NoError(t, err)

	return stores
}

func TestStore_LoadModes(t *testing.T) {
	var (
		stores = newStores(t)
		node   = record.NewNode(0)
	)

	node.InUse = true
	require.NoError(t, stores.Nodes.Write(node))
	require.NoError(t, stores.Nodes.Write(record.NewNode(1)))
	require.NoError(t, stores.Nodes.WriteRaw(2, []byte{0x01, 0x02}))

	loaded, err := stores.Nodes.Record(0, store.Normal)
	require.NoError(t, err)
	require.True(t, loaded.InUse)

	_, err = stores.Nodes.Record(1, store.Normal)
	require.ErrorIs(t, err, store.ErrNotInUse)

	_, err = stores.Nodes.Record(7, store.Normal)
	require.ErrorIs(t, err, store.ErrOutOfRange)

	loaded, err = stores.Nodes.Record(7, store.Force)
	require.NoError(t, err)
	require.False(t, loaded.InUse)
	require.Equal(t, int64(7), loaded.ID)

	_, err = stores.Nodes.Record(2, store.Normal)
	require.ErrorIs(t, err, record.ErrRecordCorrupt)

	loaded, err = stores.Nodes.Record(2, store.Force)
	require.NoError(t, err)
	require.False(t, loaded.Corrupt)
	require.False(t, loaded.InUse)

	loaded, err = stores.Nodes.Record(2, store.Check)
	require.NoError(t, err)
	require.True(t, loaded.Corrupt)
}

func TestStore_WriteMaintainsIDGenerator(t *testing.T) {
	var (
		stores       = newStores(t)
		relationship = record.NewRelationship(4)
	)

	relationship.InUse = true
	require.NoError(t, stores.Relationships.Write(relationship))
	require.Equal(t, int64(5), stores.Relationships.HighID())
	require.False(t, stores.Relationships.IDGenerator().IsFree(4))

	relationship.InUse = false
	require.NoError(t, stores.Relationships.Write(relationship))
	require.True(t, stores.Relationships.IDGenerator().IsFree(4))

	relationship.InUse = true
	require.NoError(t, stores.Relationships.Overwrite(relationship))
	require.True(t, stores.Relationships.IDGenerator().IsFree(4))
}

func TestIDGenerator(t *testing.T) {
	generator := store.NewIDGenerator()

	require.Equal(t, int64(0), generator.NextID())
	require.Equal(t, int64(1), generator.NextID())
	require.Equal(t, int64(2), generator.NextID())

	generator.MarkFree(1)
	generator.MarkFree(9)
	require.Equal(t, int64(10), generator.HighID())
	require.Equal(t, []int64{1, 9}, generator.NotUsedIDs(0, 100))
	require.Equal(t, []int64{9}, generator.NotUsedIDs(2, 10))

	require.Equal(t, int64(1), generator.NextID())
	require.Equal(t, []int64{9}, generator.NotUsedIDs(0, 100))

	state, err := generator.MarshalBinary()
	require.NoError(t, err)

	restored := store.NewIDGenerator()
	require.NoError(t, restored.UnmarshalBinary(state))
	require.Equal(t, int64(10), restored.HighID())
	require.True(t, restored.IsFree(9))
}

func TestCounts(t *testing.T) {
	counts := store.NewCounts()

	counts.Increment(store.NodeCountsKey(store.AnyToken), 3)
	counts.Increment(store.NodeCountsKey(2), 1)
	counts.Increment(store.RelationshipCountsKey(0), 4)
	counts.Increment(store.RelationshipCountsKey(0), -4)

	require.Equal(t, []store.CountsKey{store.NodeCountsKey(store.AnyToken), store.NodeCountsKey(2)}, counts.Keys())

	state, err := counts.MarshalBinary()
	require.NoError(t, err)

	restored := store.NewCounts()
	require.NoError(t, restored.UnmarshalBinary(state))
	require.Equal(t, int64(3), restored.Get(store.NodeCountsKey(store.AnyToken)))
	require.Equal(t, int64(0), restored.Get(store.RelationshipCountsKey(0)))
}

func TestFormat_Validate(t *testing.T) {
	require.NoError(t, store.DefaultFormat().Validate())

	backend := store.NewMemoryBackend()

	_, err := store.Create(backend, store.DefaultFormat())
	require.NoError(t, err)

	reopened, err := store.Open(backend)
	require.NoError(t, err)
	require.Equal(t, store.DefaultFormat(), reopened.Format)

	format := store.DefaultFormat()
	format.LabelBlockSize = 12
	require.Error(t, format.Validate())

	_, err = store.Create(store.NewMemoryBackend(), format)
	require.Error(t, err)
}
