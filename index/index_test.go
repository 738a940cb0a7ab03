package index_test

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/specterops/recordcheck/index"
	"github.com/specterops/recordcheck/record"
	"github.com/stretchr/testify/require"
)

var (
	nameIndex = index.Descriptor{
		ID:           4,
		Name:         "person_name",
		EntityType:   record.EntityNode,
		EntityTokens: []int32{0},
		PropertyKeys: []int32{1},
		Type:         record.IndexTypeRange,
		Unique:       true,
	}

	nodeLookup = index.Descriptor{
		ID:         1,
		Name:       "node_labels",
		EntityType: record.EntityNode,
		Type:       record.IndexTypeLookup,
	}
)

func entityIDs(entries []index.Entry) []int64 {
	ids := make([]int64, 0, len(entries))

	for _, entry := range entries {
		ids = append(ids, entry.EntityID)
	}

	return ids
}

func TestMemoryValueIndex_Lookup(t *testing.T) {
	var (
		memory     = index.NewMemory()
		valueIndex = memory.CreateValueIndex(nameIndex)
	)

	valueIndex.Add(7, record.String("alice"))
	valueIndex.Add(3, record.String("alice"))
	valueIndex.Add(5, record.String("bob"))

	require.Equal(t, []int64{3, 7}, valueIndex.Lookup([]record.Value{record.String("alice")}))
	require.Empty(t, valueIndex.Lookup([]record.Value{record.String("carol")}))
	require.Empty(t, valueIndex.Lookup([]record.Value{record.Int(5)}))

	require.True(t, valueIndex.Remove(7, record.String("alice")))
	require.False(t, valueIndex.Remove(7, record.String("alice")))
	require.Equal(t, []int64{3}, valueIndex.Lookup([]record.Value{record.String("alice")}))
	require.Equal(t, 2, valueIndex.EntryCount())
	require.InDelta(t, 3, float64(valueIndex.EstimatedEntityCount()), 1)
}

func TestMemoryValueIndex_PartitionsKeepValueGroupsTogether(t *testing.T) {
	var (
		memory     = index.NewMemory()
		valueIndex = memory.CreateValueIndex(nameIndex)
	)

	valueIndex.Add(1, record.Int(10))
	valueIndex.Add(2, record.Int(10))
	valueIndex.Add(3, record.Int(10))
	valueIndex.Add(4, record.Int(20))

	readers := valueIndex.NewAllEntriesValueReader(2)
	require.Len(t, readers, 2)

	require.Equal(t, []int64{1, 2, 3}, entityIDs(index.Drain(readers[0])))
	require.Equal(t, []int64{4}, entityIDs(index.Drain(readers[1])))
}

func TestMemoryValueIndex_EmptyPartitions(t *testing.T) {
	var (
		memory     = index.NewMemory()
		valueIndex = memory.CreateValueIndex(nameIndex)
		seen       []int64
		numEmpty   int
	)

	valueIndex.Add(9, record.Int(2))
	valueIndex.Add(8, record.Int(1))

	readers := valueIndex.NewAllEntriesValueReader(8)
	require.Len(t, readers, 8)

	for _, reader := range readers {
		entries := index.Drain(reader)

		if len(entries) == 0 {
			numEmpty++
		}

		seen = append(seen, entityIDs(entries)...)
	}

	require.Equal(t, []int64{8, 9}, seen)
	require.Equal(t, 6, numEmpty)
}

func TestMemoryTokenIndex_Entries(t *testing.T) {
	var (
		memory     = index.NewMemory()
		tokenIndex = memory.CreateTokenIndex(nodeLookup)
	)

	tokenIndex.Add(4, 2, 1)
	tokenIndex.Add(4, 1)
	tokenIndex.Set(2, 3)
	tokenIndex.Add(10, 0)
	tokenIndex.Remove(2, 3)

	reader := tokenIndex.Entries(0, 10)

	entry, ok := reader.Next()
	require.True(t, ok)
	require.Equal(t, index.TokenEntry{EntityID: 4, Tokens: []int32{1, 2}}, entry)

	_, ok = reader.Next()
	require.False(t, ok)

	_, found := tokenIndex.Tokens(2)
	require.False(t, found)
}

func TestMemory_OnlineRules(t *testing.T) {
	memory := index.NewMemory()

	memory.CreateValueIndex(nameIndex)
	memory.CreateTokenIndex(nodeLookup)

	require.Equal(t, []index.Descriptor{nodeLookup, nameIndex}, memory.OnlineRules(record.EntityNode))
	require.Empty(t, memory.OnlineRules(record.EntityRelationship))

	memory.SetOnline(nameIndex.ID, false)
	require.Equal(t, []index.Descriptor{nodeLookup}, memory.OnlineRules(record.EntityNode))

	_, found := memory.ValueIndex(nameIndex.ID)
	require.False(t, found)

	_, found = memory.TokenIndex(record.EntityNode)
	require.True(t, found)
}

func TestBadger_SaveLoad(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)

	defer db.Close()

	var (
		memory     = index.NewMemory()
		valueIndex = memory.CreateValueIndex(nameIndex)
		tokenIndex = memory.CreateTokenIndex(nodeLookup)
	)

	valueIndex.Add(1, record.String("alice"))
	valueIndex.Add(2, record.StringArray("a", "b"))
	tokenIndex.Add(1, 0, 3)

	require.NoError(t, index.SaveBadger(db, memory))

	// Saving again replaces rather than appends
	require.NoError(t, index.SaveBadger(db, memory))

	loaded, err := index.LoadBadger(db)
	require.NoError(t, err)

	loadedValues, found := loaded.ValueIndex(nameIndex.ID)
	require.True(t, found)
	require.Equal(t, []int64{2}, loadedValues.Lookup([]record.Value{record.StringArray("a", "b")}))
	require.Equal(t, []int64{1, 2}, entityIDs(index.Drain(loadedValues.NewAllEntriesValueReader(1)[0])))

	loadedTokens, found := loaded.TokenIndex(record.EntityNode)
	require.True(t, found)

	tokens, found := loadedTokens.Tokens(1)
	require.True(t, found)
	require.Equal(t, []int32{0, 3}, tokens)
}
