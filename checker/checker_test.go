package checker_test

import (
	"context"
	"sync"
	"testing"

	"github.com/specterops/recordcheck/checker"
	"github.com/specterops/recordcheck/fixture"
	"github.com/specterops/recordcheck/index"
	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/report"
	"github.com/specterops/recordcheck/store"
	"github.com/specterops/recordcheck/util/size"
	"github.com/stretchr/testify/require"
)

// graph is a small store with a sparse chain, a dense node with one group per relationship type, a loop, dynamic
// string and array values, a two record property chain, a node with a two block dynamic label chain and a uniqueness
// constraint.
type graph struct {
	builder     *fixture.Builder
	stores      *store.Stores
	indexes     *index.Memory
	person      int32
	admin       int32
	a, b, c, d  int64
	tagged      int64
	r1, r2, r3  int64
	r4          int64
	constraint  int64
	uniqueIndex int64
}

func newGraph(t *testing.T) graph {
	builder, err := fixture.NewMemory()
	require.NoError(t, err)

	builder.SetDenseThreshold(3)
	builder.LookupIndexes()

	constraint, uniqueIndex := builder.UniqueConstraint("person uid", "Person", "uid")

	var (
		a = builder.Node([]string{"Person", "Admin"}, fixture.Properties{
			"uid":  record.Int(1),
			"name": record.String("alice"),
		})
		b = builder.Node([]string{"Person"}, fixture.Properties{
			"uid": record.Int(2),
		})
		c = builder.Node([]string{"Person"}, fixture.Properties{
			"uid":    record.Int(3),
			"bio":    record.String("a biography that is much too long for an inline property block"),
			"scores": record.IntArray(4, 8, 15, 16, 23, 42),
			"x":      record.Float(0.5),
			"y":      record.Bool(true),
		})
		d = builder.Node([]string{"Robot"}, fixture.Properties{
			"serial": record.String("RX-78"),
		})
		tagged = builder.Node([]string{"Tag0", "Tag1", "Tag2", "Tag3", "Tag4", "Tag5", "Tag6", "Tag7", "Tag8"}, nil)
	)

	g := graph{
		builder:     builder,
		stores:      builder.Stores(),
		indexes:     builder.Indexes(),
		person:      builder.Label("Person"),
		admin:       builder.Label("Admin"),
		a:           a,
		b:           b,
		c:           c,
		d:           d,
		tagged:      tagged,
		r1:          builder.Relationship(a, b, "KNOWS", nil),
		r2:          builder.Relationship(a, c, "KNOWS", fixture.Properties{"since": record.Int(2001)}),
		r3:          builder.Relationship(b, c, "LIKES", nil),
		r4:          builder.Relationship(c, c, "SELF", nil),
		constraint:  constraint,
		uniqueIndex: uniqueIndex,
	}

	require.NoError(t, builder.Commit())
	return g
}

func testOptions() checker.Options {
	options := checker.DefaultOptions()
	options.Workers = 4
	options.ChunkSize = 2

	return options
}

func runCheck(t *testing.T, stores *store.Stores, indexes index.Accessor, options checker.Options) *report.Summary {
	summary, err := checker.New(stores, indexes, options).Check(context.Background())
	require.NoError(t, err)

	return summary
}

func collectInconsistencies(t *testing.T, stores *store.Stores, indexes index.Accessor, options checker.Options) []report.Inconsistency {
	var (
		inconsistencies []report.Inconsistency
		lock            sync.Mutex
	)

	require.NoError(t, checker.New(stores, indexes, options).CheckWith(context.Background(), report.ReporterFunc(func(inconsistency report.Inconsistency) {
		lock.Lock()
		defer lock.Unlock()

		inconsistencies = append(inconsistencies, inconsistency)
	})))

	return inconsistencies
}

func mutate[T record.Record](t *testing.T, records *store.Store[T], id int64, change func(rec *T)) {
	rec, err := records.Record(id, store.Force)
	require.NoError(t, err)

	change(&rec)
	require.NoError(t, records.Overwrite(rec))
}

func load[T record.Record](t *testing.T, records *store.Store[T], id int64) T {
	rec, err := records.Record(id, store.Normal)
	require.NoError(t, err)

	return rec
}

// propertyBlock finds the block of a key in a property chain.
func propertyBlock(t *testing.T, stores *store.Stores, firstProp int64, key int32) (record.Property, record.PropertyBlock) {
	for nextID := firstProp; nextID != record.NullReference; {
		property := load(t, stores.Properties, nextID)

		for _, block := range property.Blocks {
			if block.Key == key {
				return property, block
			}
		}

		nextID = property.NextProp
	}

	require.FailNow(t, "property key not found", "key %d", key)
	return record.Property{}, record.PropertyBlock{}
}

func TestCheck_CleanGraph(t *testing.T) {
	g := newGraph(t)

	summary := runCheck(t, g.stores, g.indexes, testOptions())
	require.True(t, summary.IsConsistent(), summary.String())
	require.Zero(t, summary.TotalInconsistencyCount())
	require.Zero(t, summary.TotalWarningCount())
}

func TestCheck_LabelsOutOfOrder(t *testing.T) {
	g := newGraph(t)

	mutate(t, g.stores.Nodes, g.a, func(node *record.Node) {
		node.Labels = record.InlineLabels(int64(g.admin), int64(g.person))
	})

	inconsistencies := collectInconsistencies(t, g.stores, g.indexes, testOptions())
	require.Len(t, inconsistencies, 1)
	require.Equal(t, report.LabelsOutOfOrder, inconsistencies[0].Kind)
	require.Equal(t, record.TypeNode, inconsistencies[0].Type)
	require.Contains(t, inconsistencies[0].Message(), "Node[")
}

func TestCheck_SourcePrevDoesNotReferenceBack(t *testing.T) {
	g := newGraph(t)

	mutate(t, g.stores.Relationships, g.r1, func(relationship *record.Relationship) {
		relationship.FirstNextRel = record.NullReference
	})

	summary := runCheck(t, g.stores, g.indexes, testOptions())
	require.Equal(t, int64(1), summary.TotalInconsistencyCount(), summary.String())
	require.Equal(t, int64(1), summary.Count(record.TypeRelationship, report.SourcePrevDoesNotReferenceBack))
}

func TestCheck_IDGenerator(t *testing.T) {
	g := newGraph(t)

	g.stores.Nodes.IDGenerator().MarkFree(g.b)

	unused := g.stores.Relationships.NextID()
	require.NoError(t, g.stores.Relationships.Overwrite(record.NewRelationship(unused)))

	summary := runCheck(t, g.stores, g.indexes, testOptions())
	require.Equal(t, int64(2), summary.TotalInconsistencyCount(), summary.String())
	require.Equal(t, int64(1), summary.Count(record.TypeNode, report.IDIsFreed))
	require.Equal(t, int64(1), summary.Count(record.TypeRelationship, report.IDIsNotFreed))
}

func TestCheck_LabelIndexEntryForUnusedNode(t *testing.T) {
	g := newGraph(t)

	require.NoError(t, g.stores.Nodes.Write(record.NewNode(g.d)))

	summary := runCheck(t, g.stores, g.indexes, testOptions())
	require.False(t, summary.IsConsistent())
	require.Equal(t, int64(1), summary.Count(record.TypeLabelScanDocument, report.NodeNotInUse))

	// Both the total and the Robot label count are off by one
	require.Equal(t, int64(2), summary.Count(record.TypeCounts, report.InconsistentNodeCount))
}

func TestCheck_LabelIndexEntryPastHighID(t *testing.T) {
	g := newGraph(t)

	labelIndex, found := g.indexes.MemoryTokenIndex(record.EntityNode)
	require.True(t, found)

	labelIndex.Set(1_000, g.person)

	summary := runCheck(t, g.stores, g.indexes, testOptions())
	require.Equal(t, int64(1), summary.TotalInconsistencyCount(), summary.String())
	require.Equal(t, int64(1), summary.Count(record.TypeLabelScanDocument, report.NodeNotInUse))
}

func TestCheck_UniqueIndexNotUnique(t *testing.T) {
	g := newGraph(t)

	valueIndex, found := g.indexes.MemoryValueIndex(g.uniqueIndex)
	require.True(t, found)

	// b claims the value of a in both the index and its property chain
	require.True(t, valueIndex.Remove(g.b, record.Int(2)))
	valueIndex.Add(g.b, record.Int(1))

	node := load(t, g.stores.Nodes, g.b)
	property, block := propertyBlock(t, g.stores, node.NextProp, g.builder.PropertyKey("uid"))

	for idx := range property.Blocks {
		if property.Blocks[idx].Key == block.Key {
			property.Blocks[idx] = record.IntBlock(block.Key, 1)
		}
	}

	require.NoError(t, g.stores.Properties.Overwrite(property))

	summary := runCheck(t, g.stores, g.indexes, testOptions())
	require.Equal(t, int64(1), summary.Count(record.TypeIndex, report.UniqueIndexNotUnique))
	require.Equal(t, int64(2), summary.Count(record.TypeNode, report.UniqueIndexNotUnique))
	require.Equal(t, int64(3), summary.TotalInconsistencyCount(), summary.String())
}

// newAccounts builds a store of Account nodes with a uniqueness constraint on uid and returns it with the id of the
// owned index.
func newAccounts(t *testing.T, uids ...int64) (*fixture.Builder, int64) {
	builder, err := fixture.NewMemory()
	require.NoError(t, err)

	_, uniqueIndex := builder.UniqueConstraint("uid", "Account", "uid")

	for _, uid := range uids {
		builder.Node([]string{"Account"}, fixture.Properties{"uid": record.Int(uid)})
	}

	require.NoError(t, builder.Commit())
	return builder, uniqueIndex
}

// partitionedOptions reads every non-empty index with far more partitions than entries.
func partitionedOptions() checker.Options {
	options := testOptions()
	options.Workers = 16
	options.SmallIndexThreshold = 0

	return options
}

func TestCheck_EmptyIndexPartitions(t *testing.T) {
	builder, uniqueIndex := newAccounts(t, 7, 7, 9)

	valueIndex, found := builder.Indexes().ValueIndex(uniqueIndex)
	require.True(t, found)

	sizes := checker.NewIndexSizes(0, 16)
	require.False(t, sizes.IsSmall(valueIndex))
	require.Equal(t, 16, sizes.Partitions(valueIndex))

	summary := runCheck(t, builder.Stores(), builder.Indexes(), partitionedOptions())
	require.Equal(t, int64(1), summary.Count(record.TypeIndex, report.UniqueIndexNotUnique))
	require.Equal(t, int64(2), summary.Count(record.TypeNode, report.UniqueIndexNotUnique))
	require.Equal(t, int64(3), summary.TotalInconsistencyCount(), summary.String())
}

func TestCheck_EmptyIndexPartitionsOfConsistentIndex(t *testing.T) {
	for _, uids := range [][]int64{
		{7, 8, 9},
		{1},
		{-3, 0, 5, 1 << 40},
	} {
		builder, uniqueIndex := newAccounts(t, uids...)

		valueIndex, found := builder.Indexes().ValueIndex(uniqueIndex)
		require.True(t, found)
		require.Equal(t, 16, checker.NewIndexSizes(0, 16).Partitions(valueIndex))

		summary := runCheck(t, builder.Stores(), builder.Indexes(), partitionedOptions())
		require.True(t, summary.IsConsistent(), summary.String())
		require.Zero(t, summary.TotalWarningCount(), summary.String())
	}
}

func TestIndexSizes(t *testing.T) {
	builder, err := fixture.NewMemory()
	require.NoError(t, err)

	indexID := builder.Index("name", record.EntityNode, "Thing", "name")
	require.NoError(t, builder.Commit())

	valueIndex, found := builder.Indexes().ValueIndex(indexID)
	require.True(t, found)

	// An empty index is small under every threshold
	require.True(t, checker.NewIndexSizes(0, 8).IsSmall(valueIndex))
	require.Equal(t, 1, checker.NewIndexSizes(0, 8).Partitions(valueIndex))
	require.Equal(t, 1, checker.NewIndexSizes(checker.DefaultSmallIndexThreshold, 0).Partitions(valueIndex))
}

func TestCheck_RandomGraphIsConsistent(t *testing.T) {
	builder, err := fixture.NewMemory()
	require.NoError(t, err)

	options := fixture.DefaultRandomGraphOptions()
	options.Nodes = 300
	options.Relationships = 1_200

	fixture.RandomGraph(builder, options)
	require.NoError(t, builder.Commit())

	var (
		checkOptions = testOptions()
		stores       = builder.Stores()
	)

	checkOptions.ChunkSize = 64

	first := runCheck(t, stores, builder.Indexes(), checkOptions)
	require.True(t, first.IsConsistent(), first.String())
	require.Zero(t, first.TotalWarningCount(), first.String())

	// A second run over the same store finds the same nothing
	second := runCheck(t, stores, builder.Indexes(), checkOptions)
	require.Equal(t, first.Snapshot(), second.Snapshot())
}

func TestCheck_MultipleRounds(t *testing.T) {
	builder, err := fixture.NewMemory()
	require.NoError(t, err)

	options := fixture.DefaultRandomGraphOptions()
	options.Seed = 7
	options.Nodes = 200
	options.Relationships = 800

	fixture.RandomGraph(builder, options)

	// A sparse pair appended after the generated graph sits in the last round
	var (
		tail  = builder.Node([]string{"Label0"}, fixture.Properties{"uid": record.Int(int64(options.Nodes))})
		other = builder.Node([]string{"Label0"}, fixture.Properties{"uid": record.Int(int64(options.Nodes) + 1)})
		link  = builder.Relationship(tail, other, "TYPE_1", nil)
	)

	require.NoError(t, builder.Commit())

	var (
		stores       = builder.Stores()
		checkOptions = testOptions()
	)

	// Room for 48 cached nodes forces several rounds for both id spaces
	checkOptions.MemoryBudget = size.Size(48 * 16)
	checkOptions.ChunkSize = 16

	rounds := checker.NewEntityBasedMemoryLimiter(checkOptions.MemoryBudget, 16).Rounds(stores.Nodes.HighID(), stores.Relationships.HighID())
	require.Greater(t, len(rounds), 1)
	require.False(t, rounds[0].Nodes.Contains(tail))

	summary := runCheck(t, stores, builder.Indexes(), checkOptions)
	require.True(t, summary.IsConsistent(), summary.String())

	node := load(t, stores.Nodes, tail)
	require.False(t, node.Dense)
	require.Equal(t, link, node.NextRel)

	// Break the only relationship of a node held in a later round
	require.NoError(t, stores.Relationships.Write(record.NewRelationship(link)))

	summary = runCheck(t, stores, builder.Indexes(), checkOptions)
	require.GreaterOrEqual(t, summary.Count(record.TypeNode, report.RelationshipNotInUse), int64(1), summary.String())
}

func TestCheck_Flags(t *testing.T) {
	g := newGraph(t)

	g.stores.Counts.Set(store.NodeCountsKey(store.AnyToken), 99)

	labelIndex, found := g.indexes.MemoryTokenIndex(record.EntityNode)
	require.True(t, found)
	labelIndex.Remove(g.a, g.admin)

	summary := runCheck(t, g.stores, g.indexes, testOptions())
	require.Equal(t, int64(1), summary.Count(record.TypeCounts, report.InconsistentNodeCount))
	require.Equal(t, int64(1), summary.Count(record.TypeLabelScanDocument, report.NodeLabelNotInIndex))

	options := testOptions()
	options.Flags.CheckCounts = false
	options.Flags.CheckIndexes = false

	summary = runCheck(t, g.stores, g.indexes, options)
	require.True(t, summary.IsConsistent(), summary.String())
}

func TestCheck_Cancelled(t *testing.T) {
	g := newGraph(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := checker.New(g.stores, g.indexes, testOptions()).Check(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCheck_EmptyNameIsWarning(t *testing.T) {
	g := newGraph(t)

	mutate(t, g.stores.PropertyKeyTokens, int64(g.builder.PropertyKey("serial")), func(token *record.Token) {
		token.NameID = record.NullReference
	})

	summary := runCheck(t, g.stores, g.indexes, testOptions())
	require.True(t, summary.IsConsistent(), summary.String())
	require.Equal(t, int64(1), summary.TotalWarningCount())
	require.Equal(t, int64(1), summary.Count(record.TypePropertyKeyToken, report.EmptyName))
}
