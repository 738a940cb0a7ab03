package fixture_test

import (
	"testing"

	"github.com/specterops/recordcheck/fixture"
	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/store"
	"github.com/stretchr/testify/require"
)

func TestBuilder_SparseChain(t *testing.T) {
	builder, err := fixture.NewMemory()
	require.NoError(t, err)

	var (
		a      = builder.Node([]string{"Person"}, fixture.Properties{"name": record.String("a")})
		b      = builder.Node([]string{"Person"}, nil)
		first  = builder.Relationship(a, b, "KNOWS", nil)
		second = builder.Relationship(b, a, "KNOWS", fixture.Properties{"since": record.Int(2001)})
		loop   = builder.Relationship(a, a, "SELF", nil)
	)

	require.NoError(t, builder.Commit())

	stores := builder.Stores()

	node, err := stores.Nodes.Record(a, store.Normal)
	require.NoError(t, err)
	require.False(t, node.Dense)
	require.Equal(t, first, node.NextRel)
	require.Equal(t, []int64{int64(builder.Label("Person"))}, node.Labels.Inline)
	require.NotEqual(t, record.NullReference, node.NextProp)

	head, err := stores.Relationships.Record(first, store.Normal)
	require.NoError(t, err)
	require.True(t, head.FirstInFirstChain)
	require.Equal(t, int64(3), head.FirstPrevRel)
	require.Equal(t, second, head.FirstNextRel)
	require.True(t, head.FirstInSecondChain)
	require.Equal(t, int64(2), head.SecondPrevRel)

	selfLoop, err := stores.Relationships.Record(loop, store.Normal)
	require.NoError(t, err)
	require.Equal(t, second, selfLoop.FirstPrevRel)
	require.Equal(t, second, selfLoop.SecondPrevRel)
	require.Equal(t, record.NullReference, selfLoop.FirstNextRel)
	require.Equal(t, record.NullReference, selfLoop.SecondNextRel)

	require.Equal(t, int64(2), stores.Counts.Get(store.NodeCountsKey(store.AnyToken)))
	require.Equal(t, int64(2), stores.Counts.Get(store.RelationshipCountsKey(builder.RelationshipType("KNOWS"))))
	require.ErrorContains(t, builder.Commit(), "already committed")
}

func TestBuilder_DenseGroups(t *testing.T) {
	builder, err := fixture.NewMemory()
	require.NoError(t, err)

	builder.SetDenseThreshold(2)

	var (
		hub      = builder.Node(nil, nil)
		other    = builder.Node(nil, nil)
		outgoing = builder.Relationship(hub, other, "B", nil)
		incoming = builder.Relationship(other, hub, "A", nil)
	)

	require.NoError(t, builder.Commit())

	stores := builder.Stores()

	node, err := stores.Nodes.Record(hub, store.Normal)
	require.NoError(t, err)
	require.True(t, node.Dense)

	firstGroup, err := stores.RelationshipGroups.Record(node.NextRel, store.Normal)
	require.NoError(t, err)
	require.Equal(t, builder.RelationshipType("B"), firstGroup.Type)
	require.Equal(t, outgoing, firstGroup.FirstOut)

	secondGroup, err := stores.RelationshipGroups.Record(firstGroup.Next, store.Normal)
	require.NoError(t, err)
	require.Equal(t, builder.RelationshipType("A"), secondGroup.Type)
	require.Equal(t, incoming, secondGroup.FirstIn)
	require.Equal(t, record.NullReference, secondGroup.Next)
	require.Equal(t, hub, secondGroup.Owner)
}

func TestBuilder_DynamicPayloads(t *testing.T) {
	builder, err := fixture.NewMemory()
	require.NoError(t, err)

	var (
		labels = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I"}
		long   = "a string far too long to fit inside a single property block payload"
		node   = builder.Node(labels, fixture.Properties{
			"long":  record.String(long),
			"array": record.IntArray(1, 2, 3),
			"a":     record.Bool(true),
			"b":     record.Float(1.5),
			"c":     record.Int(-4),
		})
	)

	require.NoError(t, builder.Commit())

	stores := builder.Stores()

	loaded, err := stores.Nodes.Record(node, store.Normal)
	require.NoError(t, err)
	require.True(t, loaded.Labels.Dynamic)

	first, err := stores.Properties.Record(loaded.NextProp, store.Normal)
	require.NoError(t, err)
	require.Len(t, first.Blocks, record.MaxPropertyBlocks)
	require.NotEqual(t, record.NullReference, first.NextProp)

	second, err := stores.Properties.Record(first.NextProp, store.Normal)
	require.NoError(t, err)
	require.Len(t, second.Blocks, 1)
	require.Equal(t, first.ID, second.PrevProp)
	require.Greater(t, stores.Strings.HighID(), int64(0))
	require.Greater(t, stores.Arrays.HighID(), int64(0))
}

func TestBuilder_UnknownNode(t *testing.T) {
	builder, err := fixture.NewMemory()
	require.NoError(t, err)

	builder.Relationship(3, 4, "MISSING", nil)
	require.Error(t, builder.Commit())
}

func TestRandomGraph_Deterministic(t *testing.T) {
	var (
		options = fixture.DefaultRandomGraphOptions()
		counts  = make([]int64, 2)
	)

	options.Nodes = 50
	options.Relationships = 120

	for idx := range counts {
		builder, err := fixture.NewMemory()
		require.NoError(t, err)

		nodeIDs := fixture.RandomGraph(builder, options)
		require.Len(t, nodeIDs, options.Nodes)
		require.NoError(t, builder.Commit())

		counts[idx] = builder.Stores().Properties.HighID()
	}

	require.Equal(t, counts[0], counts[1])
}
