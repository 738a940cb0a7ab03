package checker_test

import (
	"context"
	"math"
	"testing"

	"github.com/specterops/recordcheck/checker"
	"github.com/specterops/recordcheck/util/size"
	"github.com/stretchr/testify/require"
)

func TestCacheAccess_Slots(t *testing.T) {
	cache, err := checker.NewCacheAccess(16, checker.NodeSlots...)
	require.NoError(t, err)
	require.Equal(t, int64(16), cache.BytesPerEntity())
	require.NoError(t, cache.Prepare(checker.NewIDRange(100, 110)))

	client := cache.Client()
	client.PutBool(100, checker.SlotInUse, true)
	client.PutBool(100, checker.SlotCheckMark, true)
	client.PutInt64(100, checker.SlotRelationshipID, -1)
	client.PutInt64(101, checker.SlotRelationshipID, math.MaxInt64)

	require.True(t, client.GetBool(100, checker.SlotInUse))
	require.False(t, client.GetBool(100, checker.SlotDense))
	require.Equal(t, int64(-1), client.GetInt64(100, checker.SlotRelationshipID))
	require.Equal(t, int64(math.MaxInt64), client.GetInt64(101, checker.SlotRelationshipID))
	require.False(t, client.GetBool(101, checker.SlotInUse))

	require.True(t, client.ClearBool(100, checker.SlotCheckMark))
	require.False(t, client.ClearBool(100, checker.SlotCheckMark))
	require.True(t, client.GetBool(100, checker.SlotInUse))

	// Outside of the prepared range reads are zero and writes are dropped
	client.PutBool(99, checker.SlotInUse, true)
	require.False(t, client.GetBool(99, checker.SlotInUse))
	require.False(t, client.Contains(110))

	require.NoError(t, cache.Prepare(checker.NewIDRange(0, 10)))
	require.False(t, cache.Client().GetBool(0, checker.SlotInUse))
	require.ErrorIs(t, cache.Prepare(checker.NewIDRange(0, 17)), checker.ErrCacheRangeTooBig)
}

func TestCacheAccess_InvalidSlots(t *testing.T) {
	_, err := checker.NewCacheAccess(4)
	require.ErrorIs(t, err, checker.ErrInvalidSlots)

	_, err = checker.NewCacheAccess(4, checker.Slot{Name: "wide", Bits: 65})
	require.ErrorIs(t, err, checker.ErrInvalidSlots)
}

func TestCacheAccess_ConcurrentDisjointWriters(t *testing.T) {
	var (
		execution = checker.NewParallelExecution(8, 3, checker.AbortOnFailure)
		idRange   = checker.NewIDRange(0, 1000)
	)

	cache, err := checker.NewCacheAccess(idRange.Size(), checker.NodeSlots...)
	require.NoError(t, err)
	require.NoError(t, cache.Prepare(idRange))

	require.NoError(t, execution.RunRange(context.Background(), "cache", idRange, func(ctx context.Context, chunk checker.IDRange) error {
		client := cache.Client()

		for id := chunk.From; id < chunk.To; id++ {
			client.PutBool(id, checker.SlotInUse, true)
			client.PutBool(id, checker.SlotDense, id%2 == 0)
			client.PutInt64(id, checker.SlotRelationshipID, id*3)
		}

		return nil
	}))

	client := cache.Client()

	for id := idRange.From; id < idRange.To; id++ {
		require.True(t, client.GetBool(id, checker.SlotInUse))
		require.Equal(t, id%2 == 0, client.GetBool(id, checker.SlotDense))
		require.Equal(t, id*3, client.GetInt64(id, checker.SlotRelationshipID))
	}
}

func TestEntityBasedMemoryLimiter(t *testing.T) {
	bytesPerEntity, err := checker.SlotBytesPerEntity(checker.NodeSlots)
	require.NoError(t, err)
	require.Equal(t, int64(16), bytesPerEntity)

	limiter := checker.NewEntityBasedMemoryLimiter(size.Size(160), bytesPerEntity)
	require.Equal(t, int64(10), limiter.EntitiesPerRound())
	require.Equal(t, int64(10), limiter.CacheCapacity(25))
	require.Equal(t, int64(1), limiter.CacheCapacity(0))

	rounds := limiter.Rounds(25, 12)
	require.Len(t, rounds, 3)
	require.Equal(t, checker.NewIDRange(0, 10), rounds[0].Nodes)
	require.Equal(t, checker.NewIDRange(0, 10), rounds[0].Relationships)
	require.Equal(t, checker.NewIDRange(10, 12), rounds[1].Relationships)
	require.Equal(t, checker.NewIDRange(20, 25), rounds[2].Nodes)
	require.True(t, rounds[2].Relationships.IsEmpty())
	require.True(t, rounds[0].IsFirst())
	require.False(t, rounds[1].IsFirst())

	// More relationships than nodes yields rounds with an empty node range
	rounds = limiter.Rounds(5, 31)
	require.Len(t, rounds, 4)
	require.True(t, rounds[3].Nodes.IsEmpty())
	require.Equal(t, checker.NewIDRange(30, 31), rounds[3].Relationships)

	// An empty store still gets one round
	require.Len(t, limiter.Rounds(0, 0), 1)

	// A budget below one entity still makes progress
	require.Equal(t, int64(1), checker.NewEntityBasedMemoryLimiter(size.Size(1), bytesPerEntity).EntitiesPerRound())
}
