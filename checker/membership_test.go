package checker_test

import (
	"context"
	"math"
	"testing"

	"github.com/specterops/recordcheck/checker"
	"github.com/stretchr/testify/require"
)

func TestGroupMembership_FullIDRange(t *testing.T) {
	var (
		membership = checker.NewGroupMembership()
		largeNode  = int64(1) << 40
		largeType  = int32(1) << 25
	)

	membership.Add(largeNode, largeType)
	membership.Add(3, 1)

	require.True(t, membership.Contains(largeNode, largeType))
	require.True(t, membership.Contains(3, 1))

	// Pairs that share the low bits of a packed key stay distinct
	require.False(t, membership.Contains(largeNode, 0))
	require.False(t, membership.Contains(0, largeType))
	require.False(t, membership.Contains(largeNode>>24, largeType))
	require.False(t, membership.Contains(3, 1|largeType))
	require.False(t, membership.Contains(math.MaxInt64, largeType))

	membership.Clear()
	require.False(t, membership.Contains(3, 1))
}

func TestGroupMembership_ConcurrentAdd(t *testing.T) {
	var (
		membership = checker.NewGroupMembership()
		execution  = checker.NewParallelExecution(8, 16, checker.AbortOnFailure)
		idRange    = checker.NewIDRange(0, 2_000)
	)

	require.NoError(t, execution.RunRange(context.Background(), "membership", idRange, func(ctx context.Context, chunk checker.IDRange) error {
		for id := chunk.From; id < chunk.To; id++ {
			membership.Add(id, int32(id%5))
		}

		return nil
	}))

	for id := idRange.From; id < idRange.To; id++ {
		require.True(t, membership.Contains(id, int32(id%5)))
		require.False(t, membership.Contains(id, int32(id%5)+1))
	}
}
