package cardinality_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/specterops/recordcheck/cardinality"
	"github.com/stretchr/testify/require"
)

func collect(set cardinality.IDSet, from, to int64) []int64 {
	var ids []int64

	set.EachInRange(from, to, func(id int64) bool {
		ids = append(ids, id)
		return true
	})

	return ids
}

func TestIDSet_NegativeIDs(t *testing.T) {
	set := cardinality.NewIDSet()

	set.Add(-1, 3)
	require.False(t, set.CheckedAdd(-5))
	require.False(t, set.Contains(-1))
	require.True(t, set.Contains(3))
	require.Equal(t, uint64(1), set.Cardinality())
}

func TestIDSet_EachInRange(t *testing.T) {
	set := cardinality.NewIDSetWith(1, 4, 5, 9, 100)

	require.Equal(t, []int64{4, 5, 9}, collect(set, 2, 10))
	require.Equal(t, []int64{1, 4}, collect(set, -10, 5))
	require.Nil(t, collect(set, 10, 10))
	require.Nil(t, collect(set, 101, 1000))
}

func TestIDSet_MarshalRoundTrip(t *testing.T) {
	var (
		set      = cardinality.NewIDSetWith(2, 3, 5, 7, 1<<40)
		restored = cardinality.NewIDSet()
	)

	encoded, err := set.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, restored.UnmarshalBinary(encoded))
	require.Equal(t, collect(set, 0, 1<<41), collect(restored, 0, 1<<41))
}

func TestThreadSafeIDSet_CheckedAdd(t *testing.T) {
	var (
		set     = cardinality.ThreadSafeIDSet(cardinality.NewIDSet())
		wg      = &sync.WaitGroup{}
		added   = &atomic.Int64{}
		workers = 8
	)

	for worker := 0; worker < workers; worker++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for id := int64(0); id < 1000; id++ {
				if set.CheckedAdd(id) {
					added.Add(1)
				}
			}
		}()
	}

	wg.Wait()
	require.Equal(t, int64(1000), added.Load())
	require.Equal(t, uint64(1000), set.Cardinality())
}

func TestEstimator(t *testing.T) {
	var (
		estimator = cardinality.NewEstimator()
		other     = cardinality.NewEstimator()
	)

	for value := uint64(0); value < 10_000; value++ {
		estimator.Add(value)
		other.Add(value + 5_000)
	}

	require.InDelta(t, 10_000, float64(estimator.Cardinality()), 500)

	estimator.Merge(other)
	require.InDelta(t, 15_000, float64(estimator.Cardinality()), 750)

	estimator.Clear()
	require.Equal(t, uint64(0), estimator.Cardinality())
}
