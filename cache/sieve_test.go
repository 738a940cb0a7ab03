package cache_test

import (
	"testing"

	"github.com/specterops/recordcheck/cache"
	"github.com/stretchr/testify/require"
)

type recordKey struct {
	store uint8
	id    int64
}

func TestSieve_PutGet(t *testing.T) {
	var (
		sieve    = cache.NewSieve[recordKey, []byte](10)
		key      = recordKey{store: 1, id: 42}
		expected = []byte{1, 2, 3}
	)

	sieve.Put(key, expected)
	fetched, exists := sieve.Get(key)

	require.True(t, exists)
	require.Equal(t, expected, fetched)

	_, exists = sieve.Get(recordKey{store: 2, id: 42})
	require.False(t, exists)

	stats := sieve.Stats()
	require.Equal(t, int64(1), stats.Hits())
	require.Equal(t, int64(1), stats.Misses())
	require.Equal(t, 0.5, stats.HitRatio())
}

func TestSieve_UpdateAndDelete(t *testing.T) {
	sieve := cache.NewSieve[int64, string](5)

	sieve.Put(1, "a")
	sieve.Put(1, "b")

	fetched, exists := sieve.Get(1)
	require.True(t, exists)
	require.Equal(t, "b", fetched)
	require.Equal(t, int64(1), sieve.Stats().Size())

	sieve.Delete(1)
	_, exists = sieve.Get(1)
	require.False(t, exists)
	require.Equal(t, int64(0), sieve.Stats().Size())
}

func TestSieve_EvictRespectsVisitedFlag(t *testing.T) {
	sieve := cache.NewSieve[int64, string](3)

	sieve.Put(1, "one")
	sieve.Put(2, "two")
	sieve.Put(3, "three")

	// Reading the oldest entry gives it a second chance
	_, exists := sieve.Get(1)
	require.True(t, exists)

	sieve.Put(4, "four")

	_, exists = sieve.Get(2)
	require.False(t, exists)

	for _, key := range []int64{1, 3, 4} {
		_, exists := sieve.Get(key)
		require.True(t, exists)
	}

	require.Equal(t, int64(3), sieve.Stats().Size())
}

func TestSieve_InvalidCapacity(t *testing.T) {
	sieve := cache.NewSieve[int64, int64](0)

	sieve.Put(1, 1)
	sieve.Put(2, 2)

	_, exists := sieve.Get(1)
	require.False(t, exists)

	fetched, exists := sieve.Get(2)
	require.True(t, exists)
	require.Equal(t, int64(2), fetched)
}
