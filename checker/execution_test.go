package checker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/specterops/recordcheck/cardinality"
	"github.com/specterops/recordcheck/checker"
	"github.com/stretchr/testify/require"
)

func TestIDRange(t *testing.T) {
	var (
		full  = checker.NewIDRange(0, 10)
		empty = checker.NewIDRange(5, 2)
	)

	require.Equal(t, int64(10), full.Size())
	require.True(t, empty.IsEmpty())
	require.Equal(t, int64(0), empty.Size())
	require.True(t, full.Contains(0))
	require.False(t, full.Contains(10))
	require.Equal(t, checker.NewIDRange(3, 10), full.Intersect(checker.NewIDRange(3, 20)))
	require.True(t, full.Intersect(checker.NewIDRange(10, 20)).IsEmpty())
	require.Nil(t, empty.Split(3))

	chunks := full.Split(4)
	require.Equal(t, []checker.IDRange{
		checker.NewIDRange(0, 4),
		checker.NewIDRange(4, 8),
		checker.NewIDRange(8, 10),
	}, chunks)

	require.Equal(t, []checker.IDRange{full}, full.Split(0))
	require.Equal(t, "[0, 10)", full.String())
}

func TestParallelExecution_RunRangeVisitsEveryIDOnce(t *testing.T) {
	var (
		execution = checker.NewParallelExecution(8, 7, checker.AbortOnFailure)
		seen      = cardinality.ThreadSafeIDSet(cardinality.NewIDSet())
		visits    atomic.Int64
		repeats   atomic.Int64
	)

	require.NoError(t, execution.RunRange(context.Background(), "visit", checker.NewIDRange(3, 1003), func(ctx context.Context, idRange checker.IDRange) error {
		for id := idRange.From; id < idRange.To; id++ {
			if !seen.CheckedAdd(id) {
				repeats.Add(1)
			}

			visits.Add(1)
		}

		return nil
	}))

	require.Equal(t, int64(1000), visits.Load())
	require.Zero(t, repeats.Load())
	require.Equal(t, uint64(1000), seen.Cardinality())
	require.False(t, seen.Contains(2))
	require.False(t, seen.Contains(1003))
}

func TestParallelExecution_EmptyRange(t *testing.T) {
	var (
		execution = checker.NewParallelExecution(4, 10, checker.AbortOnFailure)
		called    = false
	)

	require.NoError(t, execution.RunRange(context.Background(), "empty", checker.NewIDRange(0, 0), func(context.Context, checker.IDRange) error {
		called = true
		return nil
	}))

	require.False(t, called)
}

func TestParallelExecution_AbortOnFailure(t *testing.T) {
	var (
		execution = checker.NewParallelExecution(1, 1, checker.AbortOnFailure)
		failure   = errors.New("broken")
		ran       atomic.Int64
		tasks     []checker.Task
	)

	for idx := range 10 {
		tasks = append(tasks, func(context.Context) error {
			ran.Add(1)

			if idx == 2 {
				return failure
			}

			return nil
		})
	}

	err := execution.Run(context.Background(), "abort", tasks...)
	require.ErrorIs(t, err, failure)
	require.Equal(t, int64(3), ran.Load())
}

func TestParallelExecution_LogAndContinue(t *testing.T) {
	var (
		execution = checker.NewParallelExecution(3, 1, checker.LogAndContinue)
		first     = errors.New("first")
		second    = errors.New("second")
		ran       atomic.Int64
	)

	err := execution.Run(context.Background(), "continue",
		func(context.Context) error { ran.Add(1); return first },
		func(context.Context) error { ran.Add(1); return nil },
		func(context.Context) error { ran.Add(1); return second },
		func(context.Context) error { ran.Add(1); return nil },
	)

	require.ErrorIs(t, err, first)
	require.ErrorIs(t, err, second)
	require.Equal(t, int64(4), ran.Load())
}

func TestParallelExecution_RecoversPanics(t *testing.T) {
	execution := checker.NewParallelExecution(2, 1, checker.AbortOnFailure)

	err := execution.Run(context.Background(), "panic", func(context.Context) error {
		panic("worker exploded")
	})

	var panicErr checker.PanicError
	require.ErrorAs(t, err, &panicErr)
	require.Equal(t, "worker exploded", panicErr.Recovered())
	require.NotEmpty(t, panicErr.Stack())
}

func TestParallelExecution_Cancellation(t *testing.T) {
	var (
		execution   = checker.NewParallelExecution(2, 1, checker.AbortOnFailure)
		ctx, cancel = context.WithCancel(context.Background())
		started     sync.WaitGroup
	)

	started.Add(1)

	err := execution.Run(ctx, "cancel", func(ctx context.Context) error {
		started.Done()
		cancel()

		<-ctx.Done()
		return ctx.Err()
	}, func(ctx context.Context) error {
		started.Wait()
		<-ctx.Done()
		return ctx.Err()
	})

	require.ErrorIs(t, err, context.Canceled)
}

func TestParallelExecution_Defaults(t *testing.T) {
	execution := checker.NewParallelExecution(0, 0, checker.AbortOnFailure)

	require.GreaterOrEqual(t, execution.NumWorkers(), 1)
	require.Equal(t, checker.DefaultChunkSize, execution.ChunkSize())
	require.Equal(t, "abort", execution.Policy().String())
}
