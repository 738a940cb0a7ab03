package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/gammazero/deque"
	"github.com/specterops/recordcheck/util"
	"golang.org/x/sync/errgroup"
)

// FailurePolicy decides what happens to the remaining work of a phase when one of its tasks fails.
type FailurePolicy uint8

const (
	// AbortOnFailure cancels the remaining tasks and returns the first failure once every worker has stopped.
	AbortOnFailure FailurePolicy = iota

	// LogAndContinue logs every failure, runs every task and returns all failures joined.
	LogAndContinue
)

func (s FailurePolicy) String() string {
	switch s {
	case AbortOnFailure:
		return "abort"
	case LogAndContinue:
		return "log-and-continue"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", uint8(s))
	}
}

const DefaultChunkSize int64 = 1000

// PanicError is a recovered worker panic along with the stack of the panicking goroutine.
type PanicError struct {
	recovered any
	stack     string
}

func (s PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n%s", s.recovered, s.stack)
}

func (s PanicError) Unwrap() error {
	if err, ok := s.recovered.(error); ok {
		return err
	}

	return nil
}

func (s PanicError) Recovered() any {
	return s.recovered
}

func (s PanicError) Stack() string {
	return s.stack
}

type Task func(ctx context.Context) error

type RangeTask func(ctx context.Context, idRange IDRange) error

// ParallelExecution runs the tasks of a phase on a fixed number of workers and joins them before returning.
type ParallelExecution struct {
	numWorkers int
	chunkSize  int64
	policy     FailurePolicy
}

// NewParallelExecution creates an executor. A worker count below one selects the number of CPUs and a chunk size
// below one selects DefaultChunkSize.
func NewParallelExecution(numWorkers int, chunkSize int64, policy FailurePolicy) *ParallelExecution {
	if numWorkers < 1 {
		numWorkers = runtime.NumCPU()
	}

	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}

	return &ParallelExecution{
		numWorkers: numWorkers,
		chunkSize:  chunkSize,
		policy:     policy,
	}
}

func (s *ParallelExecution) NumWorkers() int {
	return s.numWorkers
}

func (s *ParallelExecution) ChunkSize() int64 {
	return s.chunkSize
}

func (s *ParallelExecution) Policy() FailurePolicy {
	return s.policy
}

func runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = PanicError{
				recovered: recovered,
				stack:     string(debug.Stack()),
			}
		}
	}()

	return task(ctx)
}

// Run executes every task exactly once unless the phase is aborted.
func (s *ParallelExecution) Run(ctx context.Context, name string, tasks ...Task) error {
	if len(tasks) == 0 {
		return nil
	}

	var (
		queue     deque.Deque[Task]
		queueLock sync.Mutex
		failures  = util.NewErrorCollector()
	)

	for _, task := range tasks {
		queue.PushBack(task)
	}

	nextTask := func() (Task, bool) {
		queueLock.Lock()
		defer queueLock.Unlock()

		if queue.Len() == 0 {
			return nil, false
		}

		return queue.PopFront(), true
	}

	group, groupCtx := errgroup.WithContext(ctx)

	for range min(s.numWorkers, len(tasks)) {
		group.Go(func() error {
			for {
				if err := groupCtx.Err(); err != nil {
					if s.policy == AbortOnFailure {
						return err
					}

					return nil
				}

				task, ok := nextTask()
				if !ok {
					return nil
				}

				if err := runTask(groupCtx, task); err != nil {
					if s.policy == AbortOnFailure {
						return fmt.Errorf("%s: %w", name, err)
					}

					util.SLogError(groupCtx, "Consistency check task failed", err, slog.String("phase", name))
					failures.Add(fmt.Errorf("%s: %w", name, err))
				}
			}
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return errors.Join(err, failures.Combined())
	}

	return failures.Combined()
}

// RunRange splits the id range into chunks and runs the task over each of them. No id is handed to more than one
// task invocation.
func (s *ParallelExecution) RunRange(ctx context.Context, name string, idRange IDRange, task RangeTask) error {
	var (
		chunks = idRange.Split(s.chunkSize)
		tasks  = make([]Task, len(chunks))
	)

	for idx, chunk := range chunks {
		tasks[idx] = func(ctx context.Context) error {
			return task(ctx, chunk)
		}
	}

	return s.Run(ctx, name, tasks...)
}
