package checker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const progressSteps = 10

// ProgressMonitor logs the progress of a phase at every tenth of its total work.
type ProgressMonitor struct {
	name     string
	total    int64
	started  time.Time
	done     atomic.Int64
	lastStep atomic.Int64
}

func NewProgressMonitor(name string, total int64) *ProgressMonitor {
	return &ProgressMonitor{
		name:    name,
		total:   max(1, total),
		started: time.Now(),
	}
}

// Add records completed work. Safe for concurrent use.
func (s *ProgressMonitor) Add(ctx context.Context, amount int64) {
	var (
		done = s.done.Add(amount)
		step = min(progressSteps, done*progressSteps/s.total)
	)

	for {
		lastStep := s.lastStep.Load()

		if step <= lastStep {
			return
		}

		if s.lastStep.CompareAndSwap(lastStep, step) {
			slog.InfoContext(ctx, "Consistency check progress",
				slog.String("phase", s.name),
				slog.Int64("percent", step*100/progressSteps),
				slog.Duration("elapsed", time.Since(s.started)))
			return
		}
	}
}

func (s *ProgressMonitor) Done() int64 {
	return s.done.Load()
}
