// Package checker implements an offline consistency check over the record stores and indexes of a graph store.
// A check never modifies the store; every defect it finds is reported as an inconsistency or warning.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/specterops/recordcheck/index"
	"github.com/specterops/recordcheck/report"
	"github.com/specterops/recordcheck/store"
	"github.com/specterops/recordcheck/util"
	"github.com/specterops/recordcheck/util/size"
)

const DefaultMemoryBudget = 256 * size.Mebibyte

type Options struct {
	Workers       int
	ChunkSize     int64
	MemoryBudget  size.Size
	FailurePolicy FailurePolicy
	Flags         Flags

	// SmallIndexThreshold is the estimated entity count at or below which a value index is read as a single
	// partition. Zero reads every non-empty index with one partition per worker.
	SmallIndexThreshold uint64
}

func DefaultOptions() Options {
	return Options{
		ChunkSize:           DefaultChunkSize,
		MemoryBudget:        DefaultMemoryBudget,
		FailurePolicy:       AbortOnFailure,
		Flags:               DefaultFlags(),
		SmallIndexThreshold: DefaultSmallIndexThreshold,
	}
}

// RecordStorageConsistencyChecker runs full consistency checks.
type RecordStorageConsistencyChecker struct {
	stores  *store.Stores
	indexes index.Accessor
	options Options
}

func New(stores *store.Stores, indexes index.Accessor, options Options) *RecordStorageConsistencyChecker {
	if options.MemoryBudget == 0 {
		options.MemoryBudget = DefaultMemoryBudget
	}

	return &RecordStorageConsistencyChecker{
		stores:  stores,
		indexes: indexes,
		options: options,
	}
}

// Check runs a full check and returns its summary. Findings are also written to every sink. The returned error is
// non-nil only for run level failures: store access errors, worker panics, cancellation and sink failures. A
// summary with inconsistencies is not an error.
func (s *RecordStorageConsistencyChecker) Check(ctx context.Context, sinks ...report.Sink) (*report.Summary, error) {
	collector := report.NewCollector(ctx, sinks...)

	checkErr := s.CheckWith(ctx, collector)
	if err := collector.Close(); err != nil {
		checkErr = errors.Join(checkErr, fmt.Errorf("writing findings: %w", err))
	}

	summary := collector.Summary()

	slog.InfoContext(ctx, "Consistency check finished",
		slog.Bool("consistent", summary.IsConsistent()),
		slog.Int64("inconsistencies", summary.TotalInconsistencyCount()),
		slog.Int64("warnings", summary.TotalWarningCount()))

	return summary, checkErr
}

// CheckWith runs a full check and hands every finding to the reporter.
func (s *RecordStorageConsistencyChecker) CheckWith(ctx context.Context, reporter report.Reporter) error {
	defer util.SLogMeasureFunction(ctx, "RecordStorageConsistencyChecker.Check")()

	var (
		flags        = s.options.Flags
		execution    = NewParallelExecution(s.options.Workers, s.options.ChunkSize, s.options.FailurePolicy)
		checkContext = NewContext(s.stores, s.indexes, execution, reporter, flags)
	)

	checkContext.MemoryBudget = s.options.MemoryBudget
	checkContext.SmallIndexThreshold = s.options.SmallIndexThreshold

	if err := checkContext.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing consistency check: %w", err)
	}

	if err := NewSchemaChecker(checkContext).Check(ctx); err != nil {
		return fmt.Errorf("checking schema: %w", err)
	}

	if flags.CheckGraph {
		if err := NewTokenChecker(checkContext).Check(ctx); err != nil {
			return fmt.Errorf("checking tokens: %w", err)
		}

		if err := s.checkGraph(ctx, checkContext); err != nil {
			return err
		}
	}

	if flags.CheckIndexStructure {
		if err := NewIndexChecker(checkContext).Check(ctx); err != nil {
			return fmt.Errorf("checking indexes: %w", err)
		}
	}

	if flags.CheckGraph && flags.CheckCounts {
		if err := NewCountsChecker(checkContext).Check(ctx); err != nil {
			return fmt.Errorf("checking counts: %w", err)
		}
	}

	return nil
}

func (s *RecordStorageConsistencyChecker) checkGraph(ctx context.Context, checkContext *Context) error {
	var (
		nodeChecker         = NewNodeChecker(checkContext)
		groupChecker        = NewRelationshipGroupChecker(checkContext)
		relationshipChecker = NewRelationshipChecker(checkContext)
		chainChecker        = NewRelationshipChainChecker(checkContext)
		rounds              = checkContext.Limiter.Rounds(s.stores.Nodes.HighID(), s.stores.Relationships.HighID())
	)

	for _, round := range rounds {
		slog.InfoContext(ctx, "Starting consistency check round",
			slog.Int("round", round.Index+1),
			slog.Int("rounds", len(rounds)),
			slog.String("nodes", round.Nodes.String()),
			slog.String("relationships", round.Relationships.String()))

		if err := checkContext.Cache.Prepare(round.Nodes); err != nil {
			return err
		}

		if err := nodeChecker.Check(ctx, round); err != nil {
			return fmt.Errorf("checking nodes in %s: %w", round, err)
		}

		if err := groupChecker.Check(ctx, round); err != nil {
			return fmt.Errorf("checking relationship groups in %s: %w", round, err)
		}

		if err := relationshipChecker.Check(ctx, round); err != nil {
			return fmt.Errorf("checking relationships in %s: %w", round, err)
		}

		if err := chainChecker.Check(ctx, round); err != nil {
			return fmt.Errorf("checking relationship chains in %s: %w", round, err)
		}
	}

	return nil
}
