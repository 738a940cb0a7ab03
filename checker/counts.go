package checker

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/report"
	"github.com/specterops/recordcheck/store"
)

// localCounts is the per-chunk tally merged into CountsState once the chunk completes.
type localCounts map[store.CountsKey]int64

func (s localCounts) countNode(labels []int64, tokens *TokenSet) {
	s[store.NodeCountsKey(store.AnyToken)]++

	for idx, label := range labels {
		// Duplicates count once; they are reported by the node checker
		if tokens.InUse(label) && !slices.Contains(labels[:idx], label) {
			s[store.NodeCountsKey(int32(label))]++
		}
	}
}

func (s localCounts) countRelationship(relationshipType int32, tokens *TokenSet) {
	s[store.RelationshipCountsKey(store.AnyToken)]++

	if tokens.InUse(int64(relationshipType)) {
		s[store.RelationshipCountsKey(relationshipType)]++
	}
}

// CountsState accumulates the entity counts observed by the graph checkers.
type CountsState struct {
	lock   sync.Mutex
	counts map[store.CountsKey]int64
}

func NewCountsState() *CountsState {
	return &CountsState{
		counts: map[store.CountsKey]int64{},
	}
}

func (s *CountsState) merge(local localCounts) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for key, count := range local {
		s.counts[key] += count
	}
}

func (s *CountsState) Get(key store.CountsKey) int64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.counts[key]
}

func (s *CountsState) keys() []store.CountsKey {
	s.lock.Lock()
	defer s.lock.Unlock()

	keys := make([]store.CountsKey, 0, len(s.counts))

	for key := range s.counts {
		keys = append(keys, key)
	}

	return keys
}

type countsMismatch struct {
	key      store.CountsKey
	expected int64
	observed int64
}

func (s countsMismatch) String() string {
	return fmt.Sprintf("Counts[%s,stored=%d,observed=%d]", s.key, s.expected, s.observed)
}

// CountsChecker compares the counts store with the counts observed while checking nodes and relationships.
type CountsChecker struct {
	context *Context
}

func NewCountsChecker(checkContext *Context) *CountsChecker {
	return &CountsChecker{
		context: checkContext,
	}
}

func (s *CountsChecker) Check(ctx context.Context) error {
	var (
		stored = s.context.Stores.Counts
		keys   = append(stored.Keys(), s.context.Counts.keys()...)
	)

	slices.SortFunc(keys, store.CountsKey.Compare)

	for _, key := range slices.Compact(keys) {
		if err := ctx.Err(); err != nil {
			return err
		}

		mismatch := countsMismatch{
			key:      key,
			expected: stored.Get(key),
			observed: s.context.Counts.Get(key),
		}

		if mismatch.expected == mismatch.observed {
			continue
		}

		if key.Entity == record.EntityRelationship {
			s.context.reportf(record.TypeCounts, report.InconsistentRelationshipCount, mismatch)
		} else {
			s.context.reportf(record.TypeCounts, report.InconsistentNodeCount, mismatch)
		}
	}

	return nil
}
