package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/specterops/recordcheck/record"
)

type summaryKey struct {
	recordType record.Type
	kind       Kind
}

// Summary aggregates counts of every reported inconsistency. It is safe for concurrent use.
type Summary struct {
	inconsistencies atomic.Int64
	warnings        atomic.Int64
	counts          map[summaryKey]int64
	lock            sync.RWMutex
}

func NewSummary() *Summary {
	return &Summary{
		counts: map[summaryKey]int64{},
	}
}

func (s *Summary) Add(inconsistency Inconsistency) {
	if inconsistency.IsWarning() {
		s.warnings.Add(1)
	} else {
		s.inconsistencies.Add(1)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.counts[summaryKey{recordType: inconsistency.Type, kind: inconsistency.Kind}]++
}

func (s *Summary) TotalInconsistencyCount() int64 {
	return s.inconsistencies.Load()
}

func (s *Summary) TotalWarningCount() int64 {
	return s.warnings.Load()
}

func (s *Summary) IsConsistent() bool {
	return s.TotalInconsistencyCount() == 0
}

// Count returns how many times the kind was reported against records of the given type.
func (s *Summary) Count(recordType record.Type, kind Kind) int64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.counts[summaryKey{recordType: recordType, kind: kind}]
}

// CountOf returns how many times the kind was reported against records of any type.
func (s *Summary) CountOf(kind Kind) int64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var total int64

	for key, count := range s.counts {
		if key.kind == kind {
			total += count
		}
	}

	return total
}

// TypeCount returns the number of inconsistencies, warnings excluded, reported against records of the type.
func (s *Summary) TypeCount(recordType record.Type) int64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var total int64

	for key, count := range s.counts {
		if key.recordType == recordType && !key.kind.IsWarning() {
			total += count
		}
	}

	return total
}

type MethodCount struct {
	Method  string `json:"method" yaml:"method"`
	Count   int64  `json:"count" yaml:"count"`
	Warning bool   `json:"warning,omitempty" yaml:"warning,omitempty"`
}

type TypeCount struct {
	RecordType      string        `json:"record_type" yaml:"record_type"`
	Inconsistencies int64         `json:"inconsistencies" yaml:"inconsistencies"`
	Warnings        int64         `json:"warnings" yaml:"warnings"`
	Methods         []MethodCount `json:"methods" yaml:"methods"`
}

// Snapshot is the serializable form of a summary.
type Snapshot struct {
	Consistent      bool        `json:"consistent" yaml:"consistent"`
	Inconsistencies int64       `json:"inconsistencies" yaml:"inconsistencies"`
	Warnings        int64       `json:"warnings" yaml:"warnings"`
	RecordTypes     []TypeCount `json:"record_types,omitempty" yaml:"record_types,omitempty"`
	ReportFile      string      `json:"report_file,omitempty" yaml:"report_file,omitempty"`
}

func (s *Summary) Snapshot() Snapshot {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var (
		byType   = map[record.Type]*TypeCount{}
		snapshot = Snapshot{
			Consistent:      s.IsConsistent(),
			Inconsistencies: s.TotalInconsistencyCount(),
			Warnings:        s.TotalWarningCount(),
		}
	)

	for key, count := range s.counts {
		typeCount, found := byType[key.recordType]

		if !found {
			typeCount = &TypeCount{
				RecordType: key.recordType.String(),
			}

			byType[key.recordType] = typeCount
		}

		if key.kind.IsWarning() {
			typeCount.Warnings += count
		} else {
			typeCount.Inconsistencies += count
		}

		typeCount.Methods = append(typeCount.Methods, MethodCount{
			Method:  key.kind.Method(),
			Count:   count,
			Warning: key.kind.IsWarning(),
		})
	}

	for _, recordType := range record.Types() {
		if typeCount, found := byType[recordType]; found {
			slices.SortFunc(typeCount.Methods, func(a, b MethodCount) int {
				return cmp.Compare(a.Method, b.Method)
			})

			snapshot.RecordTypes = append(snapshot.RecordTypes, *typeCount)
		}
	}

	return snapshot
}

func (s *Summary) String() string {
	var (
		snapshot = s.Snapshot()
		builder  = strings.Builder{}
	)

	fmt.Fprintf(&builder, "Inconsistencies: %d, warnings: %d", snapshot.Inconsistencies, snapshot.Warnings)

	for _, typeCount := range snapshot.RecordTypes {
		fmt.Fprintf(&builder, "\n\t%s: %d inconsistencies, %d warnings", typeCount.RecordType, typeCount.Inconsistencies, typeCount.Warnings)

		for _, methodCount := range typeCount.Methods {
			fmt.Fprintf(&builder, "\n\t\t%s: %d", methodCount.Method, methodCount.Count)
		}
	}

	return builder.String()
}
