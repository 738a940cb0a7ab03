package checker

import (
	"fmt"

	"github.com/specterops/recordcheck/cardinality"
	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/report"
	"github.com/specterops/recordcheck/store"
)

// chainOwner names the record a dynamic chain belongs to. Defects of the chain head are reported against the
// owner; defects further down the chain are reported against the dynamic records themselves.
type chainOwner struct {
	recordType record.Type
	subject    fmt.Stringer
	notInUse   report.Kind

	// cycle is reported against the owner when set, otherwise ChainCycle is reported against the dynamic record
	// closing the cycle
	cycle report.Kind
}

// DynamicChain is the payload read from a dynamic chain. Complete is false when the chain was cut short by a
// defect, in which case Data holds the blocks read before it.
type DynamicChain struct {
	Data     []byte
	Blocks   int
	Complete bool
}

func reportTo(reporter report.Reporter, recordType record.Type, kind report.Kind, subject fmt.Stringer, related ...fmt.Stringer) {
	if reporter != nil {
		reporter.Report(report.New(recordType, kind, subject, related...))
	}
}

// followDynamicChain walks a dynamic chain from its first block. Loads use CHECK mode so that an undecodable
// block is reported rather than read as empty. A nil reporter walks the chain silently. A block size of zero
// disables the checks that depend on it.
func followDynamicChain(dynamics *store.Store[record.Dynamic], blockSize int, firstID int64, owner chainOwner, reporter report.Reporter) (DynamicChain, error) {
	var (
		chain    DynamicChain
		dataType = dynamics.Type()
		visited  = cardinality.NewIDSet()
	)

	current, err := dynamics.Record(firstID, store.Check)
	if err != nil {
		return chain, err
	}

	if current.Corrupt {
		reportTo(reporter, dataType, report.MalformedRecord, current)
		return chain, nil
	}

	if !current.InUse {
		reportTo(reporter, owner.recordType, owner.notInUse, owner.subject, current)
		return chain, nil
	}

	if current.Length == 0 {
		reportTo(reporter, dataType, report.EmptyBlock, current)
	}

	for {
		visited.Add(current.ID)
		chain.Data = append(chain.Data, current.Data...)
		chain.Blocks++

		if blockSize > 0 && current.Length > blockSize {
			reportTo(reporter, dataType, report.InvalidLength, current)
		}

		if current.Next == record.NullReference {
			chain.Complete = true
			return chain, nil
		}

		if current.Next == current.ID {
			reportTo(reporter, dataType, report.SelfReferentialNext, current)
			return chain, nil
		}

		if blockSize > 0 && current.Length < blockSize {
			reportTo(reporter, dataType, report.RecordNotFullReferencesNext, current)
		}

		if visited.Contains(current.Next) {
			if owner.cycle != report.KindNone {
				reportTo(reporter, owner.recordType, owner.cycle, owner.subject, current)
			} else {
				reportTo(reporter, dataType, report.ChainCycle, current)
			}

			return chain, nil
		}

		next, err := dynamics.Record(current.Next, store.Check)
		if err != nil {
			return chain, err
		}

		if next.Corrupt {
			reportTo(reporter, dataType, report.MalformedRecord, next)
			return chain, nil
		}

		if !next.InUse {
			reportTo(reporter, dataType, report.NextNotInUse, current, next)
			return chain, nil
		}

		if next.Length == 0 {
			reportTo(reporter, dataType, report.EmptyNextBlock, current, next)
		}

		current = next
	}
}

// readDynamicSilently reads a chain without reporting defects. The partial payload is returned for broken chains.
func readDynamicSilently(dynamics *store.Store[record.Dynamic], firstID int64) ([]byte, error) {
	chain, err := followDynamicChain(dynamics, 0, firstID, chainOwner{}, nil)
	return chain.Data, err
}
