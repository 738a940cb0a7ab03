package checker

import (
	"fmt"

	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/report"
	"github.com/specterops/recordcheck/store"
)

type checkedRecord interface {
	record.Record
	fmt.Stringer
}

// loadForCheck loads a record in CHECK mode. A record whose bytes did not decode is reported as malformed and
// returned with Corrupt set. Only backend failures are returned as errors.
func loadForCheck[T checkedRecord](records *store.Store[T], id int64, reporter report.Reporter) (T, error) {
	rec, err := records.Record(id, store.Check)
	if err != nil {
		return rec, err
	}

	if rec.IsCorrupt() {
		reportTo(reporter, records.Type(), report.MalformedRecord, rec)
	}

	return rec, nil
}

// loadForce loads a record in FORCE mode. Undecodable, missing and out of range records come back empty and not
// in use.
func loadForce[T record.Record](records *store.Store[T], id int64) (T, error) {
	return records.Record(id, store.Force)
}

// checkIDGenerator cross-checks the in-use flag of a record with the free ids of its store's id generator.
func checkIDGenerator[T checkedRecord](records *store.Store[T], rec T, reporter report.Reporter) {
	if rec.IsCorrupt() {
		return
	}

	isFree := records.IDGenerator().IsFree(rec.RecordID())

	if rec.IsInUse() && isFree {
		reportTo(reporter, records.Type(), report.IDIsFreed, rec)
	} else if !rec.IsInUse() && !isFree {
		reportTo(reporter, records.Type(), report.IDIsNotFreed, rec)
	}
}
