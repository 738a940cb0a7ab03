// Package cardinality provides id sets and cardinality estimators over record ids.
package cardinality

// IDSet is an exact set of non-negative record ids. Negative ids are never members; adding one is a no-op.
type IDSet interface {
	Add(ids ...int64)
	CheckedAdd(id int64) bool
	Remove(id int64)
	Contains(id int64) bool
	Clear()
	Cardinality() uint64

	// Each visits members in ascending order until the delegate returns false.
	Each(delegate func(id int64) bool)

	// EachInRange visits members in [from, to) in ascending order until the delegate returns false.
	EachInRange(from, to int64, delegate func(id int64) bool)

	Clone() IDSet
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// Estimator is a one-way cardinality provider: members cannot be enumerated back out.
type Estimator interface {
	Add(values ...uint64)
	Merge(other Estimator)
	Clear()
	Cardinality() uint64
	Clone() Estimator
}
