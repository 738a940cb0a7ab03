package checker

import "fmt"

// IDRange is the half open range of record ids [From, To). An empty range is legal and is never an error.
type IDRange struct {
	From int64
	To   int64
}

func NewIDRange(from, to int64) IDRange {
	if to < from {
		to = from
	}

	return IDRange{
		From: from,
		To:   to,
	}
}

func (s IDRange) Size() int64 {
	return max(0, s.To-s.From)
}

func (s IDRange) IsEmpty() bool {
	return s.To <= s.From
}

func (s IDRange) Contains(id int64) bool {
	return id >= s.From && id < s.To
}

// Intersect returns the ids present in both ranges. Disjoint ranges yield an empty range.
func (s IDRange) Intersect(other IDRange) IDRange {
	return NewIDRange(max(s.From, other.From), min(s.To, other.To))
}

// Split partitions the range into consecutive chunks of at most chunkSize ids. An empty range has no chunks.
func (s IDRange) Split(chunkSize int64) []IDRange {
	if s.IsEmpty() {
		return nil
	}

	if chunkSize <= 0 {
		chunkSize = s.Size()
	}

	chunks := make([]IDRange, 0, (s.Size()+chunkSize-1)/chunkSize)

	for from := s.From; from < s.To; from += chunkSize {
		chunks = append(chunks, NewIDRange(from, min(from+chunkSize, s.To)))
	}

	return chunks
}

func (s IDRange) String() string {
	return fmt.Sprintf("[%d, %d)", s.From, s.To)
}
