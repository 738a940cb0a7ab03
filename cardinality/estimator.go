package cardinality

import (
	"encoding/binary"
	"sync"

	"github.com/axiomhq/hyperloglog"
)

var (
	size8BufferPool = &sync.Pool{
		New: func() any {
			// Return a new buffer the size of a single uint64 in bytes
			return make([]byte, 8)
		},
	}
)

type hyperLogLogEstimator struct {
	sketch *hyperloglog.Sketch
}

// NewEstimator returns a HyperLogLog backed estimator.
func NewEstimator() Estimator {
	return &hyperLogLogEstimator{
		sketch: hyperloglog.NewNoSparse(),
	}
}

func (s *hyperLogLogEstimator) Add(values ...uint64) {
	buffer := size8BufferPool.Get()
	byteBuffer := buffer.([]byte)
	defer size8BufferPool.Put(buffer)

	for _, value := range values {
		binary.LittleEndian.PutUint64(byteBuffer, value)
		s.sketch.Insert(byteBuffer)
	}
}

func (s *hyperLogLogEstimator) Merge(other Estimator) {
	if typed, ok := other.(*hyperLogLogEstimator); ok {
		// Sketches built by NewEstimator always share a precision
		_ = s.sketch.Merge(typed.sketch)
	}
}

func (s *hyperLogLogEstimator) Clear() {
	s.sketch = hyperloglog.NewNoSparse()
}

func (s *hyperLogLogEstimator) Cardinality() uint64 {
	return s.sketch.Estimate()
}

func (s *hyperLogLogEstimator) Clone() Estimator {
	return &hyperLogLogEstimator{
		sketch: s.sketch.Clone(),
	}
}
