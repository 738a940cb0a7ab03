package size

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

const (
	iecUnitFactor = 1024

	Bytes    Size = 1
	Kibibyte      = Bytes * iecUnitFactor
	Mebibyte      = Kibibyte * iecUnitFactor
	Gibibyte      = Mebibyte * iecUnitFactor
	Tebibyte      = Gibibyte * iecUnitFactor
	Pebibyte      = Tebibyte * iecUnitFactor
)

type Size uint64

// Parse reads a human readable size such as "512MiB", "2 GB" or "1048576".
func Parse(value string) (Size, error) {
	parsed, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", value, err)
	}

	return Size(parsed), nil
}

func (s Size) Bytes() uint64 {
	return uint64(s)
}

func (s Size) Kibibytes() float64 {
	return float64(s) / float64(Kibibyte)
}

func (s Size) Mebibytes() float64 {
	return float64(s) / float64(Mebibyte)
}

func (s Size) Gibibytes() float64 {
	return float64(s) / float64(Gibibyte)
}

func (s Size) String() string {
	return humanize.IBytes(uint64(s))
}

// Mul returns the size of count items of this size.
func (s Size) Mul(count int64) Size {
	if count <= 0 {
		return 0
	}

	return s * Size(count)
}
