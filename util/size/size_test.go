package size_test

import (
	"testing"

	"github.com/specterops/recordcheck/util/size"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	parsed, err := size.Parse("512MiB")
	require.NoError(t, err)
	require.Equal(t, 512*size.Mebibyte, parsed)

	parsed, err = size.Parse("2 GiB")
	require.NoError(t, err)
	require.Equal(t, 2*size.Gibibyte, parsed)

	parsed, err = size.Parse("4096")
	require.NoError(t, err)
	require.Equal(t, 4*size.Kibibyte, parsed)

	_, err = size.Parse("lots")
	require.Error(t, err)
}

func TestSize_String(t *testing.T) {
	require.Equal(t, "1.0 KiB", size.Kibibyte.String())
	require.Equal(t, float64(2), (2 * size.Mebibyte).Mebibytes())
	require.Equal(t, 24*size.Bytes, (8 * size.Bytes).Mul(3))
	require.Equal(t, size.Size(0), size.Kibibyte.Mul(-1))
}
