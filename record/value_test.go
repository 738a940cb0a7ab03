package record_test

import (
	"testing"

	"github.com/specterops/recordcheck/record"
	"github.com/stretchr/testify/require"
)

func TestValue_Compare(t *testing.T) {
	require.Equal(t, 0, record.Int(4).Compare(record.Int(4)))
	require.Equal(t, -1, record.Int(3).Compare(record.Int(4)))
	require.Equal(t, 1, record.String("b").Compare(record.String("a")))

	// Kinds order before content
	require.Equal(t, -1, record.Int(100).Compare(record.String("a")))
	require.Equal(t, -1, record.IntArray(1, 2).Compare(record.IntArray(1, 2, 3)))
	require.True(t, record.StringArray("a", "b").Equal(record.StringArray("a", "b")))
}

func TestDecodeArray(t *testing.T) {
	values := []record.Value{
		record.IntArray(1, -2, 3),
		record.FloatArray(1.5, 2.5),
		record.BoolArray(true, false),
		record.StringArray("alpha", "", "gamma"),
		record.IntArray(),
	}

	for _, value := range values {
		decoded, err := record.DecodeArray(value.AppendArray(nil))

		require.NoError(t, err)
		require.True(t, value.Equal(decoded), "%s != %s", value, decoded)
	}
}

func TestDecodeArray_Invalid(t *testing.T) {
	encoded := record.IntArray(1, 2, 3).AppendArray(nil)

	_, err := record.DecodeArray(encoded[:len(encoded)-3])
	require.ErrorIs(t, err, record.ErrInvalidArrayPayload)

	_, err = record.DecodeArray(append(encoded, 0))
	require.ErrorIs(t, err, record.ErrInvalidArrayPayload)

	_, err = record.DecodeArray([]byte{byte(record.IntValue), 0, 0, 0, 0})
	require.ErrorIs(t, err, record.ErrInvalidArrayPayload)
}

func TestHashTuple(t *testing.T) {
	var (
		first  = []record.Value{record.String("a"), record.Int(1)}
		second = []record.Value{record.String("a"), record.Int(1)}
		third  = []record.Value{record.String("a1")}
	)

	require.Equal(t, record.HashTuple(first), record.HashTuple(second))
	require.NotEqual(t, record.TupleKey(first), record.TupleKey(third))
	require.Equal(t, 0, record.CompareTuples(first, second))
}
