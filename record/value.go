package record

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var (
	ErrInvalidArrayPayload = errors.New("invalid array payload")
)

type ValueKind uint8

const (
	NoValue ValueKind = iota
	BoolValue
	IntValue
	FloatValue
	StringValue
	BoolArrayValue
	IntArrayValue
	FloatArrayValue
	StringArrayValue
)

func (s ValueKind) IsValid() bool {
	return s >= BoolValue && s <= StringArrayValue
}

func (s ValueKind) IsArray() bool {
	return s >= BoolArrayValue && s <= StringArrayValue
}

func (s ValueKind) String() string {
	switch s {
	case NoValue:
		return "NO_VALUE"
	case BoolValue:
		return "BOOLEAN"
	case IntValue:
		return "INTEGER"
	case FloatValue:
		return "FLOAT"
	case StringValue:
		return "STRING"
	case BoolArrayValue:
		return "LIST<BOOLEAN>"
	case IntArrayValue:
		return "LIST<INTEGER>"
	case FloatArrayValue:
		return "LIST<FLOAT>"
	case StringArrayValue:
		return "LIST<STRING>"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(s))
	}
}

// Value is a property value. The zero value is NoValue.
type Value struct {
	kind    ValueKind
	boolean bool
	integer int64
	float   float64
	str     string
	bools   []bool
	ints    []int64
	floats  []float64
	strs    []string
}

func Bool(value bool) Value {
	return Value{kind: BoolValue, boolean: value}
}

func Int(value int64) Value {
	return Value{kind: IntValue, integer: value}
}

func Float(value float64) Value {
	return Value{kind: FloatValue, float: value}
}

func String(value string) Value {
	return Value{kind: StringValue, str: value}
}

func BoolArray(values ...bool) Value {
	return Value{kind: BoolArrayValue, bools: values}
}

func IntArray(values ...int64) Value {
	return Value{kind: IntArrayValue, ints: values}
}

func FloatArray(values ...float64) Value {
	return Value{kind: FloatArrayValue, floats: values}
}

func StringArray(values ...string) Value {
	return Value{kind: StringArrayValue, strs: values}
}

func (s Value) Kind() ValueKind {
	return s.kind
}

func (s Value) AsString() (string, bool) {
	return s.str, s.kind == StringValue
}

func (s Value) AsInt() (int64, bool) {
	return s.integer, s.kind == IntValue
}

func (s Value) AsBool() (bool, bool) {
	return s.boolean, s.kind == BoolValue
}

func (s Value) AsFloat() (float64, bool) {
	return s.float, s.kind == FloatValue
}

func (s Value) arrayLen() int {
	switch s.kind {
	case BoolArrayValue:
		return len(s.bools)
	case IntArrayValue:
		return len(s.ints)
	case FloatArrayValue:
		return len(s.floats)
	case StringArrayValue:
		return len(s.strs)
	default:
		return 0
	}
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// Compare orders values first by kind and then by content. Arrays order lexicographically.
func (s Value) Compare(other Value) int {
	if s.kind != other.kind {
		return cmp.Compare(s.kind, other.kind)
	}

	switch s.kind {
	case BoolValue:
		return compareBools(s.boolean, other.boolean)
	case IntValue:
		return cmp.Compare(s.integer, other.integer)
	case FloatValue:
		return cmp.Compare(s.float, other.float)
	case StringValue:
		return strings.Compare(s.str, other.str)
	case BoolArrayValue:
		return slices.CompareFunc(s.bools, other.bools, compareBools)
	case IntArrayValue:
		return slices.Compare(s.ints, other.ints)
	case FloatArrayValue:
		return slices.Compare(s.floats, other.floats)
	case StringArrayValue:
		return slices.Compare(s.strs, other.strs)
	default:
		return 0
	}
}

func (s Value) Equal(other Value) bool {
	return s.Compare(other) == 0
}

func (s Value) String() string {
	switch s.kind {
	case BoolValue:
		return fmt.Sprintf("%t", s.boolean)
	case IntValue:
		return fmt.Sprintf("%d", s.integer)
	case FloatValue:
		return fmt.Sprintf("%g", s.float)
	case StringValue:
		return fmt.Sprintf("%q", s.str)
	case BoolArrayValue:
		return fmt.Sprintf("%v", s.bools)
	case IntArrayValue:
		return fmt.Sprintf("%v", s.ints)
	case FloatArrayValue:
		return fmt.Sprintf("%v", s.floats)
	case StringArrayValue:
		return fmt.Sprintf("%q", s.strs)
	default:
		return "NO_VALUE"
	}
}

// AppendKey appends a canonical, self-delimiting encoding of the value to buffer.
func (s Value) AppendKey(buffer []byte) []byte {
	buffer = append(buffer, byte(s.kind))

	switch s.kind {
	case BoolValue, IntValue, FloatValue, StringValue:
		return s.appendScalar(buffer)
	case NoValue:
		return buffer
	default:
		return s.AppendArray(buffer[:len(buffer)-1])
	}
}

func (s Value) appendScalar(buffer []byte) []byte {
	switch s.kind {
	case BoolValue:
		if s.boolean {
			return append(buffer, 1)
		}

		return append(buffer, 0)

	case IntValue:
		return binary.BigEndian.AppendUint64(buffer, uint64(s.integer))

	case FloatValue:
		return binary.BigEndian.AppendUint64(buffer, math.Float64bits(s.float))

	default:
		buffer = binary.BigEndian.AppendUint32(buffer, uint32(len(s.str)))
		return append(buffer, s.str...)
	}
}

// AppendArray appends the array store payload for an array value: the kind, the element count and the
// elements.
func (s Value) AppendArray(buffer []byte) []byte {
	buffer = append(buffer, byte(s.kind))
	buffer = binary.BigEndian.AppendUint32(buffer, uint32(s.arrayLen()))

	switch s.kind {
	case BoolArrayValue:
		for _, next := range s.bools {
			buffer = Bool(next).appendScalar(buffer)
		}

	case IntArrayValue:
		for _, next := range s.ints {
			buffer = binary.BigEndian.AppendUint64(buffer, uint64(next))
		}

	case FloatArrayValue:
		for _, next := range s.floats {
			buffer = binary.BigEndian.AppendUint64(buffer, math.Float64bits(next))
		}

	case StringArrayValue:
		for _, next := range s.strs {
			buffer = String(next).appendScalar(buffer)
		}
	}

	return buffer
}

// DecodeArray reverses AppendArray. Trailing or missing bytes are reported as ErrInvalidArrayPayload.
func DecodeArray(data []byte) (Value, error) {
	reader := bytes.NewReader(data)

	value, err := decodeArray(reader)
	if err != nil {
		return Value{}, err
	}

	if reader.Len() > 0 {
		return Value{}, fmt.Errorf("%w: %d trailing bytes", ErrInvalidArrayPayload, reader.Len())
	}

	return value, nil
}

func decodeArray(reader *bytes.Reader) (Value, error) {
	var (
		header = make([]byte, 5)
		value  Value
	)

	if read, _ := reader.Read(header); read < len(header) {
		return Value{}, fmt.Errorf("%w: header truncated", ErrInvalidArrayPayload)
	}

	value.kind = ValueKind(header[0])
	count := int(binary.BigEndian.Uint32(header[1:5]))

	if !value.kind.IsArray() {
		return Value{}, fmt.Errorf("%w: kind %s is not an array", ErrInvalidArrayPayload, value.kind)
	}

	for idx := 0; idx < count; idx++ {
		switch value.kind {
		case BoolArrayValue:
			next, err := reader.ReadByte()
			if err != nil || next > 1 {
				return Value{}, fmt.Errorf("%w: bool element %d", ErrInvalidArrayPayload, idx)
			}

			value.bools = append(value.bools, next == 1)

		case IntArrayValue, FloatArrayValue:
			var raw uint64

			if err := binary.Read(reader, binary.BigEndian, &raw); err != nil {
				return Value{}, fmt.Errorf("%w: element %d", ErrInvalidArrayPayload, idx)
			}

			if value.kind == IntArrayValue {
				value.ints = append(value.ints, int64(raw))
			} else {
				value.floats = append(value.floats, math.Float64frombits(raw))
			}

		case StringArrayValue:
			str, err := decodeString(reader)
			if err != nil {
				return Value{}, fmt.Errorf("%w: string element %d", ErrInvalidArrayPayload, idx)
			}

			value.strs = append(value.strs, str)
		}
	}

	return value, nil
}

func decodeString(reader *bytes.Reader) (string, error) {
	var length uint32

	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return "", err
	}

	if int(length) > reader.Len() {
		return "", io.ErrUnexpectedEOF
	}

	strBytes := make([]byte, length)
	_, _ = reader.Read(strBytes)

	return string(strBytes), nil
}

// DecodeTuple reverses TupleKey.
func DecodeTuple(data []byte) ([]Value, error) {
	var (
		reader = bytes.NewReader(data)
		values []Value
	)

	for reader.Len() > 0 {
		kind, _ := reader.ReadByte()

		switch ValueKind(kind) {
		case NoValue:
			values = append(values, Value{})

		case BoolValue:
			next, err := reader.ReadByte()
			if err != nil || next > 1 {
				return nil, fmt.Errorf("invalid boolean in tuple")
			}

			values = append(values, Bool(next == 1))

		case IntValue, FloatValue:
			var raw uint64

			if err := binary.Read(reader, binary.BigEndian, &raw); err != nil {
				return nil, fmt.Errorf("invalid number in tuple: %w", err)
			}

			if ValueKind(kind) == IntValue {
				values = append(values, Int(int64(raw)))
			} else {
				values = append(values, Float(math.Float64frombits(raw)))
			}

		case StringValue:
			str, err := decodeString(reader)
			if err != nil {
				return nil, fmt.Errorf("invalid string in tuple: %w", err)
			}

			values = append(values, String(str))

		default:
			_ = reader.UnreadByte()

			value, err := decodeArray(reader)
			if err != nil {
				return nil, err
			}

			values = append(values, value)
		}
	}

	return values, nil
}

// TupleKey encodes a value tuple into a canonical byte key.
func TupleKey(values []Value) []byte {
	var buffer []byte

	for _, value := range values {
		buffer = value.AppendKey(buffer)
	}

	return buffer
}

// HashTuple hashes the canonical encoding of a value tuple.
func HashTuple(values []Value) uint64 {
	return xxhash.Sum64(TupleKey(values))
}

// CompareTuples orders value tuples element by element.
func CompareTuples(a, b []Value) int {
	return slices.CompareFunc(a, b, func(left, right Value) int {
		return left.Compare(right)
	})
}
