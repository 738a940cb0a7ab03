package record

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const (
	// MaxPropertyBlocks is the number of key/value blocks a single property record holds.
	MaxPropertyBlocks = 4

	// MaxShortStringLength is the longest string that fits inline in a block payload.
	MaxShortStringLength = 7
)

// PropertyType describes how the payload of a property block is interpreted.
type PropertyType uint8

const (
	PropertyTypeInvalid PropertyType = iota
	PropertyTypeBool
	PropertyTypeInt
	PropertyTypeFloat
	PropertyTypeShortString
	PropertyTypeString
	PropertyTypeArray
)

func (s PropertyType) IsValid() bool {
	return s >= PropertyTypeBool && s <= PropertyTypeArray
}

// IsDynamic is true for property types whose payload is the id of the first record of a dynamic chain.
func (s PropertyType) IsDynamic() bool {
	return s == PropertyTypeString || s == PropertyTypeArray
}

func (s PropertyType) String() string {
	switch s {
	case PropertyTypeBool:
		return "BOOL"
	case PropertyTypeInt:
		return "INT"
	case PropertyTypeFloat:
		return "FLOAT"
	case PropertyTypeShortString:
		return "SHORT_STRING"
	case PropertyTypeString:
		return "STRING"
	case PropertyTypeArray:
		return "ARRAY"
	default:
		return fmt.Sprintf("PropertyType(%d)", uint8(s))
	}
}

// PropertyBlock is a single key/value slot of a property record.
type PropertyBlock struct {
	Key     int32
	Type    PropertyType
	Payload [8]byte
}

func BoolBlock(key int32, value bool) PropertyBlock {
	block := PropertyBlock{
		Key:  key,
		Type: PropertyTypeBool,
	}

	if value {
		block.Payload[0] = 1
	}

	return block
}

func IntBlock(key int32, value int64) PropertyBlock {
	block := PropertyBlock{
		Key:  key,
		Type: PropertyTypeInt,
	}

	binary.BigEndian.PutUint64(block.Payload[:], uint64(value))
	return block
}

func FloatBlock(key int32, value float64) PropertyBlock {
	block := PropertyBlock{
		Key:  key,
		Type: PropertyTypeFloat,
	}

	binary.BigEndian.PutUint64(block.Payload[:], math.Float64bits(value))
	return block
}

// ShortStringBlock inlines a string of at most MaxShortStringLength bytes.
func ShortStringBlock(key int32, value string) PropertyBlock {
	block := PropertyBlock{
		Key:  key,
		Type: PropertyTypeShortString,
	}

	block.Payload[0] = byte(len(value))
	copy(block.Payload[1:], value)

	return block
}

// DynamicBlock points at the first record of a string or array chain.
func DynamicBlock(key int32, propertyType PropertyType, firstID int64) PropertyBlock {
	block := PropertyBlock{
		Key:  key,
		Type: propertyType,
	}

	binary.BigEndian.PutUint64(block.Payload[:], uint64(firstID))
	return block
}

func (s PropertyBlock) PayloadInt64() int64 {
	return int64(binary.BigEndian.Uint64(s.Payload[:]))
}

// DynamicID returns the first record id of the value chain for dynamic property types.
func (s PropertyBlock) DynamicID() int64 {
	return s.PayloadInt64()
}

// InlineValue decodes the value of a non-dynamic block. The boolean return is false when the payload is not a
// legal encoding for the block type.
func (s PropertyBlock) InlineValue() (Value, bool) {
	switch s.Type {
	case PropertyTypeBool:
		switch s.Payload[0] {
		case 0:
			return Bool(false), true
		case 1:
			return Bool(true), true
		default:
			return Value{}, false
		}

	case PropertyTypeInt:
		return Int(s.PayloadInt64()), true

	case PropertyTypeFloat:
		return Float(math.Float64frombits(binary.BigEndian.Uint64(s.Payload[:]))), true

	case PropertyTypeShortString:
		if length := int(s.Payload[0]); length <= MaxShortStringLength {
			return String(string(s.Payload[1 : 1+length])), true
		}

		return Value{}, false

	default:
		return Value{}, false
	}
}

func (s PropertyBlock) String() string {
	if s.Type.IsDynamic() {
		return fmt.Sprintf("Block[key=%d,type=%s,value=%s]", s.Key, s.Type, formatReference(s.DynamicID()))
	}

	if value, ok := s.InlineValue(); ok {
		return fmt.Sprintf("Block[key=%d,type=%s,value=%s]", s.Key, s.Type, value)
	}

	return fmt.Sprintf("Block[key=%d,type=%s,payload=%x]", s.Key, s.Type, s.Payload)
}

type Property struct {
	ID       int64
	InUse    bool
	Corrupt  bool
	PrevProp int64
	NextProp int64
	Blocks   []PropertyBlock
}

func NewProperty(id int64) Property {
	return Property{
		ID:       id,
		PrevProp: NullReference,
		NextProp: NullReference,
	}
}

func (s Property) RecordID() int64 {
	return s.ID
}

func (s Property) IsInUse() bool {
	return s.InUse
}

func (s Property) IsCorrupt() bool {
	return s.Corrupt
}

func (s Property) String() string {
	blockStrs := make([]string, len(s.Blocks))

	for idx, block := range s.Blocks {
		blockStrs[idx] = block.String()
	}

	return fmt.Sprintf("Property[%d,used=%t,prev=%s,next=%s,blocks=%s]",
		s.ID, s.InUse, formatReference(s.PrevProp), formatReference(s.NextProp), strings.Join(blockStrs, ","))
}
