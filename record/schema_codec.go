package record

import (
	"encoding/binary"
	"io"
)

// SchemaCodec encodes schema rules in a variable length layout. A record that is not in use is a single flag
// byte.
type SchemaCodec struct{}

func (SchemaCodec) Empty(id int64) SchemaRule {
	return NewSchemaRule(id)
}

func (SchemaCodec) Encode(rec SchemaRule) []byte {
	buffer := []byte{inUseFlag(rec.InUse)}

	if !rec.InUse {
		return buffer
	}

	buffer = append(buffer, byte(rec.Kind), byte(rec.Schema.EntityType), byte(rec.IndexType), byte(rec.State))

	if rec.Unique {
		buffer = append(buffer, 1)
	} else {
		buffer = append(buffer, 0)
	}

	buffer = binary.BigEndian.AppendUint64(buffer, uint64(rec.OwningConstraint))
	buffer = binary.BigEndian.AppendUint64(buffer, uint64(rec.OwnedIndex))

	buffer = append(buffer, byte(len(rec.Schema.EntityTokens)))
	for _, token := range rec.Schema.EntityTokens {
		buffer = binary.BigEndian.AppendUint32(buffer, uint32(token))
	}

	buffer = append(buffer, byte(len(rec.Schema.PropertyKeys)))
	for _, key := range rec.Schema.PropertyKeys {
		buffer = binary.BigEndian.AppendUint32(buffer, uint32(key))
	}

	buffer = append(buffer, byte(len(rec.AllowedTypes)))
	for _, kind := range rec.AllowedTypes {
		buffer = append(buffer, byte(kind))
	}

	buffer = binary.BigEndian.AppendUint16(buffer, uint16(len(rec.Name)))
	return append(buffer, rec.Name...)
}

type schemaReader struct {
	data   []byte
	offset int
	err    error
}

func (s *schemaReader) take(length int) []byte {
	if s.err != nil {
		return nil
	}

	if s.offset+length > len(s.data) {
		s.err = io.ErrUnexpectedEOF
		return nil
	}

	next := s.data[s.offset : s.offset+length]
	s.offset += length

	return next
}

func (s *schemaReader) byte() byte {
	if next := s.take(1); next != nil {
		return next[0]
	}

	return 0
}

func (s *schemaReader) int32() int32 {
	if next := s.take(4); next != nil {
		return int32(binary.BigEndian.Uint32(next))
	}

	return 0
}

func (s *schemaReader) int64() int64 {
	if next := s.take(8); next != nil {
		return getInt64(next)
	}

	return NullReference
}

func (SchemaCodec) Decode(id int64, data []byte) (SchemaRule, error) {
	rec := NewSchemaRule(id)

	if len(data) == 0 {
		rec.Corrupt = true
		return rec, corruptf("schema rule %d: empty payload", id)
	}

	rec.InUse = data[0]&flagInUse != 0

	if data[0]&^flagInUse != 0 {
		rec.Corrupt = true
		return rec, corruptf("schema rule %d: unknown flags %#x", id, data[0])
	}

	if !rec.InUse {
		return rec, nil
	}

	reader := &schemaReader{data: data, offset: 1}

	rec.Kind = SchemaKind(reader.byte())
	rec.Schema.EntityType = EntityType(reader.byte())
	rec.IndexType = IndexType(reader.byte())
	rec.State = RuleState(reader.byte())
	unique := reader.byte()
	rec.Unique = unique == 1
	rec.OwningConstraint = reader.int64()
	rec.OwnedIndex = reader.int64()

	for numTokens := int(reader.byte()); numTokens > 0 && reader.err == nil; numTokens-- {
		rec.Schema.EntityTokens = append(rec.Schema.EntityTokens, reader.int32())
	}

	for numKeys := int(reader.byte()); numKeys > 0 && reader.err == nil; numKeys-- {
		rec.Schema.PropertyKeys = append(rec.Schema.PropertyKeys, reader.int32())
	}

	for numAllowed := int(reader.byte()); numAllowed > 0 && reader.err == nil; numAllowed-- {
		rec.AllowedTypes = append(rec.AllowedTypes, ValueKind(reader.byte()))
	}

	var nameLength int
	if next := reader.take(2); next != nil {
		nameLength = int(binary.BigEndian.Uint16(next))
	}

	rec.Name = string(reader.take(nameLength))

	switch {
	case reader.err != nil:
		rec.Corrupt = true
		return rec, corruptf("schema rule %d: %v", id, reader.err)

	case reader.offset != len(data):
		rec.Corrupt = true
		return rec, corruptf("schema rule %d: %d trailing bytes", id, len(data)-reader.offset)

	case !rec.Kind.IsValid():
		rec.Corrupt = true
		return rec, corruptf("schema rule %d: invalid kind %d", id, rec.Kind)

	case !rec.Schema.EntityType.IsValid():
		rec.Corrupt = true
		return rec, corruptf("schema rule %d: invalid entity type %d", id, rec.Schema.EntityType)

	case !rec.IndexType.IsValid() || unique > 1:
		rec.Corrupt = true
		return rec, corruptf("schema rule %d: invalid index descriptor", id)

	case rec.IsIndex() && !rec.State.IsValid():
		rec.Corrupt = true
		return rec, corruptf("schema rule %d: invalid index state %d", id, rec.State)

	case !rec.IsIndex() && rec.State != RuleStateNone && !rec.State.IsValid():
		rec.Corrupt = true
		return rec, corruptf("schema rule %d: invalid constraint state %d", id, rec.State)
	}

	for _, kind := range rec.AllowedTypes {
		if !kind.IsValid() {
			rec.Corrupt = true
			return rec, corruptf("schema rule %d: invalid allowed value kind %d", id, kind)
		}
	}

	return rec, nil
}
