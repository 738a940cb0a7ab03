package record

import (
	"encoding/binary"
	"fmt"
)

const (
	flagInUse = 0x01

	nodeFlagDense         = 0x02
	nodeFlagDynamicLabels = 0x04
	nodeFlagMask          = flagInUse | nodeFlagDense | nodeFlagDynamicLabels

	relationshipFlagFirstInFirstChain  = 0x02
	relationshipFlagFirstInSecondChain = 0x04
	relationshipFlagMask               = flagInUse | relationshipFlagFirstInFirstChain | relationshipFlagFirstInSecondChain

	tokenFlagInternal = 0x02
	tokenFlagMask     = flagInUse | tokenFlagInternal

	NodeRecordSize              = 46
	RelationshipRecordSize      = 61
	RelationshipGroupRecordSize = 45
	PropertyBlockSize           = 13
	PropertyRecordSize          = 18 + MaxPropertyBlocks*PropertyBlockSize
	TokenRecordSize             = 9
	DynamicRecordHeaderSize     = 11
)

// Codec translates between a record snapshot and its stored bytes. Decode always returns a record carrying the
// requested id; when the bytes do not decode the returned record has Corrupt set along with whatever fields
// could be read, and the error wraps ErrRecordCorrupt.
type Codec[T Record] interface {
	Encode(rec T) []byte
	Decode(id int64, data []byte) (T, error)
	Empty(id int64) T
}

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRecordCorrupt, fmt.Sprintf(format, args...))
}

func putInt64(buffer []byte, value int64) {
	binary.BigEndian.PutUint64(buffer, uint64(value))
}

func getInt64(buffer []byte) int64 {
	return int64(binary.BigEndian.Uint64(buffer))
}

func inUseFlag(inUse bool) byte {
	if inUse {
		return flagInUse
	}

	return 0
}

type NodeCodec struct{}

func (NodeCodec) Empty(id int64) Node {
	return NewNode(id)
}

func (NodeCodec) Encode(rec Node) []byte {
	buffer := make([]byte, NodeRecordSize)
	buffer[0] = inUseFlag(rec.InUse)

	if rec.Dense {
		buffer[0] |= nodeFlagDense
	}

	putInt64(buffer[1:9], rec.NextRel)
	putInt64(buffer[9:17], rec.NextProp)

	if rec.Labels.Dynamic {
		buffer[0] |= nodeFlagDynamicLabels
		putInt64(buffer[18:26], rec.Labels.FirstID)
	} else {
		buffer[17] = byte(len(rec.Labels.Inline))

		for idx, label := range rec.Labels.Inline {
			if idx >= MaxInlineLabels {
				break
			}

			offset := 18 + idx*4
			binary.BigEndian.PutUint32(buffer[offset:offset+4], uint32(int32(label)))
		}
	}

	return buffer
}

func (NodeCodec) Decode(id int64, data []byte) (Node, error) {
	rec := NewNode(id)

	if len(data) != NodeRecordSize {
		rec.Corrupt = true
		return rec, corruptf("node %d: expected %d bytes, found %d", id, NodeRecordSize, len(data))
	}

	flags := data[0]
	rec.InUse = flags&flagInUse != 0
	rec.Dense = flags&nodeFlagDense != 0
	rec.NextRel = getInt64(data[1:9])
	rec.NextProp = getInt64(data[9:17])

	if flags&^nodeFlagMask != 0 {
		rec.Corrupt = true
		return rec, corruptf("node %d: unknown flags %#x", id, flags)
	}

	if flags&nodeFlagDynamicLabels != 0 {
		rec.Labels = DynamicLabels(getInt64(data[18:26]))
		return rec, nil
	}

	count := int(data[17])

	if count > MaxInlineLabels {
		rec.Corrupt = true
		return rec, corruptf("node %d: inline label count %d exceeds %d", id, count, MaxInlineLabels)
	}

	labels := make([]int64, count)

	for idx := range labels {
		offset := 18 + idx*4
		labels[idx] = int64(int32(binary.BigEndian.Uint32(data[offset : offset+4])))
	}

	rec.Labels = InlineLabels(labels...)
	return rec, nil
}

type RelationshipCodec struct{}

func (RelationshipCodec) Empty(id int64) Relationship {
	return NewRelationship(id)
}

func (RelationshipCodec) Encode(rec Relationship) []byte {
	buffer := make([]byte, RelationshipRecordSize)
	buffer[0] = inUseFlag(rec.InUse)

	if rec.FirstInFirstChain {
		buffer[0] |= relationshipFlagFirstInFirstChain
	}

	if rec.FirstInSecondChain {
		buffer[0] |= relationshipFlagFirstInSecondChain
	}

	putInt64(buffer[1:9], rec.FirstNode)
	putInt64(buffer[9:17], rec.SecondNode)
	binary.BigEndian.PutUint32(buffer[17:21], uint32(rec.Type))
	putInt64(buffer[21:29], rec.FirstPrevRel)
	putInt64(buffer[29:37], rec.FirstNextRel)
	putInt64(buffer[37:45], rec.SecondPrevRel)
	putInt64(buffer[45:53], rec.SecondNextRel)
	putInt64(buffer[53:61], rec.NextProp)

	return buffer
}

func (RelationshipCodec) Decode(id int64, data []byte) (Relationship, error) {
	rec := NewRelationship(id)

	if len(data) != RelationshipRecordSize {
		rec.Corrupt = true
		return rec, corruptf("relationship %d: expected %d bytes, found %d", id, RelationshipRecordSize, len(data))
	}

	flags := data[0]
	rec.InUse = flags&flagInUse != 0
	rec.FirstInFirstChain = flags&relationshipFlagFirstInFirstChain != 0
	rec.FirstInSecondChain = flags&relationshipFlagFirstInSecondChain != 0
	rec.FirstNode = getInt64(data[1:9])
	rec.SecondNode = getInt64(data[9:17])
	rec.Type = int32(binary.BigEndian.Uint32(data[17:21]))
	rec.FirstPrevRel = getInt64(data[21:29])
	rec.FirstNextRel = getInt64(data[29:37])
	rec.SecondPrevRel = getInt64(data[37:45])
	rec.SecondNextRel = getInt64(data[45:53])
	rec.NextProp = getInt64(data[53:61])

	if flags&^relationshipFlagMask != 0 {
		rec.Corrupt = true
		return rec, corruptf("relationship %d: unknown flags %#x", id, flags)
	}

	return rec, nil
}

type RelationshipGroupCodec struct{}

func (RelationshipGroupCodec) Empty(id int64) RelationshipGroup {
	return NewRelationshipGroup(id)
}

func (RelationshipGroupCodec) Encode(rec RelationshipGroup) []byte {
	buffer := make([]byte, RelationshipGroupRecordSize)
	buffer[0] = inUseFlag(rec.InUse)

	binary.BigEndian.PutUint32(buffer[1:5], uint32(rec.Type))
	putInt64(buffer[5:13], rec.Owner)
	putInt64(buffer[13:21], rec.Next)
	putInt64(buffer[21:29], rec.FirstOut)
	putInt64(buffer[29:37], rec.FirstIn)
	putInt64(buffer[37:45], rec.FirstLoop)

	return buffer
}

func (RelationshipGroupCodec) Decode(id int64, data []byte) (RelationshipGroup, error) {
	rec := NewRelationshipGroup(id)

	if len(data) != RelationshipGroupRecordSize {
		rec.Corrupt = true
		return rec, corruptf("relationship group %d: expected %d bytes, found %d", id, RelationshipGroupRecordSize, len(data))
	}

	rec.InUse = data[0]&flagInUse != 0
	rec.Type = int32(binary.BigEndian.Uint32(data[1:5]))
	rec.Owner = getInt64(data[5:13])
	rec.Next = getInt64(data[13:21])
	rec.FirstOut = getInt64(data[21:29])
	rec.FirstIn = getInt64(data[29:37])
	rec.FirstLoop = getInt64(data[37:45])

	if data[0]&^flagInUse != 0 {
		rec.Corrupt = true
		return rec, corruptf("relationship group %d: unknown flags %#x", id, data[0])
	}

	return rec, nil
}

type PropertyCodec struct{}

func (PropertyCodec) Empty(id int64) Property {
	return NewProperty(id)
}

func (PropertyCodec) Encode(rec Property) []byte {
	buffer := make([]byte, PropertyRecordSize)
	buffer[0] = inUseFlag(rec.InUse)

	putInt64(buffer[1:9], rec.PrevProp)
	putInt64(buffer[9:17], rec.NextProp)

	numBlocks := min(len(rec.Blocks), MaxPropertyBlocks)
	buffer[17] = byte(numBlocks)

	for idx := 0; idx < numBlocks; idx++ {
		var (
			block  = rec.Blocks[idx]
			offset = 18 + idx*PropertyBlockSize
		)

		binary.BigEndian.PutUint32(buffer[offset:offset+4], uint32(block.Key))
		buffer[offset+4] = byte(block.Type)
		copy(buffer[offset+5:offset+PropertyBlockSize], block.Payload[:])
	}

	return buffer
}

func (PropertyCodec) Decode(id int64, data []byte) (Property, error) {
	rec := NewProperty(id)

	if len(data) != PropertyRecordSize {
		rec.Corrupt = true
		return rec, corruptf("property %d: expected %d bytes, found %d", id, PropertyRecordSize, len(data))
	}

	rec.InUse = data[0]&flagInUse != 0
	rec.PrevProp = getInt64(data[1:9])
	rec.NextProp = getInt64(data[9:17])

	if data[0]&^flagInUse != 0 {
		rec.Corrupt = true
		return rec, corruptf("property %d: unknown flags %#x", id, data[0])
	}

	numBlocks := int(data[17])

	if numBlocks > MaxPropertyBlocks {
		rec.Corrupt = true
		return rec, corruptf("property %d: block count %d exceeds %d", id, numBlocks, MaxPropertyBlocks)
	}

	rec.Blocks = make([]PropertyBlock, numBlocks)

	for idx := range rec.Blocks {
		offset := 18 + idx*PropertyBlockSize

		rec.Blocks[idx].Key = int32(binary.BigEndian.Uint32(data[offset : offset+4]))
		rec.Blocks[idx].Type = PropertyType(data[offset+4])
		copy(rec.Blocks[idx].Payload[:], data[offset+5:offset+PropertyBlockSize])
	}

	return rec, nil
}

// DynamicCodec encodes dynamic records with a fixed data block size. A stored length greater than the block
// size is preserved so that it can be reported, while Data is truncated to the block.
type DynamicCodec struct {
	BlockSize int
}

func (s DynamicCodec) Empty(id int64) Dynamic {
	return NewDynamic(id)
}

func (s DynamicCodec) Encode(rec Dynamic) []byte {
	buffer := make([]byte, DynamicRecordHeaderSize+s.BlockSize)
	buffer[0] = inUseFlag(rec.InUse)

	binary.BigEndian.PutUint16(buffer[1:3], uint16(rec.Length))
	putInt64(buffer[3:11], rec.Next)
	copy(buffer[DynamicRecordHeaderSize:], rec.Data)

	return buffer
}

func (s DynamicCodec) Decode(id int64, data []byte) (Dynamic, error) {
	rec := NewDynamic(id)

	if len(data) != DynamicRecordHeaderSize+s.BlockSize {
		rec.Corrupt = true
		return rec, corruptf("dynamic record %d: expected %d bytes, found %d", id, DynamicRecordHeaderSize+s.BlockSize, len(data))
	}

	rec.InUse = data[0]&flagInUse != 0
	rec.Length = int(binary.BigEndian.Uint16(data[1:3]))
	rec.Next = getInt64(data[3:11])

	if data[0]&^flagInUse != 0 {
		rec.Corrupt = true
		return rec, corruptf("dynamic record %d: unknown flags %#x", id, data[0])
	}

	dataLength := min(rec.Length, s.BlockSize)
	rec.Data = make([]byte, dataLength)
	copy(rec.Data, data[DynamicRecordHeaderSize:DynamicRecordHeaderSize+dataLength])

	return rec, nil
}

type TokenCodec struct{}

func (TokenCodec) Empty(id int64) Token {
	return NewToken(id)
}

func (TokenCodec) Encode(rec Token) []byte {
	buffer := make([]byte, TokenRecordSize)
	buffer[0] = inUseFlag(rec.InUse)

	if rec.Internal {
		buffer[0] |= tokenFlagInternal
	}

	putInt64(buffer[1:9], rec.NameID)
	return buffer
}

func (TokenCodec) Decode(id int64, data []byte) (Token, error) {
	rec := NewToken(id)

	if len(data) != TokenRecordSize {
		rec.Corrupt = true
		return rec, corruptf("token %d: expected %d bytes, found %d", id, TokenRecordSize, len(data))
	}

	rec.InUse = data[0]&flagInUse != 0
	rec.Internal = data[0]&tokenFlagInternal != 0
	rec.NameID = getInt64(data[1:9])

	if data[0]&^tokenFlagMask != 0 {
		rec.Corrupt = true
		return rec, corruptf("token %d: unknown flags %#x", id, data[0])
	}

	return rec, nil
}
