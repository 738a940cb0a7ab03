package store

import (
	"encoding/binary"
	"fmt"

	"github.com/specterops/recordcheck/record"
)

const (
	metaFormat = "format"
	metaCounts = "counts"
)

// Format fixes the data block size of each dynamic store.
type Format struct {
	StringBlockSize int
	ArrayBlockSize  int
	LabelBlockSize  int
	NameBlockSize   int
}

func DefaultFormat() Format {
	return Format{
		StringBlockSize: 120,
		ArrayBlockSize:  120,
		LabelBlockSize:  64,
		NameBlockSize:   30,
	}
}

func (s Format) Validate() error {
	if s.StringBlockSize <= 0 || s.ArrayBlockSize <= 0 || s.NameBlockSize <= 0 {
		return fmt.Errorf("dynamic block sizes must be positive: %+v", s)
	}

	// Each label block must carry at least one int64 label id
	if s.LabelBlockSize < 8 || s.LabelBlockSize%8 != 0 {
		return fmt.Errorf("label block size %d must be a positive multiple of 8", s.LabelBlockSize)
	}

	return nil
}

func (s Format) MarshalBinary() ([]byte, error) {
	buffer := make([]byte, 0, 16)

	for _, next := range []int{s.StringBlockSize, s.ArrayBlockSize, s.LabelBlockSize, s.NameBlockSize} {
		buffer = binary.BigEndian.AppendUint32(buffer, uint32(next))
	}

	return buffer, nil
}

func (s *Format) UnmarshalBinary(data []byte) error {
	if len(data) != 16 {
		return fmt.Errorf("format state must be 16 bytes, found %d", len(data))
	}

	s.StringBlockSize = int(binary.BigEndian.Uint32(data[0:4]))
	s.ArrayBlockSize = int(binary.BigEndian.Uint32(data[4:8]))
	s.LabelBlockSize = int(binary.BigEndian.Uint32(data[8:12]))
	s.NameBlockSize = int(binary.BigEndian.Uint32(data[12:16]))

	return nil
}

// Stores aggregates every record store of a graph store.
type Stores struct {
	Format Format

	Nodes              *Store[record.Node]
	Relationships      *Store[record.Relationship]
	RelationshipGroups *Store[record.RelationshipGroup]
	Properties         *Store[record.Property]
	Strings            *Store[record.Dynamic]
	Arrays             *Store[record.Dynamic]
	NodeLabels         *Store[record.Dynamic]
	Schema             *Store[record.SchemaRule]

	LabelTokens            *Store[record.Token]
	RelationshipTypeTokens *Store[record.Token]
	PropertyKeyTokens      *Store[record.Token]
	LabelNames             *Store[record.Dynamic]
	RelationshipTypeNames  *Store[record.Dynamic]
	PropertyKeyNames       *Store[record.Dynamic]

	Counts *Counts

	backend Backend
}

func newStores(backend Backend, format Format) *Stores {
	return &Stores{
		Format:                 format,
		Nodes:                  NewStore(record.TypeNode, backend, record.Codec[record.Node](record.NodeCodec{})),
		Relationships:          NewStore(record.TypeRelationship, backend, record.Codec[record.Relationship](record.RelationshipCodec{})),
		RelationshipGroups:     NewStore(record.TypeRelationshipGroup, backend, record.Codec[record.RelationshipGroup](record.RelationshipGroupCodec{})),
		Properties:             NewStore(record.TypeProperty, backend, record.Codec[record.Property](record.PropertyCodec{})),
		Strings:                newDynamicStore(record.TypeStringProperty, backend, format.StringBlockSize),
		Arrays:                 newDynamicStore(record.TypeArrayProperty, backend, format.ArrayBlockSize),
		NodeLabels:             newDynamicStore(record.TypeNodeDynamicLabel, backend, format.LabelBlockSize),
		Schema:                 NewStore(record.TypeSchema, backend, record.Codec[record.SchemaRule](record.SchemaCodec{})),
		LabelTokens:            newTokenStore(record.TypeLabelToken, backend),
		RelationshipTypeTokens: newTokenStore(record.TypeRelationshipTypeToken, backend),
		PropertyKeyTokens:      newTokenStore(record.TypePropertyKeyToken, backend),
		LabelNames:             newDynamicStore(record.TypeLabelName, backend, format.NameBlockSize),
		RelationshipTypeNames:  newDynamicStore(record.TypeRelationshipTypeName, backend, format.NameBlockSize),
		PropertyKeyNames:       newDynamicStore(record.TypePropertyKeyName, backend, format.NameBlockSize),
		Counts:                 NewCounts(),
		backend:                backend,
	}
}

func newDynamicStore(recordType record.Type, backend Backend, blockSize int) *Store[record.Dynamic] {
	return NewStore(recordType, backend, record.Codec[record.Dynamic](record.DynamicCodec{BlockSize: blockSize}))
}

func newTokenStore(recordType record.Type, backend Backend) *Store[record.Token] {
	return NewStore(recordType, backend, record.Codec[record.Token](record.TokenCodec{}))
}

// Create initializes a new graph store on the backend with the given format.
func Create(backend Backend, format Format) (*Stores, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	formatState, _ := format.MarshalBinary()

	if err := backend.WriteMeta(metaFormat, formatState); err != nil {
		return nil, fmt.Errorf("writing store format: %w", err)
	}

	return newStores(backend, format), nil
}

// Open reads the format and counts of an existing graph store.
func Open(backend Backend) (*Stores, error) {
	var format Format

	if formatState, err := backend.ReadMeta(metaFormat); err != nil {
		return nil, fmt.Errorf("reading store format: %w", err)
	} else if formatState == nil {
		return nil, fmt.Errorf("store has no format metadata")
	} else if err := format.UnmarshalBinary(formatState); err != nil {
		return nil, err
	} else if err := format.Validate(); err != nil {
		return nil, err
	}

	stores := newStores(backend, format)

	if countsState, err := backend.ReadMeta(metaCounts); err != nil {
		return nil, fmt.Errorf("reading counts: %w", err)
	} else if countsState != nil {
		if err := stores.Counts.UnmarshalBinary(countsState); err != nil {
			return nil, err
		}
	}

	return stores, nil
}

func (s *Stores) Backend() Backend {
	return s.backend
}

// DynamicStore returns the dynamic store for a dynamic record type.
func (s *Stores) DynamicStore(recordType record.Type) (*Store[record.Dynamic], bool) {
	switch recordType {
	case record.TypeStringProperty:
		return s.Strings, true
	case record.TypeArrayProperty:
		return s.Arrays, true
	case record.TypeNodeDynamicLabel:
		return s.NodeLabels, true
	case record.TypeLabelName:
		return s.LabelNames, true
	case record.TypeRelationshipTypeName:
		return s.RelationshipTypeNames, true
	case record.TypePropertyKeyName:
		return s.PropertyKeyNames, true
	default:
		return nil, false
	}
}

// BlockSize returns the data block size of a dynamic record type.
func (s *Stores) BlockSize(recordType record.Type) int {
	switch recordType {
	case record.TypeStringProperty:
		return s.Format.StringBlockSize
	case record.TypeArrayProperty:
		return s.Format.ArrayBlockSize
	case record.TypeNodeDynamicLabel:
		return s.Format.LabelBlockSize
	case record.TypeLabelName, record.TypeRelationshipTypeName, record.TypePropertyKeyName:
		return s.Format.NameBlockSize
	default:
		return 0
	}
}

// Flush persists counts and backend state.
func (s *Stores) Flush() error {
	countsState, err := s.Counts.MarshalBinary()
	if err != nil {
		return err
	}

	if err := s.backend.WriteMeta(metaCounts, countsState); err != nil {
		return fmt.Errorf("writing counts: %w", err)
	}

	return s.backend.Flush()
}

func (s *Stores) Close() error {
	return s.backend.Close()
}
