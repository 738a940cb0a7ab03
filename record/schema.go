package record

import (
	"fmt"
	"slices"
)

type SchemaKind uint8

const (
	SchemaKindIndex SchemaKind = iota + 1
	SchemaKindUniquenessConstraint
	SchemaKindKeyConstraint
	SchemaKindExistenceConstraint
	SchemaKindPropertyTypeConstraint
)

func (s SchemaKind) IsValid() bool {
	return s >= SchemaKindIndex && s <= SchemaKindPropertyTypeConstraint
}

func (s SchemaKind) IsConstraint() bool {
	return s.IsValid() && s != SchemaKindIndex
}

// OwnsIndex is true for constraint kinds that are backed by an index.
func (s SchemaKind) OwnsIndex() bool {
	return s == SchemaKindUniquenessConstraint || s == SchemaKindKeyConstraint
}

func (s SchemaKind) String() string {
	switch s {
	case SchemaKindIndex:
		return "INDEX"
	case SchemaKindUniquenessConstraint:
		return "UNIQUENESS_CONSTRAINT"
	case SchemaKindKeyConstraint:
		return "KEY_CONSTRAINT"
	case SchemaKindExistenceConstraint:
		return "EXISTENCE_CONSTRAINT"
	case SchemaKindPropertyTypeConstraint:
		return "PROPERTY_TYPE_CONSTRAINT"
	default:
		return fmt.Sprintf("SchemaKind(%d)", uint8(s))
	}
}

type IndexType uint8

const (
	IndexTypeNone IndexType = iota
	IndexTypeRange
	IndexTypeText
	IndexTypePoint
	IndexTypeLookup
)

func (s IndexType) IsValid() bool {
	return s <= IndexTypeLookup
}

func (s IndexType) String() string {
	switch s {
	case IndexTypeNone:
		return "NONE"
	case IndexTypeRange:
		return "RANGE"
	case IndexTypeText:
		return "TEXT"
	case IndexTypePoint:
		return "POINT"
	case IndexTypeLookup:
		return "LOOKUP"
	default:
		return fmt.Sprintf("IndexType(%d)", uint8(s))
	}
}

type RuleState uint8

const (
	// RuleStateNone is the state of constraints, which are never populated themselves.
	RuleStateNone RuleState = iota
	RuleStateOnline
	RuleStatePopulating
	RuleStateFailed
)

func (s RuleState) IsValid() bool {
	return s >= RuleStateOnline && s <= RuleStateFailed
}

func (s RuleState) String() string {
	switch s {
	case RuleStateNone:
		return "NONE"
	case RuleStateOnline:
		return "ONLINE"
	case RuleStatePopulating:
		return "POPULATING"
	case RuleStateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("RuleState(%d)", uint8(s))
	}
}

// SchemaDescriptor is the schema key of a rule: the entity type, its label or relationship type tokens and the
// property keys. Token lookup indexes have no entity tokens and no property keys.
type SchemaDescriptor struct {
	EntityType   EntityType
	EntityTokens []int32
	PropertyKeys []int32
}

func (s SchemaDescriptor) IsTokenLookup() bool {
	return len(s.EntityTokens) == 0 && len(s.PropertyKeys) == 0
}

func (s SchemaDescriptor) Equal(other SchemaDescriptor) bool {
	return s.EntityType == other.EntityType &&
		slices.Equal(s.EntityTokens, other.EntityTokens) &&
		slices.Equal(s.PropertyKeys, other.PropertyKeys)
}

func (s SchemaDescriptor) Key() string {
	return fmt.Sprintf("%s:%v:%v", s.EntityType, s.EntityTokens, s.PropertyKeys)
}

func (s SchemaDescriptor) String() string {
	return fmt.Sprintf("(%s tokens=%v properties=%v)", s.EntityType, s.EntityTokens, s.PropertyKeys)
}

type SchemaRule struct {
	ID               int64
	InUse            bool
	Corrupt          bool
	Kind             SchemaKind
	Schema           SchemaDescriptor
	IndexType        IndexType
	Unique           bool
	State            RuleState
	OwningConstraint int64
	OwnedIndex       int64
	AllowedTypes     []ValueKind
	Name             string
}

func NewSchemaRule(id int64) SchemaRule {
	return SchemaRule{
		ID:               id,
		OwningConstraint: NullReference,
		OwnedIndex:       NullReference,
	}
}

func (s SchemaRule) RecordID() int64 {
	return s.ID
}

func (s SchemaRule) IsInUse() bool {
	return s.InUse
}

func (s SchemaRule) IsCorrupt() bool {
	return s.Corrupt
}

func (s SchemaRule) IsIndex() bool {
	return s.Kind == SchemaKindIndex
}

func (s SchemaRule) String() string {
	switch {
	case s.Corrupt:
		return fmt.Sprintf("SchemaRule[%d,malformed]", s.ID)

	case s.IsIndex():
		return fmt.Sprintf("IndexRule[%d,name=%q,schema=%s,type=%s,unique=%t,state=%s,owningConstraint=%s]",
			s.ID, s.Name, s.Schema, s.IndexType, s.Unique, s.State, formatReference(s.OwningConstraint))

	default:
		return fmt.Sprintf("ConstraintRule[%d,name=%q,kind=%s,schema=%s,indexType=%s,ownedIndex=%s]",
			s.ID, s.Name, s.Kind, s.Schema, s.IndexType, formatReference(s.OwnedIndex))
	}
}
