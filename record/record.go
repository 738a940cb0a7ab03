// Package record holds read-only snapshots of the fixed-size records that make up a record-oriented graph store
// along with their binary encodings.
package record

import (
	"errors"
	"fmt"
)

// NullReference terminates every record chain.
const NullReference int64 = -1

var (
	ErrRecordCorrupt = errors.New("record corrupt")
)

// Type identifies both a store and the report category for findings against records of that store.
type Type uint8

const (
	TypeNone Type = iota
	TypeNode
	TypeRelationship
	TypeProperty
	TypeRelationshipGroup
	TypeStringProperty
	TypeArrayProperty
	TypeNodeDynamicLabel
	TypeSchema
	TypeLabelToken
	TypeRelationshipTypeToken
	TypePropertyKeyToken
	TypeLabelName
	TypeRelationshipTypeName
	TypePropertyKeyName
	TypeLabelScanDocument
	TypeRelationshipTypeScanDocument
	TypeIndex
	TypeCounts

	numTypes
)

var typeNames = [numTypes]string{
	TypeNone:                         "NONE",
	TypeNode:                         "NODE",
	TypeRelationship:                 "RELATIONSHIP",
	TypeProperty:                     "PROPERTY",
	TypeRelationshipGroup:            "RELATIONSHIP_GROUP",
	TypeStringProperty:               "STRING_PROPERTY",
	TypeArrayProperty:                "ARRAY_PROPERTY",
	TypeNodeDynamicLabel:             "NODE_DYNAMIC_LABEL",
	TypeSchema:                       "SCHEMA",
	TypeLabelToken:                   "LABEL",
	TypeRelationshipTypeToken:        "RELATIONSHIP_TYPE",
	TypePropertyKeyToken:             "PROPERTY_KEY",
	TypeLabelName:                    "LABEL_NAME",
	TypeRelationshipTypeName:         "RELATIONSHIP_TYPE_NAME",
	TypePropertyKeyName:              "PROPERTY_KEY_NAME",
	TypeLabelScanDocument:            "LABEL_SCAN_DOCUMENT",
	TypeRelationshipTypeScanDocument: "RELATIONSHIP_TYPE_SCAN_DOCUMENT",
	TypeIndex:                        "INDEX",
	TypeCounts:                       "COUNTS",
}

func (s Type) String() string {
	if s < numTypes {
		return typeNames[s]
	}

	return fmt.Sprintf("Type(%d)", uint8(s))
}

func (s Type) IsValid() bool {
	return s > TypeNone && s < numTypes
}

// Types returns every valid record type in declaration order.
func Types() []Type {
	types := make([]Type, 0, numTypes-1)

	for next := TypeNode; next < numTypes; next++ {
		types = append(types, next)
	}

	return types
}

// Record is implemented by every record snapshot.
type Record interface {
	RecordID() int64
	IsInUse() bool
	IsCorrupt() bool
}

// EntityType distinguishes the two kinds of graph entity that carry labels or a type along with properties.
type EntityType uint8

const (
	EntityNode EntityType = iota + 1
	EntityRelationship
)

func (s EntityType) String() string {
	switch s {
	case EntityNode:
		return "NODE"
	case EntityRelationship:
		return "RELATIONSHIP"
	default:
		return fmt.Sprintf("EntityType(%d)", uint8(s))
	}
}

func (s EntityType) IsValid() bool {
	return s == EntityNode || s == EntityRelationship
}

func formatReference(id int64) string {
	if id == NullReference {
		return "NULL"
	}

	return fmt.Sprintf("%d", id)
}
