package report

import "fmt"

// Kind is the closed set of violations the checker can report. Each kind maps to the method name findings are
// grouped by, a default message and a severity.
type Kind uint16

const (
	KindNone Kind = iota

	// Node and shared graph entity kinds
	LabelNotInUse
	LabelDuplicate
	LabelsOutOfOrder
	IllegalLabel
	LabelIsInternal
	DynamicLabelRecordNotInUse
	DynamicRecordChainCycle
	RelationshipNotInUse
	RelationshipForOtherNode
	RelationshipNotFirstInSourceChain
	RelationshipNotFirstInTargetChain
	RelationshipGroupNotInUse
	RelationshipGroupHasOtherOwner
	IDIsFreed
	IDIsNotFreed
	PropertyNotInUse
	PropertyNotFirstInChain
	PropertyKeyNotUniqueInChain
	PropertyChainCycle
	MultiplePropertyOwners
	NotIndexed
	IndexedMultipleTimes
	UniqueIndexNotUnique
	MissingMandatoryProperty
	PropertyTypeConstraintViolation

	// Relationship kinds
	IllegalRelationshipType
	RelationshipTypeNotInUse
	RelationshipTypeIsInternal
	IllegalSourceNode
	IllegalTargetNode
	SourceNodeNotInUse
	TargetNodeNotInUse
	SourceNodeDoesNotReferenceBack
	TargetNodeDoesNotReferenceBack
	SourceNodeHasNoRelationships
	TargetNodeHasNoRelationships
	SourceNodeMissingRelationshipGroup
	TargetNodeMissingRelationshipGroup
	SourcePrevReferencesOtherNodes
	SourceNextReferencesOtherNodes
	TargetPrevReferencesOtherNodes
	TargetNextReferencesOtherNodes
	SourcePrevDoesNotReferenceBack
	SourceNextDoesNotReferenceBack
	TargetPrevDoesNotReferenceBack
	TargetNextDoesNotReferenceBack
	NotUsedRelationshipReferencedInChain

	// Relationship group kinds
	NextGroupNotInUse
	InvalidTypeSortOrder
	NextHasOtherOwner
	OwnerNotInUse
	IllegalOwner
	FirstOutgoingRelationshipNotInUse
	FirstOutgoingRelationshipNotFirstInChain
	FirstOutgoingRelationshipOfOtherType
	FirstOutgoingRelationshipDoesNotShareNodeWithGroup
	FirstIncomingRelationshipNotInUse
	FirstIncomingRelationshipNotFirstInChain
	FirstIncomingRelationshipOfOtherType
	FirstIncomingRelationshipDoesNotShareNodeWithGroup
	FirstLoopRelationshipNotInUse
	FirstLoopRelationshipNotFirstInChain
	FirstLoopRelationshipOfOtherType
	FirstLoopRelationshipDoesNotShareNodeWithGroup

	// Property kinds
	InvalidPropertyKey
	KeyNotInUse
	PropertyKeyIsInternal
	PrevNotInUse
	NextNotInUse
	PreviousDoesNotReferenceBack
	NextDoesNotReferenceBack
	InvalidPropertyType
	StringNotInUse
	ArrayNotInUse
	StringEmpty
	ArrayEmpty
	InvalidPropertyValue

	// Dynamic record kinds
	RecordNotFullReferencesNext
	InvalidLength
	EmptyBlock
	EmptyNextBlock
	SelfReferentialNext
	ChainCycle

	// Token name kinds
	NameBlockNotInUse
	EmptyName

	// Schema kinds
	PropertyKeyNotInUse
	UniquenessConstraintNotReferencingBack
	ConstraintIndexRuleNotReferencingBack
	MissingObligation
	DuplicateObligation
	DuplicateRuleContent
	MalformedSchemaRule
	SchemaRuleNotOnline
	UniquenessConstraintReferencingIndexOfWrongType

	// Token lookup index kinds
	NodeNotInUse
	NodeDoesNotHaveExpectedLabel
	NodeLabelNotInIndex
	RelationshipDoesNotHaveExpectedRelationshipType
	RelationshipTypeNotInIndex

	// Value index kinds
	NodeIndexedWhenShouldNot
	RelationshipIndexedWhenShouldNot
	NodeIndexedWithWrongValues
	RelationshipIndexedWithWrongValues

	// Counts kinds
	InconsistentNodeCount
	InconsistentRelationshipCount

	MalformedRecord

	numKinds
)

type kindInfo struct {
	method  string
	message string
	warning bool
}

var kinds = [numKinds]kindInfo{
	LabelNotInUse:                     {"labelNotInUse", "It references a label token record that is not in use.", false},
	LabelDuplicate:                    {"labelDuplicate", "It carries the same label more than once.", false},
	LabelsOutOfOrder:                  {"labelsOutOfOrder", "Its label ids are not stored in ascending order.", false},
	IllegalLabel:                      {"illegalLabel", "It carries a label id that is negative or beyond the label token store.", false},
	LabelIsInternal:                   {"labelIsInternal", "It references a label token that is reserved for internal use.", false},
	DynamicLabelRecordNotInUse:        {"dynamicLabelRecordNotInUse", "Its dynamic label chain references a record that is not in use.", false},
	DynamicRecordChainCycle:           {"dynamicRecordChainCycle", "Its dynamic label chain contains a cycle.", false},
	RelationshipNotInUse:              {"relationshipNotInUse", "It references a relationship record that is not in use.", false},
	RelationshipForOtherNode:          {"relationshipForOtherNode", "It references a relationship that does not involve it.", false},
	RelationshipNotFirstInSourceChain: {"relationshipNotFirstInSourceChain", "Its first relationship is not marked first in the source chain.", false},
	RelationshipNotFirstInTargetChain: {"relationshipNotFirstInTargetChain", "Its first relationship is not marked first in the target chain.", false},
	RelationshipGroupNotInUse:         {"relationshipGroupNotInUse", "It references a relationship group record that is not in use.", false},
	RelationshipGroupHasOtherOwner:    {"relationshipGroupHasOtherOwner", "It references a relationship group owned by another node.", false},
	IDIsFreed:                         {"idIsFreed", "The record is in use but its id is marked free by the id generator.", false},
	IDIsNotFreed:                      {"idIsNotFreed", "The record is not in use but its id is not marked free by the id generator.", false},
	PropertyNotInUse:                  {"propertyNotInUse", "It references a property record that is not in use.", false},
	PropertyNotFirstInChain:           {"propertyNotFirstInChain", "It references a property record that is not first in its chain.", false},
	PropertyKeyNotUniqueInChain:       {"propertyKeyNotUniqueInChain", "Its property chain holds the same key more than once.", false},
	PropertyChainCycle:                {"propertyChainCycle", "Its property chain contains a cycle.", false},
	MultiplePropertyOwners:            {"multiplePropertyOwners", "Its property chain is also referenced by another entity.", false},
	NotIndexed:                        {"notIndexed", "It is not indexed by an index it qualifies for.", false},
	IndexedMultipleTimes:              {"indexedMultipleTimes", "It is indexed more than once with the same values.", false},
	UniqueIndexNotUnique:              {"uniqueIndexNotUnique", "It shares its indexed values with another entity in a unique index.", false},
	MissingMandatoryProperty:          {"missingMandatoryProperty", "It is missing a property required by an existence or key constraint.", false},
	PropertyTypeConstraintViolation:   {"propertyTypeConstraintViolation", "It has a property value of a type not allowed by a property type constraint.", false},

	IllegalRelationshipType:              {"illegalRelationshipType", "It carries a relationship type id that is negative or beyond the type token store.", false},
	RelationshipTypeNotInUse:             {"relationshipTypeNotInUse", "It references a relationship type token record that is not in use.", false},
	RelationshipTypeIsInternal:           {"relationshipTypeIsInternal", "It references a relationship type token that is reserved for internal use.", false},
	IllegalSourceNode:                    {"illegalSourceNode", "Its source node id is negative or beyond the node store.", false},
	IllegalTargetNode:                    {"illegalTargetNode", "Its target node id is negative or beyond the node store.", false},
	SourceNodeNotInUse:                   {"sourceNodeNotInUse", "Its source node is not in use.", false},
	TargetNodeNotInUse:                   {"targetNodeNotInUse", "Its target node is not in use.", false},
	SourceNodeDoesNotReferenceBack:       {"sourceNodeDoesNotReferenceBack", "It is first in the source chain but the source node does not reference it.", false},
	TargetNodeDoesNotReferenceBack:       {"targetNodeDoesNotReferenceBack", "It is first in the target chain but the target node does not reference it.", false},
	SourceNodeHasNoRelationships:         {"sourceNodeHasNoRelationships", "It is first in the source chain but the source node has no relationships.", false},
	TargetNodeHasNoRelationships:         {"targetNodeHasNoRelationships", "It is first in the target chain but the target node has no relationships.", false},
	SourceNodeMissingRelationshipGroup:   {"sourceNodeMissingRelationshipGroup", "Its dense source node has no relationship group for its type.", false},
	TargetNodeMissingRelationshipGroup:   {"targetNodeMissingRelationshipGroup", "Its dense target node has no relationship group for its type.", false},
	SourcePrevReferencesOtherNodes:       {"sourcePrevReferencesOtherNodes", "Its previous relationship in the source chain does not involve the source node.", false},
	SourceNextReferencesOtherNodes:       {"sourceNextReferencesOtherNodes", "Its next relationship in the source chain does not involve the source node.", false},
	TargetPrevReferencesOtherNodes:       {"targetPrevReferencesOtherNodes", "Its previous relationship in the target chain does not involve the target node.", false},
	TargetNextReferencesOtherNodes:       {"targetNextReferencesOtherNodes", "Its next relationship in the target chain does not involve the target node.", false},
	SourcePrevDoesNotReferenceBack:       {"sourcePrevDoesNotReferenceBack", "Its previous relationship in the source chain does not reference back.", false},
	SourceNextDoesNotReferenceBack:       {"sourceNextDoesNotReferenceBack", "Its next relationship in the source chain does not reference back.", false},
	TargetPrevDoesNotReferenceBack:       {"targetPrevDoesNotReferenceBack", "Its previous relationship in the target chain does not reference back.", false},
	TargetNextDoesNotReferenceBack:       {"targetNextDoesNotReferenceBack", "Its next relationship in the target chain does not reference back.", false},
	NotUsedRelationshipReferencedInChain: {"notUsedRelationshipReferencedInChain", "It references a relationship in its chains that is not in use.", false},

	NextGroupNotInUse:                                  {"nextGroupNotInUse", "Its next relationship group record is not in use.", false},
	InvalidTypeSortOrder:                               {"invalidTypeSortOrder", "Its next relationship group does not have a greater relationship type.", false},
	NextHasOtherOwner:                                  {"nextHasOtherOwner", "Its next relationship group has a different owner.", false},
	OwnerNotInUse:                                      {"ownerNotInUse", "Its owning node is not in use.", false},
	IllegalOwner:                                       {"illegalOwner", "Its owner id is negative or beyond the node store.", false},
	FirstOutgoingRelationshipNotInUse:                  {"firstOutgoingRelationshipNotInUse", "Its first outgoing relationship is not in use.", false},
	FirstOutgoingRelationshipNotFirstInChain:           {"firstOutgoingRelationshipNotFirstInChain", "Its first outgoing relationship is not first in its chain.", false},
	FirstOutgoingRelationshipOfOtherType:               {"firstOutgoingRelationshipOfOtherType", "Its first outgoing relationship has a different type.", false},
	FirstOutgoingRelationshipDoesNotShareNodeWithGroup: {"firstOutgoingRelationshipDoesNotShareNodeWithGroup", "Its first outgoing relationship does not start at the owning node.", false},
	FirstIncomingRelationshipNotInUse:                  {"firstIncomingRelationshipNotInUse", "Its first incoming relationship is not in use.", false},
	FirstIncomingRelationshipNotFirstInChain:           {"firstIncomingRelationshipNotFirstInChain", "Its first incoming relationship is not first in its chain.", false},
	FirstIncomingRelationshipOfOtherType:               {"firstIncomingRelationshipOfOtherType", "Its first incoming relationship has a different type.", false},
	FirstIncomingRelationshipDoesNotShareNodeWithGroup: {"firstIncomingRelationshipDoesNotShareNodeWithGroup", "Its first incoming relationship does not end at the owning node.", false},
	FirstLoopRelationshipNotInUse:                      {"firstLoopRelationshipNotInUse", "Its first loop relationship is not in use.", false},
	FirstLoopRelationshipNotFirstInChain:               {"firstLoopRelationshipNotFirstInChain", "Its first loop relationship is not first in its chain.", false},
	FirstLoopRelationshipOfOtherType:                   {"firstLoopRelationshipOfOtherType", "Its first loop relationship has a different type.", false},
	FirstLoopRelationshipDoesNotShareNodeWithGroup:     {"firstLoopRelationshipDoesNotShareNodeWithGroup", "Its first loop relationship is not a loop on the owning node.", false},

	InvalidPropertyKey:           {"invalidPropertyKey", "It carries a property key id that is negative or beyond the key token store.", false},
	KeyNotInUse:                  {"keyNotInUse", "It references a property key token record that is not in use.", false},
	PropertyKeyIsInternal:        {"propertyKeyIsInternal", "It references a property key token that is reserved for internal use.", false},
	PrevNotInUse:                 {"prevNotInUse", "Its previous record is not in use.", false},
	NextNotInUse:                 {"nextNotInUse", "Its next record is not in use.", false},
	PreviousDoesNotReferenceBack: {"previousDoesNotReferenceBack", "Its previous record does not reference back.", false},
	NextDoesNotReferenceBack:     {"nextDoesNotReferenceBack", "Its next record does not reference back.", false},
	InvalidPropertyType:          {"invalidPropertyType", "It holds a block of an invalid property type.", false},
	StringNotInUse:               {"stringNotInUse", "Its string value block is not in use.", false},
	ArrayNotInUse:                {"arrayNotInUse", "Its array value block is not in use.", false},
	StringEmpty:                  {"stringEmpty", "Its string value block is empty.", false},
	ArrayEmpty:                   {"arrayEmpty", "Its array value block is empty.", false},
	InvalidPropertyValue:         {"invalidPropertyValue", "It holds a property value that could not be decoded.", false},

	RecordNotFullReferencesNext: {"recordNotFullReferencesNext", "It is not full but references a next block.", true},
	InvalidLength:               {"invalidLength", "Its length is invalid.", false},
	EmptyBlock:                  {"emptyBlock", "It is empty.", true},
	EmptyNextBlock:              {"emptyNextBlock", "Its next block is empty.", true},
	SelfReferentialNext:         {"selfReferentialNext", "Its next block reference is to itself.", false},
	ChainCycle:                  {"chainCycle", "Its dynamic chain contains a cycle.", false},

	NameBlockNotInUse: {"nameBlockNotInUse", "Its name block is not in use.", false},
	EmptyName:         {"emptyName", "Its name is empty.", true},

	PropertyKeyNotInUse:                    {"propertyKeyNotInUse", "It references a property key token record that is not in use.", false},
	UniquenessConstraintNotReferencingBack: {"uniquenessConstraintNotReferencingBack", "Its owning constraint does not reference it back.", false},
	ConstraintIndexRuleNotReferencingBack:  {"constraintIndexRuleNotReferencingBack", "Its owned index does not reference it back.", false},
	MissingObligation:                      {"missingObligation", "No rule fulfills the obligation it declares.", false},
	DuplicateObligation:                    {"duplicateObligation", "The obligation it declares is already fulfilled by another rule.", false},
	DuplicateRuleContent:                   {"duplicateRuleContent", "Another rule has the same schema and kind.", false},
	MalformedSchemaRule:                    {"malformedSchemaRule", "It could not be decoded.", false},
	SchemaRuleNotOnline:                    {"schemaRuleNotOnline", "It is not online.", false},
	UniquenessConstraintReferencingIndexOfWrongType: {"uniquenessConstraintReferencingIndexOfWrongType", "Its owned index is not a unique range index.", false},

	NodeNotInUse:                 {"nodeNotInUse", "It references a node record that is not in use.", false},
	NodeDoesNotHaveExpectedLabel: {"nodeDoesNotHaveExpectedLabel", "The indexed node does not have the indexed label.", false},
	NodeLabelNotInIndex:          {"nodeLabelNotInIndex", "The node has a label that is missing from the label index.", false},
	RelationshipDoesNotHaveExpectedRelationshipType: {"relationshipDoesNotHaveExpectedRelationshipType", "The indexed relationship does not have the indexed type.", false},
	RelationshipTypeNotInIndex:                      {"relationshipTypeNotInIndex", "The relationship type is missing from the relationship type index.", false},

	NodeIndexedWhenShouldNot:           {"nodeIndexedWhenShouldNot", "The indexed node does not qualify for the index.", false},
	RelationshipIndexedWhenShouldNot:   {"relationshipIndexedWhenShouldNot", "The indexed relationship does not qualify for the index.", false},
	NodeIndexedWithWrongValues:         {"nodeIndexedWithWrongValues", "The node is indexed with values it does not have.", false},
	RelationshipIndexedWithWrongValues: {"relationshipIndexedWithWrongValues", "The relationship is indexed with values it does not have.", false},

	InconsistentNodeCount:         {"inconsistentNodeCount", "The stored node count does not match the observed count.", false},
	InconsistentRelationshipCount: {"inconsistentRelationshipCount", "The stored relationship count does not match the observed count.", false},

	MalformedRecord: {"malformedRecord", "It could not be decoded.", false},
}

func (s Kind) IsValid() bool {
	return s > KindNone && s < numKinds
}

// Method is the name findings of this kind are grouped under.
func (s Kind) Method() string {
	if s.IsValid() {
		return kinds[s].method
	}

	return fmt.Sprintf("Kind(%d)", uint16(s))
}

func (s Kind) Message() string {
	if s.IsValid() {
		return kinds[s].message
	}

	return ""
}

func (s Kind) IsWarning() bool {
	return s.IsValid() && kinds[s].warning
}

func (s Kind) String() string {
	return s.Method()
}

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	all := make([]Kind, 0, numKinds-1)

	for next := LabelNotInUse; next < numKinds; next++ {
		all = append(all, next)
	}

	return all
}
