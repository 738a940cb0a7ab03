package record

import "fmt"

type Relationship struct {
	ID                 int64
	InUse              bool
	Corrupt            bool
	FirstNode          int64
	SecondNode         int64
	Type               int32
	FirstPrevRel       int64
	FirstNextRel       int64
	SecondPrevRel      int64
	SecondNextRel      int64
	FirstInFirstChain  bool
	FirstInSecondChain bool
	NextProp           int64
}

func NewRelationship(id int64) Relationship {
	return Relationship{
		ID:            id,
		FirstNode:     NullReference,
		SecondNode:    NullReference,
		Type:          -1,
		FirstPrevRel:  NullReference,
		FirstNextRel:  NullReference,
		SecondPrevRel: NullReference,
		SecondNextRel: NullReference,
		NextProp:      NullReference,
	}
}

func (s Relationship) RecordID() int64 {
	return s.ID
}

func (s Relationship) IsInUse() bool {
	return s.InUse
}

func (s Relationship) IsCorrupt() bool {
	return s.Corrupt
}

// IsLoop is true when both ends of the relationship are the same node.
func (s Relationship) IsLoop() bool {
	return s.FirstNode == s.SecondNode
}

// HasNode is true when the given node id is either end of the relationship.
func (s Relationship) HasNode(nodeID int64) bool {
	return s.FirstNode == nodeID || s.SecondNode == nodeID
}

// ChainLinks returns the prev and next pointers along with the first-in-chain flag for the chain of the given
// node. The boolean return is false when the node is neither end of this relationship.
func (s Relationship) ChainLinks(nodeID int64) (int64, int64, bool, bool) {
	switch nodeID {
	case s.FirstNode:
		return s.FirstPrevRel, s.FirstNextRel, s.FirstInFirstChain, true
	case s.SecondNode:
		return s.SecondPrevRel, s.SecondNextRel, s.FirstInSecondChain, true
	default:
		return NullReference, NullReference, false, false
	}
}

func (s Relationship) String() string {
	return fmt.Sprintf("Relationship[%d,used=%t,source=%d,target=%d,type=%d,sPrev=%s,sNext=%s,tPrev=%s,tNext=%s,prop=%s,sFirst=%t,tFirst=%t]",
		s.ID, s.InUse, s.FirstNode, s.SecondNode, s.Type,
		formatReference(s.FirstPrevRel), formatReference(s.FirstNextRel),
		formatReference(s.SecondPrevRel), formatReference(s.SecondNextRel),
		formatReference(s.NextProp), s.FirstInFirstChain, s.FirstInSecondChain)
}

type RelationshipGroup struct {
	ID        int64
	InUse     bool
	Corrupt   bool
	Owner     int64
	Type      int32
	Next      int64
	FirstOut  int64
	FirstIn   int64
	FirstLoop int64
}

func NewRelationshipGroup(id int64) RelationshipGroup {
	return RelationshipGroup{
		ID:        id,
		Owner:     NullReference,
		Type:      -1,
		Next:      NullReference,
		FirstOut:  NullReference,
		FirstIn:   NullReference,
		FirstLoop: NullReference,
	}
}

func (s RelationshipGroup) RecordID() int64 {
	return s.ID
}

func (s RelationshipGroup) IsInUse() bool {
	return s.InUse
}

func (s RelationshipGroup) IsCorrupt() bool {
	return s.Corrupt
}

func (s RelationshipGroup) String() string {
	return fmt.Sprintf("RelationshipGroup[%d,used=%t,owner=%d,type=%d,next=%s,out=%s,in=%s,loop=%s]",
		s.ID, s.InUse, s.Owner, s.Type, formatReference(s.Next),
		formatReference(s.FirstOut), formatReference(s.FirstIn), formatReference(s.FirstLoop))
}
