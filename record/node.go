package record

import (
	"fmt"
	"strings"
)

// MaxInlineLabels is the number of label ids a node can carry without spilling to a dynamic label chain.
const MaxInlineLabels = 7

// LabelField is either an inline set of label ids or a pointer to the first record of a dynamic label chain.
type LabelField struct {
	Dynamic bool
	Inline  []int64
	FirstID int64
}

func InlineLabels(labels ...int64) LabelField {
	return LabelField{
		Inline:  labels,
		FirstID: NullReference,
	}
}

func DynamicLabels(firstID int64) LabelField {
	return LabelField{
		Dynamic: true,
		FirstID: firstID,
	}
}

func (s LabelField) String() string {
	if s.Dynamic {
		return fmt.Sprintf("Dynamic(%s)", formatReference(s.FirstID))
	}

	labelStrs := make([]string, len(s.Inline))

	for idx, label := range s.Inline {
		labelStrs[idx] = fmt.Sprintf("%d", label)
	}

	return "Inline[" + strings.Join(labelStrs, ",") + "]"
}

type Node struct {
	ID       int64
	InUse    bool
	Corrupt  bool
	Dense    bool
	NextRel  int64
	NextProp int64
	Labels   LabelField
}

func NewNode(id int64) Node {
	return Node{
		ID:       id,
		NextRel:  NullReference,
		NextProp: NullReference,
		Labels:   InlineLabels(),
	}
}

func (s Node) RecordID() int64 {
	return s.ID
}

func (s Node) IsInUse() bool {
	return s.InUse
}

func (s Node) IsCorrupt() bool {
	return s.Corrupt
}

func (s Node) String() string {
	return fmt.Sprintf("Node[%d,used=%t,dense=%t,rel=%s,prop=%s,labels=%s]",
		s.ID, s.InUse, s.Dense, formatReference(s.NextRel), formatReference(s.NextProp), s.Labels)
}
