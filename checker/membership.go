package checker

import (
	"sync"

	"github.com/specterops/recordcheck/cardinality"
)

// GroupMembership records the (node, relationship type) pairs that own a relationship group. Node ids are kept
// in one bitmap per relationship type so the full range of both ids is preserved.
type GroupMembership struct {
	byType map[int32]cardinality.IDSet
	lock   sync.RWMutex
}

func NewGroupMembership() *GroupMembership {
	return &GroupMembership{
		byType: map[int32]cardinality.IDSet{},
	}
}

func (s *GroupMembership) Add(nodeID int64, relationshipType int32) {
	s.lock.Lock()
	defer s.lock.Unlock()

	nodeIDs, found := s.byType[relationshipType]
	if !found {
		nodeIDs = cardinality.NewIDSet()
		s.byType[relationshipType] = nodeIDs
	}

	nodeIDs.Add(nodeID)
}

func (s *GroupMembership) Contains(nodeID int64, relationshipType int32) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	nodeIDs, found := s.byType[relationshipType]
	return found && nodeIDs.Contains(nodeID)
}

func (s *GroupMembership) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()

	clear(s.byType)
}
