package checker

import (
	"fmt"
	"math"

	"github.com/specterops/recordcheck/util/size"
)

// Round is one full pass of the graph checkers. Nodes selects the entities held in the cache; Relationships
// selects the relationships whose own records are checked in this pass.
type Round struct {
	Index         int
	Nodes         IDRange
	Relationships IDRange
}

func (s Round) IsFirst() bool {
	return s.Index == 0
}

func (s Round) String() string {
	return fmt.Sprintf("round %d (nodes %s, relationships %s)", s.Index, s.Nodes, s.Relationships)
}

// EntityBasedMemoryLimiter sizes rounds so that the cache state of one round's entities fits in a memory budget.
type EntityBasedMemoryLimiter struct {
	budget           size.Size
	bytesPerEntity   int64
	entitiesPerRound int64
}

// NewEntityBasedMemoryLimiter never yields fewer than one entity per round, even for a budget smaller than a
// single entity.
func NewEntityBasedMemoryLimiter(budget size.Size, bytesPerEntity int64) *EntityBasedMemoryLimiter {
	bytesPerEntity = max(1, bytesPerEntity)

	entitiesPerRound := int64(math.MaxInt64)
	if budget.Bytes() < math.MaxInt64 {
		entitiesPerRound = max(1, int64(budget.Bytes())/bytesPerEntity)
	}

	return &EntityBasedMemoryLimiter{
		budget:           budget,
		bytesPerEntity:   bytesPerEntity,
		entitiesPerRound: entitiesPerRound,
	}
}

func (s *EntityBasedMemoryLimiter) EntitiesPerRound() int64 {
	return s.entitiesPerRound
}

func (s *EntityBasedMemoryLimiter) roundsFor(highID int64) int64 {
	if highID <= 0 {
		return 0
	}

	return (highID-1)/s.entitiesPerRound + 1
}

// CacheCapacity is the number of entities the cache must hold for the given node high id.
func (s *EntityBasedMemoryLimiter) CacheCapacity(nodeHighID int64) int64 {
	return max(1, min(nodeHighID, s.entitiesPerRound))
}

// Rounds slices both id spaces into consecutive rounds. There is always at least one round; a round past the end
// of one of the id spaces carries an empty range for it.
func (s *EntityBasedMemoryLimiter) Rounds(nodeHighID, relationshipHighID int64) []Round {
	numRounds := max(1, s.roundsFor(nodeHighID), s.roundsFor(relationshipHighID))
	rounds := make([]Round, numRounds)

	for idx := range rounds {
		from := int64(idx) * s.entitiesPerRound
		to := from + s.entitiesPerRound

		if to < from {
			to = math.MaxInt64
		}

		rounds[idx] = Round{
			Index:         idx,
			Nodes:         NewIDRange(min(from, nodeHighID), min(to, max(0, nodeHighID))),
			Relationships: NewIDRange(min(from, relationshipHighID), min(to, max(0, relationshipHighID))),
		}
	}

	return rounds
}

func (s *EntityBasedMemoryLimiter) String() string {
	return fmt.Sprintf("budget %s, %d bytes per entity, %d entities per round", s.budget, s.bytesPerEntity, s.entitiesPerRound)
}
