package checker

import (
	"context"

	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/report"
)

// chainSide names the kinds reported for the chain of one end of a relationship.
type chainSide struct {
	prevReferencesOtherNodes report.Kind
	nextReferencesOtherNodes report.Kind
	prevDoesNotReferenceBack report.Kind
	nextDoesNotReferenceBack report.Kind
}

var (
	sourceChain = chainSide{
		prevReferencesOtherNodes: report.SourcePrevReferencesOtherNodes,
		nextReferencesOtherNodes: report.SourceNextReferencesOtherNodes,
		prevDoesNotReferenceBack: report.SourcePrevDoesNotReferenceBack,
		nextDoesNotReferenceBack: report.SourceNextDoesNotReferenceBack,
	}

	targetChain = chainSide{
		prevReferencesOtherNodes: report.TargetPrevReferencesOtherNodes,
		nextReferencesOtherNodes: report.TargetNextReferencesOtherNodes,
		prevDoesNotReferenceBack: report.TargetPrevDoesNotReferenceBack,
		nextDoesNotReferenceBack: report.TargetNextDoesNotReferenceBack,
	}
)

// RelationshipChainChecker verifies that the neighbours of a relationship in both of its chains point back at it.
type RelationshipChainChecker struct {
	context *Context
}

func NewRelationshipChainChecker(checkContext *Context) *RelationshipChainChecker {
	return &RelationshipChainChecker{
		context: checkContext,
	}
}

func (s *RelationshipChainChecker) Check(ctx context.Context, round Round) error {
	progress := NewProgressMonitor("relationship chains", round.Relationships.Size())

	return s.context.Execution.RunRange(ctx, "relationship chains", round.Relationships, func(ctx context.Context, chunk IDRange) error {
		if err := s.checkChunk(ctx, chunk); err != nil {
			return err
		}

		progress.Add(ctx, chunk.Size())
		return nil
	})
}

func (s *RelationshipChainChecker) checkChunk(ctx context.Context, chunk IDRange) error {
	var (
		checkContext  = s.context
		relationships = checkContext.Stores.Relationships
	)

	for id := chunk.From; id < chunk.To; id++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		relationship, err := loadForce(relationships, id)
		if err != nil {
			return err
		}

		if !relationship.InUse {
			continue
		}

		if err := s.checkSide(relationship, relationship.FirstNode, relationship.FirstPrevRel, relationship.FirstNextRel, relationship.FirstInFirstChain, sourceChain); err != nil {
			return err
		}

		if !relationship.IsLoop() {
			if err := s.checkSide(relationship, relationship.SecondNode, relationship.SecondPrevRel, relationship.SecondNextRel, relationship.FirstInSecondChain, targetChain); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkSide checks the prev and next neighbours of the relationship in the chain of one node. The prev pointer of
// the first relationship in a chain holds the chain degree and is not followed.
func (s *RelationshipChainChecker) checkSide(relationship record.Relationship, nodeID, prevID, nextID int64, firstInChain bool, side chainSide) error {
	if !firstInChain && prevID != record.NullReference {
		prev, err := loadForce(s.context.Stores.Relationships, prevID)
		if err != nil {
			return err
		}

		s.checkNeighbour(relationship, prev, nodeID, true, side.prevReferencesOtherNodes, side.prevDoesNotReferenceBack)
	}

	if nextID != record.NullReference {
		next, err := loadForce(s.context.Stores.Relationships, nextID)
		if err != nil {
			return err
		}

		s.checkNeighbour(relationship, next, nodeID, false, side.nextReferencesOtherNodes, side.nextDoesNotReferenceBack)
	}

	return nil
}

func (s *RelationshipChainChecker) checkNeighbour(relationship, neighbour record.Relationship, nodeID int64, isPrev bool, referencesOtherNodes, doesNotReferenceBack report.Kind) {
	if !neighbour.InUse {
		s.context.reportf(record.TypeRelationship, report.NotUsedRelationshipReferencedInChain, relationship, neighbour)
		return
	}

	if !neighbour.HasNode(nodeID) {
		s.context.reportf(record.TypeRelationship, referencesOtherNodes, relationship, neighbour)
	}

	neighbourPrev, neighbourNext, neighbourFirst, _ := neighbour.ChainLinks(nodeID)

	// Both kinds fire for a neighbour that belongs to another node's chain
	if isPrev && neighbourNext != relationship.ID {
		s.context.reportf(record.TypeRelationship, doesNotReferenceBack, relationship, neighbour)
	} else if !isPrev && (neighbourFirst || neighbourPrev != relationship.ID) {
		s.context.reportf(record.TypeRelationship, doesNotReferenceBack, relationship, neighbour)
	}
}
