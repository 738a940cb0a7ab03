package checker

import (
	"context"

	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/report"
)

// firstRelationshipKinds are the kinds reported for one of the first-X pointers of a group.
type firstRelationshipKinds struct {
	// endpoint reports whether the relationship hangs off the owner in this direction and whether it is first in
	// that chain
	endpoint        func(relationship record.Relationship, owner int64) (bool, bool)
	notInUse        report.Kind
	notFirstInChain report.Kind
	ofOtherType     report.Kind
	doesNotShare    report.Kind
}

var (
	firstOutgoing = firstRelationshipKinds{
		endpoint: func(relationship record.Relationship, owner int64) (bool, bool) {
			return relationship.FirstNode == owner, relationship.FirstInFirstChain
		},
		notInUse:        report.FirstOutgoingRelationshipNotInUse,
		notFirstInChain: report.FirstOutgoingRelationshipNotFirstInChain,
		ofOtherType:     report.FirstOutgoingRelationshipOfOtherType,
		doesNotShare:    report.FirstOutgoingRelationshipDoesNotShareNodeWithGroup,
	}

	firstIncoming = firstRelationshipKinds{
		endpoint: func(relationship record.Relationship, owner int64) (bool, bool) {
			return relationship.SecondNode == owner, relationship.FirstInSecondChain
		},
		notInUse:        report.FirstIncomingRelationshipNotInUse,
		notFirstInChain: report.FirstIncomingRelationshipNotFirstInChain,
		ofOtherType:     report.FirstIncomingRelationshipOfOtherType,
		doesNotShare:    report.FirstIncomingRelationshipDoesNotShareNodeWithGroup,
	}

	firstLoop = firstRelationshipKinds{
		endpoint: func(relationship record.Relationship, owner int64) (bool, bool) {
			return relationship.FirstNode == owner && relationship.SecondNode == owner, relationship.FirstInFirstChain
		},
		notInUse:        report.FirstLoopRelationshipNotInUse,
		notFirstInChain: report.FirstLoopRelationshipNotFirstInChain,
		ofOtherType:     report.FirstLoopRelationshipOfOtherType,
		doesNotShare:    report.FirstLoopRelationshipDoesNotShareNodeWithGroup,
	}
)

// RelationshipGroupChecker checks relationship group records. Record local checks run in the first round; owner
// checks and group membership run in every round for the owners held in the node cache.
type RelationshipGroupChecker struct {
	context *Context
}

func NewRelationshipGroupChecker(checkContext *Context) *RelationshipGroupChecker {
	return &RelationshipGroupChecker{
		context: checkContext,
	}
}

func (s *RelationshipGroupChecker) Check(ctx context.Context, round Round) error {
	var (
		checkContext = s.context
		groupRange   = NewIDRange(0, checkContext.Stores.RelationshipGroups.HighID())
		progress     = NewProgressMonitor("relationship groups", groupRange.Size())
	)

	checkContext.groupMembership.Clear()

	return checkContext.Execution.RunRange(ctx, "relationship groups", groupRange, func(ctx context.Context, chunk IDRange) error {
		if err := s.checkChunk(ctx, round, chunk); err != nil {
			return err
		}

		progress.Add(ctx, chunk.Size())
		return nil
	})
}

func (s *RelationshipGroupChecker) checkChunk(ctx context.Context, round Round, chunk IDRange) error {
	var (
		checkContext = s.context
		groups       = checkContext.Stores.RelationshipGroups
		client       = checkContext.Cache.Client()
		reporter     = checkContext
	)

	if !round.IsFirst() {
		reporter = checkContext.WithoutReporting()
	}

	for id := chunk.From; id < chunk.To; id++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		group, err := loadForCheck(groups, id, reporter)
		if err != nil {
			return err
		}

		if round.IsFirst() {
			checkIDGenerator(groups, group, checkContext)
		}

		if group.Corrupt || !group.InUse {
			continue
		}

		if round.IsFirst() {
			if err := s.checkGroup(group); err != nil {
				return err
			}
		}

		if client.Contains(group.Owner) {
			if !client.GetBool(group.Owner, SlotInUse) {
				checkContext.reportf(record.TypeRelationshipGroup, report.OwnerNotInUse, group, nodeRef(group.Owner))
			}

			checkContext.groupMembership.Add(group.Owner, group.Type)
		}
	}

	return nil
}

func (s *RelationshipGroupChecker) checkGroup(group record.RelationshipGroup) error {
	var (
		checkContext = s.context
		groups       = checkContext.Stores.RelationshipGroups
	)

	if group.Owner < 0 || group.Owner >= checkContext.Stores.Nodes.HighID() {
		checkContext.reportf(record.TypeRelationshipGroup, report.IllegalOwner, group)
	}

	switch checkContext.Tokens.RelationshipTypes.Use(int64(group.Type)) {
	case TokenIllegal:
		checkContext.reportf(record.TypeRelationshipGroup, report.IllegalRelationshipType, group)
	case TokenNotInUse:
		checkContext.reportf(record.TypeRelationshipGroup, report.RelationshipTypeNotInUse, group, relationshipTypeRef(group.Type))
	}

	if group.Next != record.NullReference {
		next, err := loadForce(groups, group.Next)
		if err != nil {
			return err
		}

		if !next.InUse {
			checkContext.reportf(record.TypeRelationshipGroup, report.NextGroupNotInUse, group, next)
		} else {
			if next.Owner != group.Owner {
				checkContext.reportf(record.TypeRelationshipGroup, report.NextHasOtherOwner, group, next)
			}

			if next.Type <= group.Type {
				checkContext.reportf(record.TypeRelationshipGroup, report.InvalidTypeSortOrder, group, next)
			}
		}
	}

	for _, first := range []struct {
		id    int64
		kinds firstRelationshipKinds
	}{
		{id: group.FirstOut, kinds: firstOutgoing},
		{id: group.FirstIn, kinds: firstIncoming},
		{id: group.FirstLoop, kinds: firstLoop},
	} {
		if first.id == record.NullReference {
			continue
		}

		if err := s.checkFirstRelationship(group, first.id, first.kinds); err != nil {
			return err
		}
	}

	return nil
}

func (s *RelationshipGroupChecker) checkFirstRelationship(group record.RelationshipGroup, relationshipID int64, kinds firstRelationshipKinds) error {
	checkContext := s.context

	relationship, err := loadForce(checkContext.Stores.Relationships, relationshipID)
	if err != nil {
		return err
	}

	if !relationship.InUse {
		checkContext.reportf(record.TypeRelationshipGroup, kinds.notInUse, group, relationship)
		return nil
	}

	if relationship.Type != group.Type {
		checkContext.reportf(record.TypeRelationshipGroup, kinds.ofOtherType, group, relationship)
	}

	sharesNode, firstInChain := kinds.endpoint(relationship, group.Owner)

	if !sharesNode {
		checkContext.reportf(record.TypeRelationshipGroup, kinds.doesNotShare, group, relationship)
	} else if !firstInChain {
		checkContext.reportf(record.TypeRelationshipGroup, kinds.notFirstInChain, group, relationship)
	}

	return nil
}
