package checker

import (
	"context"
	"math"
	"slices"

	"github.com/specterops/recordcheck/index"
	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/report"
)

func relationshipTypeRef(relationshipType int32) entityRef {
	return entityRef{
		recordType: record.TypeRelationshipTypeToken,
		id:         int64(relationshipType),
	}
}

// endpointKinds are the kinds reported for one end of a relationship.
type endpointKinds struct {
	notInUse             report.Kind
	doesNotReferenceBack report.Kind
	hasNoRelationships   report.Kind
	missingGroup         report.Kind
	notFirstInChain      report.Kind
}

var (
	sourceEndpoint = endpointKinds{
		notInUse:             report.SourceNodeNotInUse,
		doesNotReferenceBack: report.SourceNodeDoesNotReferenceBack,
		hasNoRelationships:   report.SourceNodeHasNoRelationships,
		missingGroup:         report.SourceNodeMissingRelationshipGroup,
		notFirstInChain:      report.RelationshipNotFirstInSourceChain,
	}

	targetEndpoint = endpointKinds{
		notInUse:             report.TargetNodeNotInUse,
		doesNotReferenceBack: report.TargetNodeDoesNotReferenceBack,
		hasNoRelationships:   report.TargetNodeHasNoRelationships,
		missingGroup:         report.TargetNodeMissingRelationshipGroup,
		notFirstInChain:      report.RelationshipNotFirstInTargetChain,
	}
)

// RelationshipChecker checks relationship records along with their endpoints. The records of a round's
// relationship range are checked on their own; the endpoints held in the node cache are checked against every
// relationship in the store.
type RelationshipChecker struct {
	context *Context
}

func NewRelationshipChecker(checkContext *Context) *RelationshipChecker {
	return &RelationshipChecker{
		context: checkContext,
	}
}

func (s *RelationshipChecker) Check(ctx context.Context, round Round) error {
	var (
		checkContext = s.context
		scanRange    = round.Relationships
	)

	if round.IsFirst() && checkContext.Flags.CheckIndexes {
		s.checkIndexedPastHighID()
	}

	if !round.Nodes.IsEmpty() {
		scanRange = NewIDRange(0, checkContext.Stores.Relationships.HighID())
	}

	progress := NewProgressMonitor("relationships", scanRange.Size())

	if err := checkContext.Execution.RunRange(ctx, "relationships", scanRange, func(ctx context.Context, chunk IDRange) error {
		if err := s.checkChunk(ctx, round, chunk); err != nil {
			return err
		}

		progress.Add(ctx, chunk.Size())
		return nil
	}); err != nil {
		return err
	}

	return checkContext.Execution.RunRange(ctx, "nodes referencing unused relationships", round.Nodes, s.checkNodesReferencingUnusedRelationships)
}

func (s *RelationshipChecker) checkIndexedPastHighID() {
	typeIndex, found := s.context.TokenIndex(record.EntityRelationship)
	if !found {
		return
	}

	reader := typeIndex.Entries(s.context.Stores.Relationships.HighID(), math.MaxInt64)

	for entry, ok := reader.Next(); ok; entry, ok = reader.Next() {
		s.context.reportf(record.TypeRelationshipTypeScanDocument, report.RelationshipNotInUse, entry, relationshipRef(entry.EntityID))
	}
}

func (s *RelationshipChecker) typeIndexEntries(chunk IDRange) map[int64]index.TokenEntry {
	typeIndex, found := s.context.TokenIndex(record.EntityRelationship)
	if !found || !s.context.Flags.CheckIndexes {
		return nil
	}

	var (
		entries = map[int64]index.TokenEntry{}
		reader  = typeIndex.Entries(chunk.From, chunk.To)
	)

	for entry, ok := reader.Next(); ok; entry, ok = reader.Next() {
		entries[entry.EntityID] = entry
	}

	return entries
}

func (s *RelationshipChecker) checkChunk(ctx context.Context, round Round, chunk IDRange) error {
	var (
		checkContext  = s.context
		relationships = checkContext.Stores.Relationships
		client        = checkContext.Cache.Client()
		counts        = localCounts{}
		silent        = checkContext.WithoutReporting()
		ownedChunk    = chunk.Intersect(round.Relationships)
		typeEntries   = s.typeIndexEntries(ownedChunk)
	)

	for id := chunk.From; id < chunk.To; id++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			owned    = ownedChunk.Contains(id)
			reporter = checkContext
		)

		if !owned {
			reporter = silent
		}

		relationship, err := loadForCheck(relationships, id, reporter)
		if err != nil {
			return err
		}

		if owned {
			checkIDGenerator(relationships, relationship, checkContext)
		}

		if relationship.Corrupt || !relationship.InUse {
			if entry, indexed := typeEntries[id]; indexed && owned {
				checkContext.reportf(record.TypeRelationshipTypeScanDocument, report.RelationshipNotInUse, entry, relationship)
			}

			continue
		}

		if owned {
			if err := s.checkRelationship(relationship, typeEntries, counts); err != nil {
				return err
			}
		}

		if client.Contains(relationship.FirstNode) {
			s.checkEndpoint(client, relationship, relationship.FirstNode, relationship.FirstInFirstChain, sourceEndpoint)
		}

		if !relationship.IsLoop() && client.Contains(relationship.SecondNode) {
			s.checkEndpoint(client, relationship, relationship.SecondNode, relationship.FirstInSecondChain, targetEndpoint)
		}
	}

	checkContext.Counts.merge(counts)
	return nil
}

func (s *RelationshipChecker) checkRelationship(relationship record.Relationship, typeEntries map[int64]index.TokenEntry, counts localCounts) error {
	var (
		checkContext = s.context
		nodeHighID   = checkContext.Stores.Nodes.HighID()
	)

	if relationship.FirstNode < 0 || relationship.FirstNode >= nodeHighID {
		checkContext.reportf(record.TypeRelationship, report.IllegalSourceNode, relationship)
	}

	if relationship.SecondNode < 0 || relationship.SecondNode >= nodeHighID {
		checkContext.reportf(record.TypeRelationship, report.IllegalTargetNode, relationship)
	}

	switch checkContext.Tokens.RelationshipTypes.Use(int64(relationship.Type)) {
	case TokenIllegal:
		checkContext.reportf(record.TypeRelationship, report.IllegalRelationshipType, relationship)
	case TokenNotInUse:
		checkContext.reportf(record.TypeRelationship, report.RelationshipTypeNotInUse, relationship, relationshipTypeRef(relationship.Type))
	case TokenInternal:
		checkContext.reportf(record.TypeRelationship, report.RelationshipTypeIsInternal, relationship, relationshipTypeRef(relationship.Type))
	}

	values, err := checkContext.readProperties(propertyOwner{
		recordType: record.TypeRelationship,
		subject:    relationship,
		firstProp:  relationship.NextProp,
	})

	if err != nil {
		return err
	}

	counts.countRelationship(relationship.Type, checkContext.Tokens.RelationshipTypes)

	if typeEntries != nil {
		s.checkTypeIndexEntry(relationship, typeEntries)
	}

	checkContext.checkCompliance(complianceSubject{
		entityType: record.EntityRelationship,
		recordType: record.TypeRelationship,
		record:     relationship,
		id:         relationship.ID,
		tokens:     []int64{int64(relationship.Type)},
		values:     values,
	})

	return nil
}

func (s *RelationshipChecker) checkTypeIndexEntry(relationship record.Relationship, typeEntries map[int64]index.TokenEntry) {
	var (
		checkContext = s.context
		entry        = typeEntries[relationship.ID]
	)

	if checkContext.Tokens.RelationshipTypes.Use(int64(relationship.Type)) == TokenValid && !slices.Contains(entry.Tokens, relationship.Type) {
		checkContext.reportf(record.TypeRelationshipTypeScanDocument, report.RelationshipTypeNotInIndex, relationship, relationshipTypeRef(relationship.Type))
	}

	for _, token := range entry.Tokens {
		if token != relationship.Type {
			checkContext.reportf(record.TypeRelationshipTypeScanDocument, report.RelationshipDoesNotHaveExpectedRelationshipType, entry, relationship)
		}
	}
}

// checkEndpoint checks one end of a relationship against the cached state of its node.
func (s *RelationshipChecker) checkEndpoint(client CacheClient, relationship record.Relationship, nodeID int64, firstInChain bool, kinds endpointKinds) {
	checkContext := s.context

	if !client.GetBool(nodeID, SlotInUse) {
		checkContext.reportf(record.TypeRelationship, kinds.notInUse, relationship, nodeRef(nodeID))
		return
	}

	if client.GetBool(nodeID, SlotDense) {
		if !checkContext.groupMembership.Contains(nodeID, relationship.Type) {
			checkContext.reportf(record.TypeRelationship, kinds.missingGroup, relationship, nodeRef(nodeID))
		}

		return
	}

	cachedRelationship := client.GetInt64(nodeID, SlotRelationshipID)

	if firstInChain {
		switch cachedRelationship {
		case record.NullReference:
			checkContext.reportf(record.TypeRelationship, kinds.hasNoRelationships, relationship, nodeRef(nodeID))
		case relationship.ID:
			client.ClearBool(nodeID, SlotCheckMark)
		default:
			checkContext.reportf(record.TypeRelationship, kinds.doesNotReferenceBack, relationship, nodeRef(nodeID))
		}
	} else if cachedRelationship == relationship.ID {
		// The node points at this relationship but the relationship does not consider itself first
		checkContext.reportf(record.TypeNode, kinds.notFirstInChain, nodeRef(nodeID), relationship)
		client.ClearBool(nodeID, SlotCheckMark)
	}
}

// checkNodesReferencingUnusedRelationships revisits sparse nodes whose first relationship never checked in. Such
// a node points at a relationship that is not in use or that does not have the node as either end.
func (s *RelationshipChecker) checkNodesReferencingUnusedRelationships(ctx context.Context, chunk IDRange) error {
	var (
		checkContext = s.context
		client       = checkContext.Cache.Client()
	)

	for nodeID := chunk.From; nodeID < chunk.To; nodeID++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !client.GetBool(nodeID, SlotCheckMark) {
			continue
		}

		relationship, err := loadForce(checkContext.Stores.Relationships, client.GetInt64(nodeID, SlotRelationshipID))
		if err != nil {
			return err
		}

		if !relationship.InUse {
			checkContext.reportf(record.TypeNode, report.RelationshipNotInUse, nodeRef(nodeID), relationship)
		} else if !relationship.HasNode(nodeID) {
			checkContext.reportf(record.TypeNode, report.RelationshipForOtherNode, nodeRef(nodeID), relationship)
		}
	}

	return nil
}
