package checker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/specterops/recordcheck/index"
	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/report"
)

// DefaultSmallIndexThreshold is the estimated entity count at or below which an index is walked as one partition.
const DefaultSmallIndexThreshold uint64 = 10_000

// IndexSizes decides how many partitions each value index is read in.
type IndexSizes struct {
	threshold  uint64
	numWorkers int
}

func NewIndexSizes(threshold uint64, numWorkers int) IndexSizes {
	return IndexSizes{
		threshold:  threshold,
		numWorkers: max(1, numWorkers),
	}
}

func (s IndexSizes) IsSmall(valueIndex index.ValueIndex) bool {
	return valueIndex.EstimatedEntityCount() <= s.threshold
}

func (s IndexSizes) Partitions(valueIndex index.ValueIndex) int {
	if s.IsSmall(valueIndex) {
		return 1
	}

	return s.numWorkers
}

// entityKinds are the kinds reported for index entries of one entity type.
type entityKinds struct {
	notInUse         report.Kind
	indexedWhenNot   report.Kind
	wrongValues      report.Kind
	entityRecordType record.Type
}

var (
	nodeIndexKinds = entityKinds{
		notInUse:         report.NodeNotInUse,
		indexedWhenNot:   report.NodeIndexedWhenShouldNot,
		wrongValues:      report.NodeIndexedWithWrongValues,
		entityRecordType: record.TypeNode,
	}

	relationshipIndexKinds = entityKinds{
		notInUse:         report.RelationshipNotInUse,
		indexedWhenNot:   report.RelationshipIndexedWhenShouldNot,
		wrongValues:      report.RelationshipIndexedWithWrongValues,
		entityRecordType: record.TypeRelationship,
	}
)

// duplicateEntries pairs two entries of a unique index that hold the same value tuple for different entities.
type duplicateEntries struct {
	first  index.Entry
	second index.Entry
}

func (s duplicateEntries) String() string {
	return fmt.Sprintf("%s and %s", s.first, s.second)
}

// IndexChecker walks every entry of the online value indexes and checks it against the entity it points at.
type IndexChecker struct {
	context *Context
	sizes   IndexSizes
}

func NewIndexChecker(checkContext *Context) *IndexChecker {
	return &IndexChecker{
		context: checkContext,
		sizes:   NewIndexSizes(checkContext.SmallIndexThreshold, checkContext.Execution.NumWorkers()),
	}
}

func (s *IndexChecker) Check(ctx context.Context) error {
	var tasks []Task

	for _, entityType := range []record.EntityType{record.EntityNode, record.EntityRelationship} {
		for _, descriptor := range s.context.ValueIndexes(entityType) {
			valueIndex, found := s.context.Indexes.ValueIndex(descriptor.ID)
			if !found {
				continue
			}

			var (
				partitions = s.sizes.Partitions(valueIndex)
				readers    = valueIndex.NewAllEntriesValueReader(partitions)
			)

			slog.DebugContext(ctx, "Checking value index",
				slog.String("index", descriptor.String()),
				slog.Uint64("estimated_entities", valueIndex.EstimatedEntityCount()),
				slog.Int("partitions", len(readers)))

			for _, reader := range readers {
				tasks = append(tasks, func(ctx context.Context) error {
					return s.checkPartition(ctx, descriptor, reader)
				})
			}
		}
	}

	return s.context.Execution.Run(ctx, "indexes", tasks...)
}

// checkPartition checks the entries of one reader. Duplicate detection only compares adjacent entries of the same
// partition; a partition never splits a group of equal value tuples and may hold no entries at all.
func (s *IndexChecker) checkPartition(ctx context.Context, descriptor index.Descriptor, reader index.EntryReader) error {
	var (
		previous    index.Entry
		hasPrevious bool
	)

	for entry, ok := reader.Next(); ok; entry, ok = reader.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.checkEntry(descriptor, entry); err != nil {
			return err
		}

		if descriptor.Unique && hasPrevious && previous.EntityID != entry.EntityID && record.CompareTuples(previous.Values, entry.Values) == 0 {
			s.context.reportf(record.TypeIndex, report.UniqueIndexNotUnique, descriptor, duplicateEntries{
				first:  previous,
				second: entry,
			})
		}

		previous = entry
		hasPrevious = true
	}

	return nil
}

func (s *IndexChecker) checkEntry(descriptor index.Descriptor, entry index.Entry) error {
	var (
		checkContext = s.context
		silent       = checkContext.WithoutReporting()
		kinds        = nodeIndexKinds
		entity       fmt.Stringer
		tokens       []int64
		firstProp    int64
	)

	if descriptor.EntityType == record.EntityRelationship {
		kinds = relationshipIndexKinds

		relationship, err := loadForce(checkContext.Stores.Relationships, entry.EntityID)
		if err != nil {
			return err
		}

		if !relationship.InUse {
			checkContext.reportf(record.TypeIndex, kinds.notInUse, entry, descriptor)
			return nil
		}

		entity = relationship
		tokens = []int64{int64(relationship.Type)}
		firstProp = relationship.NextProp
	} else {
		node, err := loadForce(checkContext.Stores.Nodes, entry.EntityID)
		if err != nil {
			return err
		}

		if !node.InUse {
			checkContext.reportf(record.TypeIndex, kinds.notInUse, entry, descriptor)
			return nil
		}

		if tokens, err = silent.nodeLabels(node); err != nil {
			return err
		}

		entity = node
		firstProp = node.NextProp
	}

	values, err := silent.readProperties(propertyOwner{
		recordType: kinds.entityRecordType,
		subject:    entity,
		firstProp:  firstProp,
	})

	if err != nil {
		return err
	}

	if !qualifies(descriptor, tokens, values) {
		checkContext.reportf(record.TypeIndex, kinds.indexedWhenNot, entry, entity)
	} else if record.CompareTuples(values.Tuple(descriptor.PropertyKeys), entry.Values) != 0 {
		checkContext.reportf(record.TypeIndex, kinds.wrongValues, entry, entity)
	}

	return nil
}
