package checker

import (
	"context"
	"encoding/binary"
	"math"
	"slices"

	"github.com/specterops/recordcheck/index"
	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/report"
)

func labelRef(label int64) entityRef {
	return entityRef{
		recordType: record.TypeLabelToken,
		id:         label,
	}
}

// decodeDynamicLabels reads the label ids that follow the owning node id in a dynamic label payload.
func decodeDynamicLabels(data []byte) []int64 {
	if len(data) < 8 {
		return nil
	}

	labels := make([]int64, 0, (len(data)-8)/8)

	for offset := 8; offset+8 <= len(data); offset += 8 {
		labels = append(labels, int64(binary.BigEndian.Uint64(data[offset:offset+8])))
	}

	return labels
}

// nodeLabels returns the labels of a node in stored order, following the dynamic label chain when the node has
// one. A broken chain yields the labels read before the break.
func (s *Context) nodeLabels(node record.Node) ([]int64, error) {
	if !node.Labels.Dynamic {
		return node.Labels.Inline, nil
	}

	chain, err := followDynamicChain(s.Stores.NodeLabels, s.Stores.Format.LabelBlockSize, node.Labels.FirstID, chainOwner{
		recordType: record.TypeNode,
		subject:    node,
		notInUse:   report.DynamicLabelRecordNotInUse,
		cycle:      report.DynamicRecordChainCycle,
	}, s)

	return decodeDynamicLabels(chain.Data), err
}

func (s *Context) checkLabels(node record.Node, labels []int64) {
	var (
		outOfOrder = false
		duplicate  = false
	)

	for idx, label := range labels {
		switch s.Tokens.Labels.Use(label) {
		case TokenIllegal:
			s.reportf(record.TypeNode, report.IllegalLabel, node, labelRef(label))
		case TokenNotInUse:
			s.reportf(record.TypeNode, report.LabelNotInUse, node, labelRef(label))
		case TokenInternal:
			s.reportf(record.TypeNode, report.LabelIsInternal, node, labelRef(label))
		}

		if idx > 0 {
			if label < labels[idx-1] {
				outOfOrder = true
			} else if label == labels[idx-1] {
				duplicate = true
			}
		}
	}

	if outOfOrder {
		s.reportf(record.TypeNode, report.LabelsOutOfOrder, node)

		sorted := slices.Sorted(slices.Values(labels))
		duplicate = len(slices.Compact(sorted)) != len(labels)
	}

	if duplicate {
		s.reportf(record.TypeNode, report.LabelDuplicate, node)
	}
}

// NodeChecker checks the node records of a round and fills the node cache for the relationship checkers.
type NodeChecker struct {
	context *Context
}

func NewNodeChecker(checkContext *Context) *NodeChecker {
	return &NodeChecker{
		context: checkContext,
	}
}

func (s *NodeChecker) Check(ctx context.Context, round Round) error {
	if round.IsFirst() && s.context.Flags.CheckIndexes {
		s.checkIndexedPastHighID()
	}

	progress := NewProgressMonitor("nodes", round.Nodes.Size())

	return s.context.Execution.RunRange(ctx, "nodes", round.Nodes, func(ctx context.Context, chunk IDRange) error {
		if err := s.checkChunk(ctx, chunk); err != nil {
			return err
		}

		progress.Add(ctx, chunk.Size())
		return nil
	})
}

// checkIndexedPastHighID reports label index entries for ids that no node record could ever hold.
func (s *NodeChecker) checkIndexedPastHighID() {
	labelIndex, found := s.context.TokenIndex(record.EntityNode)
	if !found {
		return
	}

	reader := labelIndex.Entries(s.context.Stores.Nodes.HighID(), math.MaxInt64)

	for entry, ok := reader.Next(); ok; entry, ok = reader.Next() {
		s.context.reportf(record.TypeLabelScanDocument, report.NodeNotInUse, entry, nodeRef(entry.EntityID))
	}
}

func (s *NodeChecker) labelIndexEntries(chunk IDRange) map[int64]index.TokenEntry {
	labelIndex, found := s.context.TokenIndex(record.EntityNode)
	if !found || !s.context.Flags.CheckIndexes {
		return nil
	}

	var (
		entries = map[int64]index.TokenEntry{}
		reader  = labelIndex.Entries(chunk.From, chunk.To)
	)

	for entry, ok := reader.Next(); ok; entry, ok = reader.Next() {
		entries[entry.EntityID] = entry
	}

	return entries
}

func (s *NodeChecker) checkChunk(ctx context.Context, chunk IDRange) error {
	var (
		checkContext = s.context
		nodes        = checkContext.Stores.Nodes
		client       = checkContext.Cache.Client()
		counts       = localCounts{}
		labelEntries = s.labelIndexEntries(chunk)
	)

	for id := chunk.From; id < chunk.To; id++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		node, err := loadForCheck(nodes, id, checkContext)
		if err != nil {
			return err
		}

		checkIDGenerator(nodes, node, checkContext)

		inUse := node.InUse && !node.Corrupt
		client.PutBool(id, SlotInUse, inUse)

		if !inUse {
			if entry, indexed := labelEntries[id]; indexed {
				checkContext.reportf(record.TypeLabelScanDocument, report.NodeNotInUse, entry, node)
			}

			continue
		}

		client.PutBool(id, SlotDense, node.Dense)
		client.PutInt64(id, SlotRelationshipID, node.NextRel)
		client.PutBool(id, SlotCheckMark, !node.Dense && node.NextRel != record.NullReference)

		if err := s.checkNode(node, labelEntries, counts); err != nil {
			return err
		}
	}

	checkContext.Counts.merge(counts)
	return nil
}

func (s *NodeChecker) checkNode(node record.Node, labelEntries map[int64]index.TokenEntry, counts localCounts) error {
	checkContext := s.context

	labels, err := checkContext.nodeLabels(node)
	if err != nil {
		return err
	}

	checkContext.checkLabels(node, labels)

	if node.Dense && node.NextRel != record.NullReference {
		if err := s.checkFirstGroup(node); err != nil {
			return err
		}
	}

	values, err := checkContext.readProperties(propertyOwner{
		recordType: record.TypeNode,
		subject:    node,
		firstProp:  node.NextProp,
	})

	if err != nil {
		return err
	}

	counts.countNode(labels, checkContext.Tokens.Labels)

	if labelEntries != nil {
		s.checkLabelIndexEntry(node, labels, labelEntries)
	}

	checkContext.checkCompliance(complianceSubject{
		entityType: record.EntityNode,
		recordType: record.TypeNode,
		record:     node,
		id:         node.ID,
		tokens:     labels,
		values:     values,
	})

	return nil
}

func (s *NodeChecker) checkFirstGroup(node record.Node) error {
	group, err := loadForce(s.context.Stores.RelationshipGroups, node.NextRel)
	if err != nil {
		return err
	}

	if !group.InUse {
		s.context.reportf(record.TypeNode, report.RelationshipGroupNotInUse, node, group)
	} else if group.Owner != node.ID {
		s.context.reportf(record.TypeNode, report.RelationshipGroupHasOtherOwner, node, group)
	}

	return nil
}

func (s *NodeChecker) checkLabelIndexEntry(node record.Node, labels []int64, labelEntries map[int64]index.TokenEntry) {
	var (
		checkContext = s.context
		entry        = labelEntries[node.ID]
	)

	for idx, label := range labels {
		if checkContext.Tokens.Labels.Use(label) != TokenValid || slices.Contains(labels[:idx], label) {
			continue
		}

		if !slices.Contains(entry.Tokens, int32(label)) {
			checkContext.reportf(record.TypeLabelScanDocument, report.NodeLabelNotInIndex, node, labelRef(label))
		}
	}

	for _, token := range entry.Tokens {
		if !slices.Contains(labels, int64(token)) {
			checkContext.reportf(record.TypeLabelScanDocument, report.NodeDoesNotHaveExpectedLabel, entry, node)
		}
	}
}
