// Package fixture builds consistent graph stores along with their indexes and counts. Stores built here are the
// baseline that sabotage tests corrupt one record at a time.
package fixture

import (
	"encoding/binary"
	"fmt"
	"maps"
	"slices"

	"github.com/specterops/recordcheck/index"
	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/store"
)

// DefaultDenseThreshold is the degree at which a node stores its relationships in relationship groups.
const DefaultDenseThreshold = 50

// Properties are property values keyed by property key name.
type Properties map[string]record.Value

type pendingNode struct {
	id            int64
	labels        []int32
	values        map[int32]record.Value
	relationships []int64
}

type pendingRelationship struct {
	id               int64
	from             int64
	to               int64
	relationshipType int32
	values           map[int32]record.Value
}

// Builder collects a graph and writes it out as a consistent store on Commit. Builder methods do not return
// errors; the first failure is kept and returned by Commit.
type Builder struct {
	stores         *store.Stores
	indexes        *index.Memory
	tokenIDs       map[record.Type]map[string]int32
	nodes          map[int64]*pendingNode
	relationships  map[int64]*pendingRelationship
	valueIndexes   []index.Descriptor
	denseThreshold int
	committed      bool
	err            error
}

func New(stores *store.Stores, indexes *index.Memory) *Builder {
	return &Builder{
		stores:         stores,
		indexes:        indexes,
		tokenIDs:       map[record.Type]map[string]int32{},
		nodes:          map[int64]*pendingNode{},
		relationships:  map[int64]*pendingRelationship{},
		denseThreshold: DefaultDenseThreshold,
	}
}

// NewMemory creates a builder over a fresh in-memory store with the default format.
func NewMemory() (*Builder, error) {
	stores, err := store.Create(store.NewMemoryBackend(), store.DefaultFormat())
	if err != nil {
		return nil, err
	}

	return New(stores, index.NewMemory()), nil
}

func (s *Builder) Stores() *store.Stores {
	return s.stores
}

func (s *Builder) Indexes() *index.Memory {
	return s.indexes
}

func (s *Builder) Err() error {
	return s.err
}

func (s *Builder) fail(err error) {
	if err != nil && s.err == nil {
		s.err = err
	}
}

// SetDenseThreshold sets the degree at which nodes become dense. It must be called before Commit.
func (s *Builder) SetDenseThreshold(threshold int) *Builder {
	s.denseThreshold = max(1, threshold)
	return s
}

// writeDynamic writes the payload as a chain of full blocks and returns the id of the first block.
func (s *Builder) writeDynamic(records *store.Store[record.Dynamic], payload []byte) int64 {
	var (
		blockSize = s.stores.BlockSize(records.Type())
		numBlocks = max(1, (len(payload)+blockSize-1)/blockSize)
		ids       = make([]int64, numBlocks)
	)

	for idx := range ids {
		ids[idx] = records.NextID()
	}

	for idx, id := range ids {
		var (
			block = record.NewDynamic(id)
			from  = min(idx*blockSize, len(payload))
			to    = min(from+blockSize, len(payload))
		)

		block.InUse = true
		block.Data = payload[from:to]
		block.Length = len(block.Data)

		if idx+1 < len(ids) {
			block.Next = ids[idx+1]
		}

		s.fail(records.Write(block))
	}

	return ids[0]
}

func (s *Builder) token(tokens *store.Store[record.Token], names *store.Store[record.Dynamic], name string, internal bool) int32 {
	byName, found := s.tokenIDs[tokens.Type()]
	if !found {
		byName = map[string]int32{}
		s.tokenIDs[tokens.Type()] = byName
	}

	if id, found := byName[name]; found {
		return id
	}

	token := record.NewToken(tokens.NextID())
	token.InUse = true
	token.Internal = internal
	token.NameID = s.writeDynamic(names, []byte(name))

	s.fail(tokens.Write(token))

	byName[name] = int32(token.ID)
	return int32(token.ID)
}

func (s *Builder) Label(name string) int32 {
	return s.token(s.stores.LabelTokens, s.stores.LabelNames, name, false)
}

func (s *Builder) RelationshipType(name string) int32 {
	return s.token(s.stores.RelationshipTypeTokens, s.stores.RelationshipTypeNames, name, false)
}

func (s *Builder) PropertyKey(name string) int32 {
	return s.token(s.stores.PropertyKeyTokens, s.stores.PropertyKeyNames, name, false)
}

// InternalLabel creates a label token that graph entities must not reference.
func (s *Builder) InternalLabel(name string) int32 {
	return s.token(s.stores.LabelTokens, s.stores.LabelNames, name, true)
}

func (s *Builder) entityToken(entityType record.EntityType, name string) int32 {
	if entityType == record.EntityRelationship {
		return s.RelationshipType(name)
	}

	return s.Label(name)
}

func (s *Builder) propertyValues(properties Properties) map[int32]record.Value {
	values := make(map[int32]record.Value, len(properties))

	for _, name := range slices.Sorted(maps.Keys(properties)) {
		values[s.PropertyKey(name)] = properties[name]
	}

	return values
}

// Node adds a node and returns its id.
func (s *Builder) Node(labels []string, properties Properties) int64 {
	node := &pendingNode{
		id:     s.stores.Nodes.NextID(),
		values: s.propertyValues(properties),
	}

	for _, name := range labels {
		node.labels = append(node.labels, s.Label(name))
	}

	slices.Sort(node.labels)
	node.labels = slices.Compact(node.labels)

	s.nodes[node.id] = node
	return node.id
}

// Relationship adds a relationship between two nodes added to this builder and returns its id.
func (s *Builder) Relationship(from, to int64, relationshipType string, properties Properties) int64 {
	fromNode, fromFound := s.nodes[from]
	toNode, toFound := s.nodes[to]

	if !fromFound || !toFound {
		s.fail(fmt.Errorf("relationship between unknown nodes %d and %d", from, to))
		return record.NullReference
	}

	relationship := &pendingRelationship{
		id:               s.stores.Relationships.NextID(),
		from:             from,
		to:               to,
		relationshipType: s.RelationshipType(relationshipType),
		values:           s.propertyValues(properties),
	}

	fromNode.relationships = append(fromNode.relationships, relationship.id)

	if from != to {
		toNode.relationships = append(toNode.relationships, relationship.id)
	}

	s.relationships[relationship.id] = relationship
	return relationship.id
}

func (s *Builder) writeRule(rule record.SchemaRule) {
	rule.InUse = true
	s.fail(s.stores.Schema.Write(rule))
}

func (s *Builder) schemaDescriptor(entityType record.EntityType, token string, keys []string) record.SchemaDescriptor {
	descriptor := record.SchemaDescriptor{
		EntityType:   entityType,
		EntityTokens: []int32{s.entityToken(entityType, token)},
	}

	for _, key := range keys {
		descriptor.PropertyKeys = append(descriptor.PropertyKeys, s.PropertyKey(key))
	}

	return descriptor
}

// LookupIndexes creates the label and relationship type token lookup indexes.
func (s *Builder) LookupIndexes() *Builder {
	for _, entityType := range []record.EntityType{record.EntityNode, record.EntityRelationship} {
		rule := record.NewSchemaRule(s.stores.Schema.NextID())
		rule.Kind = record.SchemaKindIndex
		rule.Schema = record.SchemaDescriptor{EntityType: entityType}
		rule.IndexType = record.IndexTypeLookup
		rule.State = record.RuleStateOnline
		rule.Name = fmt.Sprintf("%s lookup", entityType)

		s.writeRule(rule)
		s.indexes.CreateTokenIndex(index.DescriptorFromRule(rule))
	}

	return s
}

func (s *Builder) createValueIndex(rule record.SchemaRule) {
	descriptor := index.DescriptorFromRule(rule)

	s.writeRule(rule)
	s.indexes.CreateValueIndex(descriptor)
	s.valueIndexes = append(s.valueIndexes, descriptor)
}

// Index creates an online range index and returns its id.
func (s *Builder) Index(name string, entityType record.EntityType, token string, keys ...string) int64 {
	rule := record.NewSchemaRule(s.stores.Schema.NextID())
	rule.Kind = record.SchemaKindIndex
	rule.Schema = s.schemaDescriptor(entityType, token, keys)
	rule.IndexType = record.IndexTypeRange
	rule.State = record.RuleStateOnline
	rule.Name = name

	s.createValueIndex(rule)
	return rule.ID
}

// UniqueConstraint creates a node uniqueness constraint together with the unique index it owns.
func (s *Builder) UniqueConstraint(name, label string, keys ...string) (int64, int64) {
	var (
		constraint = record.NewSchemaRule(s.stores.Schema.NextID())
		owned      = record.NewSchemaRule(s.stores.Schema.NextID())
		schema     = s.schemaDescriptor(record.EntityNode, label, keys)
	)

	constraint.Kind = record.SchemaKindUniquenessConstraint
	constraint.Schema = schema
	constraint.IndexType = record.IndexTypeRange
	constraint.OwnedIndex = owned.ID
	constraint.Name = name

	owned.Kind = record.SchemaKindIndex
	owned.Schema = schema
	owned.IndexType = record.IndexTypeRange
	owned.Unique = true
	owned.State = record.RuleStateOnline
	owned.OwningConstraint = constraint.ID
	owned.Name = name + " index"

	s.writeRule(constraint)
	s.createValueIndex(owned)

	return constraint.ID, owned.ID
}

// ExistenceConstraint makes the given properties mandatory for entities with the token.
func (s *Builder) ExistenceConstraint(name string, entityType record.EntityType, token string, keys ...string) int64 {
	rule := record.NewSchemaRule(s.stores.Schema.NextID())
	rule.Kind = record.SchemaKindExistenceConstraint
	rule.Schema = s.schemaDescriptor(entityType, token, keys)
	rule.Name = name

	s.writeRule(rule)
	return rule.ID
}

// PropertyTypeConstraint restricts the value kinds of a property for entities with the token.
func (s *Builder) PropertyTypeConstraint(name string, entityType record.EntityType, token, key string, kinds ...record.ValueKind) int64 {
	rule := record.NewSchemaRule(s.stores.Schema.NextID())
	rule.Kind = record.SchemaKindPropertyTypeConstraint
	rule.Schema = s.schemaDescriptor(entityType, token, []string{key})
	rule.AllowedTypes = kinds
	rule.Name = name

	s.writeRule(rule)
	return rule.ID
}

func (s *Builder) propertyBlock(key int32, value record.Value) record.PropertyBlock {
	switch value.Kind() {
	case record.BoolValue:
		boolean, _ := value.AsBool()
		return record.BoolBlock(key, boolean)

	case record.IntValue:
		integer, _ := value.AsInt()
		return record.IntBlock(key, integer)

	case record.FloatValue:
		float, _ := value.AsFloat()
		return record.FloatBlock(key, float)

	case record.StringValue:
		str, _ := value.AsString()

		if len(str) <= record.MaxShortStringLength {
			return record.ShortStringBlock(key, str)
		}

		return record.DynamicBlock(key, record.PropertyTypeString, s.writeDynamic(s.stores.Strings, []byte(str)))

	default:
		return record.DynamicBlock(key, record.PropertyTypeArray, s.writeDynamic(s.stores.Arrays, value.AppendArray(nil)))
	}
}

// writeProperties writes a property chain in ascending key order and returns the id of its first record.
func (s *Builder) writeProperties(values map[int32]record.Value) int64 {
	if len(values) == 0 {
		return record.NullReference
	}

	var (
		keys       = slices.Sorted(maps.Keys(values))
		numRecords = (len(keys) + record.MaxPropertyBlocks - 1) / record.MaxPropertyBlocks
		ids        = make([]int64, numRecords)
	)

	for idx := range ids {
		ids[idx] = s.stores.Properties.NextID()
	}

	for idx, id := range ids {
		property := record.NewProperty(id)
		property.InUse = true

		if idx > 0 {
			property.PrevProp = ids[idx-1]
		}

		if idx+1 < len(ids) {
			property.NextProp = ids[idx+1]
		}

		for _, key := range keys[idx*record.MaxPropertyBlocks : min((idx+1)*record.MaxPropertyBlocks, len(keys))] {
			property.Blocks = append(property.Blocks, s.propertyBlock(key, values[key]))
		}

		s.fail(s.stores.Properties.Write(property))
	}

	return ids[0]
}

func (s *Builder) labelField(node *pendingNode) record.LabelField {
	labels := make([]int64, len(node.labels))

	for idx, label := range node.labels {
		labels[idx] = int64(label)
	}

	if len(labels) <= record.MaxInlineLabels {
		return record.InlineLabels(labels...)
	}

	payload := binary.BigEndian.AppendUint64(nil, uint64(node.id))

	for _, label := range labels {
		payload = binary.BigEndian.AppendUint64(payload, uint64(label))
	}

	return record.DynamicLabels(s.writeDynamic(s.stores.NodeLabels, payload))
}

// linkChain links the relationships of one node's chain in order. The prev pointer of the first relationship
// holds the chain degree.
func linkChain(relationships map[int64]*record.Relationship, nodeID int64, chain []int64) {
	for idx, relationshipID := range chain {
		var (
			relationship = relationships[relationshipID]
			prev         = int64(len(chain))
			next         = record.NullReference
			first        = idx == 0
		)

		if !first {
			prev = chain[idx-1]
		}

		if idx+1 < len(chain) {
			next = chain[idx+1]
		}

		if relationship.FirstNode == nodeID {
			relationship.FirstPrevRel = prev
			relationship.FirstNextRel = next
			relationship.FirstInFirstChain = first
		}

		if relationship.SecondNode == nodeID {
			relationship.SecondPrevRel = prev
			relationship.SecondNextRel = next
			relationship.FirstInSecondChain = first
		}
	}
}

// writeGroups creates the relationship groups of a dense node, links the chain of every group and returns the
// id of the first group.
func (s *Builder) writeGroups(node *pendingNode, relationships map[int64]*record.Relationship) int64 {
	type groupChains struct {
		outgoing []int64
		incoming []int64
		loops    []int64
	}

	byType := map[int32]*groupChains{}

	for _, relationshipID := range node.relationships {
		relationship := relationships[relationshipID]

		chains, found := byType[relationship.Type]
		if !found {
			chains = &groupChains{}
			byType[relationship.Type] = chains
		}

		switch {
		case relationship.IsLoop():
			chains.loops = append(chains.loops, relationshipID)
		case relationship.FirstNode == node.id:
			chains.outgoing = append(chains.outgoing, relationshipID)
		default:
			chains.incoming = append(chains.incoming, relationshipID)
		}
	}

	var (
		types = slices.Sorted(maps.Keys(byType))
		ids   = make([]int64, len(types))
	)

	for idx := range ids {
		ids[idx] = s.stores.RelationshipGroups.NextID()
	}

	for idx, relationshipType := range types {
		var (
			chains = byType[relationshipType]
			group  = record.NewRelationshipGroup(ids[idx])
		)

		group.InUse = true
		group.Owner = node.id
		group.Type = relationshipType

		if idx+1 < len(ids) {
			group.Next = ids[idx+1]
		}

		for _, chain := range []struct {
			relationships []int64
			first         *int64
		}{
			{relationships: chains.outgoing, first: &group.FirstOut},
			{relationships: chains.incoming, first: &group.FirstIn},
			{relationships: chains.loops, first: &group.FirstLoop},
		} {
			if len(chain.relationships) > 0 {
				linkChain(relationships, node.id, chain.relationships)
				*chain.first = chain.relationships[0]
			}
		}

		s.fail(s.stores.RelationshipGroups.Write(group))
	}

	if len(ids) == 0 {
		return record.NullReference
	}

	return ids[0]
}

func qualifies(descriptor index.Descriptor, tokens []int32, values map[int32]record.Value) bool {
	if !slices.ContainsFunc(descriptor.EntityTokens, func(token int32) bool {
		return slices.Contains(tokens, token)
	}) {
		return false
	}

	for _, key := range descriptor.PropertyKeys {
		if _, found := values[key]; !found {
			return false
		}
	}

	return true
}

func (s *Builder) indexEntity(entityType record.EntityType, id int64, tokens []int32, values map[int32]record.Value) {
	for _, descriptor := range s.valueIndexes {
		if descriptor.EntityType != entityType || !qualifies(descriptor, tokens, values) {
			continue
		}

		if valueIndex, found := s.indexes.MemoryValueIndex(descriptor.ID); found {
			tuple := make([]record.Value, len(descriptor.PropertyKeys))

			for idx, key := range descriptor.PropertyKeys {
				tuple[idx] = values[key]
			}

			valueIndex.Add(id, tuple...)
		}
	}

	if tokenIndex, found := s.indexes.MemoryTokenIndex(entityType); found && len(tokens) > 0 {
		tokenIndex.Set(id, tokens...)
	}
}

// Commit writes every node and relationship added so far along with their chains, groups, index entries and
// counts. A builder can be committed once.
func (s *Builder) Commit() error {
	if s.err != nil {
		return s.err
	}

	if s.committed {
		return fmt.Errorf("fixture already committed")
	}

	s.committed = true

	relationships := make(map[int64]*record.Relationship, len(s.relationships))

	for id, pending := range s.relationships {
		relationship := record.NewRelationship(id)
		relationship.InUse = true
		relationship.FirstNode = pending.from
		relationship.SecondNode = pending.to
		relationship.Type = pending.relationshipType
		relationship.NextProp = s.writeProperties(pending.values)

		relationships[id] = &relationship
	}

	for _, nodeID := range slices.Sorted(maps.Keys(s.nodes)) {
		var (
			pending = s.nodes[nodeID]
			node    = record.NewNode(nodeID)
		)

		node.InUse = true
		node.Labels = s.labelField(pending)
		node.NextProp = s.writeProperties(pending.values)

		if len(pending.relationships) >= s.denseThreshold {
			node.Dense = true
			node.NextRel = s.writeGroups(pending, relationships)
		} else if len(pending.relationships) > 0 {
			linkChain(relationships, nodeID, pending.relationships)
			node.NextRel = pending.relationships[0]
		}

		s.fail(s.stores.Nodes.Write(node))

		s.stores.Counts.Increment(store.NodeCountsKey(store.AnyToken), 1)

		for _, label := range pending.labels {
			s.stores.Counts.Increment(store.NodeCountsKey(label), 1)
		}

		s.indexEntity(record.EntityNode, nodeID, pending.labels, pending.values)
	}

	for _, relationshipID := range slices.Sorted(maps.Keys(relationships)) {
		var (
			pending      = s.relationships[relationshipID]
			relationship = relationships[relationshipID]
		)

		s.fail(s.stores.Relationships.Write(*relationship))

		s.stores.Counts.Increment(store.RelationshipCountsKey(store.AnyToken), 1)
		s.stores.Counts.Increment(store.RelationshipCountsKey(relationship.Type), 1)

		s.indexEntity(record.EntityRelationship, relationshipID, []int32{relationship.Type}, pending.values)
	}

	if s.err != nil {
		return s.err
	}

	return s.stores.Flush()
}
