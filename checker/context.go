package checker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/specterops/recordcheck/cardinality"
	"github.com/specterops/recordcheck/index"
	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/report"
	"github.com/specterops/recordcheck/store"
	"github.com/specterops/recordcheck/util/size"
)

// Flags select which parts of a full check run.
type Flags struct {
	CheckGraph          bool `mapstructure:"graph"`
	CheckIndexes        bool `mapstructure:"indexes"`
	CheckIndexStructure bool `mapstructure:"index_structure"`
	CheckCounts         bool `mapstructure:"counts"`
	CheckPropertyOwners bool `mapstructure:"property_owners"`
}

func DefaultFlags() Flags {
	return Flags{
		CheckGraph:          true,
		CheckIndexes:        true,
		CheckIndexStructure: true,
		CheckCounts:         true,
		CheckPropertyOwners: true,
	}
}

// complianceMaps are the mandatory property and allowed property type maps aggregated from the schema store,
// keyed by entity type and then label or relationship type token.
type complianceMaps struct {
	mandatory map[record.EntityType]map[int32][]int32
	allowed   map[record.EntityType]map[int32]map[int32][]record.ValueKind
}

func newComplianceMaps() *complianceMaps {
	return &complianceMaps{
		mandatory: map[record.EntityType]map[int32][]int32{
			record.EntityNode:         {},
			record.EntityRelationship: {},
		},
		allowed: map[record.EntityType]map[int32]map[int32][]record.ValueKind{
			record.EntityNode:         {},
			record.EntityRelationship: {},
		},
	}
}

func (s *complianceMaps) addMandatory(entityType record.EntityType, token int32, keys ...int32) {
	if byToken, found := s.mandatory[entityType]; found {
		byToken[token] = append(byToken[token], keys...)
	}
}

func (s *complianceMaps) addAllowed(entityType record.EntityType, token, key int32, kinds []record.ValueKind) {
	byToken, found := s.allowed[entityType]
	if !found {
		return
	}

	byKey, found := byToken[token]
	if !found {
		byKey = map[int32][]record.ValueKind{}
		byToken[token] = byKey
	}

	byKey[key] = append(byKey[key], kinds...)
}

// Context is the shared state of one full check. It is built once, initialized once and then handed to every
// checker. Context implements report.Reporter.
type Context struct {
	Stores    *store.Stores
	Indexes   index.Accessor
	Execution *ParallelExecution
	Reporter  report.Reporter
	Flags     Flags

	MemoryBudget        size.Size
	SmallIndexThreshold uint64

	Tokens  *Tokens
	Cache   *CacheAccess
	Limiter *EntityBasedMemoryLimiter
	Counts  *CountsState

	reporting       bool
	valueIndexes    map[record.EntityType][]index.Descriptor
	tokenIndexes    map[record.EntityType]index.TokenIndex
	groupMembership *GroupMembership
	propertyOwners  cardinality.IDSet
	compliance      *complianceMaps
}

func NewContext(stores *store.Stores, indexes index.Accessor, execution *ParallelExecution, reporter report.Reporter, flags Flags) *Context {
	if indexes == nil {
		indexes = index.NewMemory()
	}

	if reporter == nil {
		reporter = report.Nop
	}

	return &Context{
		Stores:    stores,
		Indexes:   indexes,
		Execution: execution,
		Reporter:  reporter,
		Flags:     flags,
		reporting: true,
	}
}

// Initialize loads the token stores, snapshots the online index rules and sizes the cache for the memory budget.
func (s *Context) Initialize(ctx context.Context) error {
	tokens, err := LoadTokens(s.Stores)
	if err != nil {
		return err
	}

	bytesPerEntity, err := SlotBytesPerEntity(NodeSlots)
	if err != nil {
		return err
	}

	var (
		nodeHighID = s.Stores.Nodes.HighID()
		limiter    = NewEntityBasedMemoryLimiter(s.MemoryBudget, bytesPerEntity)
	)

	cache, err := NewCacheAccess(limiter.CacheCapacity(nodeHighID), NodeSlots...)
	if err != nil {
		return err
	}

	s.Tokens = tokens
	s.Limiter = limiter
	s.Cache = cache
	s.Counts = NewCountsState()
	s.groupMembership = NewGroupMembership()
	s.propertyOwners = cardinality.ThreadSafeIDSet(cardinality.NewIDSet())
	s.compliance = newComplianceMaps()
	s.valueIndexes = map[record.EntityType][]index.Descriptor{}
	s.tokenIndexes = map[record.EntityType]index.TokenIndex{}

	for _, entityType := range []record.EntityType{record.EntityNode, record.EntityRelationship} {
		for _, descriptor := range s.Indexes.OnlineRules(entityType) {
			if descriptor.IsTokenLookup() {
				if tokenIndex, found := s.Indexes.TokenIndex(entityType); found {
					s.tokenIndexes[entityType] = tokenIndex
				}
			} else {
				s.valueIndexes[entityType] = append(s.valueIndexes[entityType], descriptor)
			}
		}
	}

	slog.InfoContext(ctx, "Consistency check initialized",
		slog.Int64("node_high_id", nodeHighID),
		slog.Int64("relationship_high_id", s.Stores.Relationships.HighID()),
		slog.String("memory_limiter", limiter.String()),
		slog.Int("node_value_indexes", len(s.valueIndexes[record.EntityNode])),
		slog.Int("relationship_value_indexes", len(s.valueIndexes[record.EntityRelationship])))

	return nil
}

// Report forwards an inconsistency to the reporter unless reporting is suppressed for this context.
func (s *Context) Report(inconsistency report.Inconsistency) {
	if s.reporting {
		s.Reporter.Report(inconsistency)
	}
}

func (s *Context) reportf(recordType record.Type, kind report.Kind, subject fmt.Stringer, related ...fmt.Stringer) {
	s.Report(report.New(recordType, kind, subject, related...))
}

// WithoutReporting returns a copy of the context that drops every report. It shares all other state.
func (s *Context) WithoutReporting() *Context {
	silent := *s
	silent.reporting = false

	return &silent
}

func (s *Context) IsReporting() bool {
	return s.reporting
}

// ValueIndexes returns the online value index descriptors for an entity type as of initialization.
func (s *Context) ValueIndexes(entityType record.EntityType) []index.Descriptor {
	return s.valueIndexes[entityType]
}

// TokenIndex returns the online token lookup index for an entity type as of initialization.
func (s *Context) TokenIndex(entityType record.EntityType) (index.TokenIndex, bool) {
	tokenIndex, found := s.tokenIndexes[entityType]
	return tokenIndex, found
}

// entityRef names an entity by type and id when its record is not at hand.
type entityRef struct {
	recordType record.Type
	id         int64
}

func (s entityRef) String() string {
	return fmt.Sprintf("%s[%d]", s.recordType, s.id)
}

func nodeRef(id int64) entityRef {
	return entityRef{
		recordType: record.TypeNode,
		id:         id,
	}
}

func relationshipRef(id int64) entityRef {
	return entityRef{
		recordType: record.TypeRelationship,
		id:         id,
	}
}
