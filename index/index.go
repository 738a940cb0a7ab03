// Package index exposes the external indexes of a graph store to the consistency checker through a fixed
// accessor facade.
package index

import (
	"fmt"
	"slices"
	"strings"

	"github.com/specterops/recordcheck/record"
)

// Descriptor identifies an online index. Value indexes carry entity tokens and property keys; token lookup
// indexes carry neither.
type Descriptor struct {
	ID               int64
	Name             string
	EntityType       record.EntityType
	EntityTokens     []int32
	PropertyKeys     []int32
	Type             record.IndexType
	Unique           bool
	OwningConstraint int64
}

// DescriptorFromRule builds the descriptor of an index rule.
func DescriptorFromRule(rule record.SchemaRule) Descriptor {
	return Descriptor{
		ID:               rule.ID,
		Name:             rule.Name,
		EntityType:       rule.Schema.EntityType,
		EntityTokens:     slices.Clone(rule.Schema.EntityTokens),
		PropertyKeys:     slices.Clone(rule.Schema.PropertyKeys),
		Type:             rule.IndexType,
		Unique:           rule.Unique,
		OwningConstraint: rule.OwningConstraint,
	}
}

func (s Descriptor) Schema() record.SchemaDescriptor {
	return record.SchemaDescriptor{
		EntityType:   s.EntityType,
		EntityTokens: s.EntityTokens,
		PropertyKeys: s.PropertyKeys,
	}
}

func (s Descriptor) IsTokenLookup() bool {
	return s.Type == record.IndexTypeLookup
}

// Rule converts the descriptor back into an online index rule.
func (s Descriptor) Rule() record.SchemaRule {
	rule := record.NewSchemaRule(s.ID)
	rule.InUse = true
	rule.Kind = record.SchemaKindIndex
	rule.Schema = s.Schema()
	rule.IndexType = s.Type
	rule.Unique = s.Unique
	rule.State = record.RuleStateOnline
	rule.OwningConstraint = s.OwningConstraint
	rule.Name = s.Name

	return rule
}

func (s Descriptor) String() string {
	return fmt.Sprintf("Index[%d,name=%q,type=%s,schema=%s,unique=%t]", s.ID, s.Name, s.Type, s.Schema(), s.Unique)
}

// Entry is a single value index entry.
type Entry struct {
	EntityID int64
	Values   []record.Value
}

func (s Entry) String() string {
	valueStrs := make([]string, len(s.Values))

	for idx, value := range s.Values {
		valueStrs[idx] = value.String()
	}

	return fmt.Sprintf("IndexEntry[entity=%d,values=(%s)]", s.EntityID, strings.Join(valueStrs, ","))
}

// EntryReader yields entries in ascending value order, ties broken by ascending entity id.
type EntryReader interface {
	Next() (Entry, bool)
}

// TokenEntry is the token set an index holds for an entity.
type TokenEntry struct {
	EntityID int64
	Tokens   []int32
}

func (s TokenEntry) String() string {
	return fmt.Sprintf("TokenEntry[entity=%d,tokens=%v]", s.EntityID, s.Tokens)
}

// TokenReader yields token entries in ascending entity id order.
type TokenReader interface {
	Next() (TokenEntry, bool)
}

type ValueIndex interface {
	Descriptor() Descriptor

	// NewAllEntriesValueReader splits every entry of the index into the given number of readers. Readers cover
	// disjoint ascending value ranges, a group of equal value tuples never spans two readers and readers may be
	// empty.
	NewAllEntriesValueReader(partitions int) []EntryReader

	// Lookup returns the ascending ids of every entity indexed with exactly the given value tuple.
	Lookup(values []record.Value) []int64

	// EstimatedEntityCount is an approximate count of the distinct entities in the index.
	EstimatedEntityCount() uint64
}

type TokenIndex interface {
	Descriptor() Descriptor

	// Entries reads the token entries for entity ids in [from, to).
	Entries(from, to int64) TokenReader

	// Tokens returns the token set of a single entity.
	Tokens(entityID int64) ([]int32, bool)
}

// Accessor is the facade the checker uses to enumerate and read online indexes.
type Accessor interface {
	// OnlineRules returns the descriptors of every online index over the entity type, ordered by id.
	OnlineRules(entityType record.EntityType) []Descriptor
	ValueIndex(id int64) (ValueIndex, bool)
	TokenIndex(entityType record.EntityType) (TokenIndex, bool)
}

type sliceEntryReader struct {
	entries []Entry
	next    int
}

func (s *sliceEntryReader) Next() (Entry, bool) {
	if s.next >= len(s.entries) {
		return Entry{}, false
	}

	entry := s.entries[s.next]
	s.next++

	return entry, true
}

type sliceTokenReader struct {
	entries []TokenEntry
	next    int
}

func (s *sliceTokenReader) Next() (TokenEntry, bool) {
	if s.next >= len(s.entries) {
		return TokenEntry{}, false
	}

	entry := s.entries[s.next]
	s.next++

	return entry, true
}

// Drain reads every remaining entry from a reader.
func Drain(reader EntryReader) []Entry {
	var entries []Entry

	for entry, ok := reader.Next(); ok; entry, ok = reader.Next() {
		entries = append(entries, entry)
	}

	return entries
}
