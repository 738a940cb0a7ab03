package checker

import (
	"fmt"
	"slices"

	"github.com/specterops/recordcheck/index"
	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/report"
)

// complianceSubject is the graph entity whose property set is checked against the schema.
type complianceSubject struct {
	entityType record.EntityType
	recordType record.Type
	record     fmt.Stringer
	id         int64
	tokens     []int64
	values     PropertyValues
}

func hasAnyToken(tokens []int64, entityTokens []int32) bool {
	for _, token := range entityTokens {
		if slices.Contains(tokens, int64(token)) {
			return true
		}
	}

	return false
}

func propertyKeyRef(key int32) entityRef {
	return entityRef{
		recordType: record.TypePropertyKeyToken,
		id:         int64(key),
	}
}

// qualifies reports whether an entity with the given tokens and values belongs in the index.
func qualifies(descriptor index.Descriptor, tokens []int64, values PropertyValues) bool {
	return hasAnyToken(tokens, descriptor.EntityTokens) && values.Has(descriptor.PropertyKeys...)
}

// checkCompliance checks the property set of an in-use entity against the mandatory and allowed property type
// maps and verifies that the entity is indexed exactly once in every value index it qualifies for.
func (s *Context) checkCompliance(subject complianceSubject) {
	s.checkMandatoryProperties(subject)
	s.checkPropertyTypes(subject)

	if s.Flags.CheckIndexes {
		for _, descriptor := range s.valueIndexes[subject.entityType] {
			if qualifies(descriptor, subject.tokens, subject.values) {
				s.checkCorrectlyIndexed(subject, descriptor)
			}
		}
	}
}

func (s *Context) checkMandatoryProperties(subject complianceSubject) {
	var (
		mandatory = s.compliance.mandatory[subject.entityType]
		missing   []int32
	)

	for _, token := range subject.tokens {
		for _, key := range mandatory[int32(token)] {
			if _, found := subject.values[key]; !found && !slices.Contains(missing, key) {
				missing = append(missing, key)
			}
		}
	}

	for _, key := range missing {
		s.reportf(subject.recordType, report.MissingMandatoryProperty, subject.record, propertyKeyRef(key))
	}
}

func (s *Context) checkPropertyTypes(subject complianceSubject) {
	allowed := s.compliance.allowed[subject.entityType]

	for _, token := range subject.tokens {
		for key, kinds := range allowed[int32(token)] {
			if value, found := subject.values[key]; found && !slices.Contains(kinds, value.Kind()) {
				s.reportf(subject.recordType, report.PropertyTypeConstraintViolation, subject.record, propertyKeyRef(key))
			}
		}
	}
}

func (s *Context) checkCorrectlyIndexed(subject complianceSubject, descriptor index.Descriptor) {
	valueIndex, found := s.Indexes.ValueIndex(descriptor.ID)
	if !found {
		return
	}

	var (
		matches  = valueIndex.Lookup(subject.values.Tuple(descriptor.PropertyKeys))
		selfHits = 0
		others   = 0
	)

	for _, entityID := range matches {
		if entityID == subject.id {
			selfHits++
		} else {
			others++
		}
	}

	switch {
	case selfHits == 0:
		s.reportf(subject.recordType, report.NotIndexed, subject.record, descriptor)
	case selfHits > 1:
		s.reportf(subject.recordType, report.IndexedMultipleTimes, subject.record, descriptor)
	}

	if descriptor.Unique && others > 0 {
		s.reportf(subject.recordType, report.UniqueIndexNotUnique, subject.record, descriptor)
	}
}
