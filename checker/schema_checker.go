package checker

import (
	"context"
	"fmt"

	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/report"
	"github.com/specterops/recordcheck/store"
)

// SchemaChecker validates the schema store. As a side effect it aggregates the mandatory property and allowed
// property type maps used by the compliance checks of the graph checkers.
type SchemaChecker struct {
	context *Context
}

func NewSchemaChecker(checkContext *Context) *SchemaChecker {
	return &SchemaChecker{
		context: checkContext,
	}
}

func ruleContentKey(rule record.SchemaRule) string {
	if rule.IsIndex() {
		return fmt.Sprintf("index/%s/%s", rule.IndexType, rule.Schema.Key())
	}

	return fmt.Sprintf("constraint/%s/%s", rule.Kind, rule.Schema.Key())
}

func (s *SchemaChecker) Check(ctx context.Context) error {
	var (
		checkContext = s.context
		schema       = checkContext.Stores.Schema
		rules        []record.SchemaRule
		byID         = map[int64]record.SchemaRule{}
		byContent    = map[string]record.SchemaRule{}
	)

	for id := int64(0); id < schema.HighID(); id++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		rule, err := schema.Record(id, store.Check)
		if err != nil {
			return err
		}

		if rule.Corrupt {
			checkContext.reportf(record.TypeSchema, report.MalformedSchemaRule, rule)
			continue
		}

		checkIDGenerator(schema, rule, checkContext)

		if !rule.InUse {
			continue
		}

		s.checkTokens(rule)

		if rule.IsIndex() && rule.State != record.RuleStateOnline {
			checkContext.reportf(record.TypeSchema, report.SchemaRuleNotOnline, rule)
		}

		contentKey := ruleContentKey(rule)

		if original, found := byContent[contentKey]; found {
			checkContext.reportf(record.TypeSchema, report.DuplicateRuleContent, rule, original)
		} else {
			byContent[contentKey] = rule
		}

		rules = append(rules, rule)
		byID[rule.ID] = rule
	}

	s.checkObligations(rules, byID)
	s.aggregateCompliance(rules)

	return nil
}

func (s *SchemaChecker) checkTokens(rule record.SchemaRule) {
	var (
		checkContext  = s.context
		entityTokens  = checkContext.Tokens.EntityTokens(rule.Schema.EntityType)
		tokenNotInUse = report.LabelNotInUse
	)

	if rule.Schema.EntityType == record.EntityRelationship {
		tokenNotInUse = report.RelationshipTypeNotInUse
	}

	for _, token := range rule.Schema.EntityTokens {
		if !entityTokens.InUse(int64(token)) {
			checkContext.reportf(record.TypeSchema, tokenNotInUse, rule, entityRef{recordType: entityTokens.Type(), id: int64(token)})
		}
	}

	for _, key := range rule.Schema.PropertyKeys {
		if !checkContext.Tokens.PropertyKeys.InUse(int64(key)) {
			checkContext.reportf(record.TypeSchema, report.PropertyKeyNotInUse, rule, propertyKeyRef(key))
		}
	}
}

// checkObligations verifies that indexes owned by constraints and constraints owning indexes reference each other.
func (s *SchemaChecker) checkObligations(rules []record.SchemaRule, byID map[int64]record.SchemaRule) {
	var (
		checkContext     = s.context
		constraintOf     = map[int64]int64{}
		indexOf          = map[int64]int64{}
		constraintOwners = map[int64]record.SchemaRule{}
		indexOwners      = map[int64]record.SchemaRule{}
	)

	// Obligations are claimed by the rule on the other side of the reference
	for _, rule := range rules {
		switch {
		case rule.IsIndex() && rule.OwningConstraint != record.NullReference:
			if claimant, found := indexOwners[rule.OwningConstraint]; found {
				checkContext.reportf(record.TypeSchema, report.DuplicateObligation, rule, claimant)
			} else {
				indexOwners[rule.OwningConstraint] = rule
				indexOf[rule.OwningConstraint] = rule.ID
			}

		case rule.Kind.OwnsIndex() && rule.OwnedIndex != record.NullReference:
			if claimant, found := constraintOwners[rule.OwnedIndex]; found {
				checkContext.reportf(record.TypeSchema, report.DuplicateObligation, rule, claimant)
			} else {
				constraintOwners[rule.OwnedIndex] = rule
				constraintOf[rule.OwnedIndex] = rule.ID
			}
		}
	}

	for _, rule := range rules {
		switch {
		case rule.IsIndex() && rule.OwningConstraint != record.NullReference:
			if constraintID, found := constraintOf[rule.ID]; !found {
				checkContext.reportf(record.TypeSchema, report.MissingObligation, rule)
			} else if constraintID != rule.OwningConstraint {
				checkContext.reportf(record.TypeSchema, report.ConstraintIndexRuleNotReferencingBack, rule, byID[constraintID])
			}

		case rule.Kind.OwnsIndex():
			indexID, found := indexOf[rule.ID]
			if !found {
				checkContext.reportf(record.TypeSchema, report.MissingObligation, rule)
				continue
			}

			if indexID != rule.OwnedIndex {
				checkContext.reportf(record.TypeSchema, report.UniquenessConstraintNotReferencingBack, rule, byID[indexID])
			}

			if owned := byID[indexID]; !owned.Unique || owned.IndexType != record.IndexTypeRange {
				checkContext.reportf(record.TypeSchema, report.UniquenessConstraintReferencingIndexOfWrongType, rule, owned)
			}
		}
	}
}

func (s *SchemaChecker) aggregateCompliance(rules []record.SchemaRule) {
	compliance := s.context.compliance

	for _, rule := range rules {
		var (
			entityType = rule.Schema.EntityType
			mandatory  = rule.Kind == record.SchemaKindExistenceConstraint || rule.Kind == record.SchemaKindKeyConstraint
		)

		for _, token := range rule.Schema.EntityTokens {
			if mandatory {
				compliance.addMandatory(entityType, token, rule.Schema.PropertyKeys...)
			}

			if rule.Kind == record.SchemaKindPropertyTypeConstraint {
				for _, key := range rule.Schema.PropertyKeys {
					compliance.addAllowed(entityType, token, key, rule.AllowedTypes)
				}
			}
		}
	}
}
