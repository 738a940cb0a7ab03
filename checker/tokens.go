package checker

import (
	"fmt"

	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/store"
)

// TokenUse classifies a token reference held by a graph entity or schema rule.
type TokenUse uint8

const (
	TokenValid TokenUse = iota
	TokenIllegal
	TokenNotInUse
	TokenInternal
)

// TokenSet is a snapshot of one token store taken when the checker initializes.
type TokenSet struct {
	recordType record.Type
	inUse      []bool
	internal   []bool
	names      []string
}

func loadTokenSet(tokens *store.Store[record.Token], names *store.Store[record.Dynamic]) (*TokenSet, error) {
	var (
		highID   = tokens.HighID()
		tokenSet = &TokenSet{
			recordType: tokens.Type(),
			inUse:      make([]bool, highID),
			internal:   make([]bool, highID),
			names:      make([]string, highID),
		}
	)

	for id := int64(0); id < highID; id++ {
		token, err := tokens.Record(id, store.Force)
		if err != nil {
			return nil, err
		}

		tokenSet.inUse[id] = token.InUse
		tokenSet.internal[id] = token.Internal

		if token.InUse && token.NameID != record.NullReference {
			name, err := readDynamicSilently(names, token.NameID)
			if err != nil {
				return nil, err
			}

			tokenSet.names[id] = string(name)
		}
	}

	return tokenSet, nil
}

func (s *TokenSet) Type() record.Type {
	return s.recordType
}

func (s *TokenSet) HighID() int64 {
	return int64(len(s.inUse))
}

func (s *TokenSet) IsLegal(id int64) bool {
	return id >= 0 && id < s.HighID()
}

func (s *TokenSet) InUse(id int64) bool {
	return s.IsLegal(id) && s.inUse[id]
}

func (s *TokenSet) IsInternal(id int64) bool {
	return s.IsLegal(id) && s.internal[id]
}

// NameFor returns the name of a token, falling back to its id for tokens without a readable name.
func (s *TokenSet) NameFor(id int64) string {
	if s.InUse(id) && s.names[id] != "" {
		return s.names[id]
	}

	return fmt.Sprintf("%s(%d)", s.recordType, id)
}

func (s *TokenSet) Use(id int64) TokenUse {
	switch {
	case !s.IsLegal(id):
		return TokenIllegal
	case !s.inUse[id]:
		return TokenNotInUse
	case s.internal[id]:
		return TokenInternal
	default:
		return TokenValid
	}
}

// Tokens resolves label, relationship type and property key tokens.
type Tokens struct {
	Labels            *TokenSet
	RelationshipTypes *TokenSet
	PropertyKeys      *TokenSet
}

func LoadTokens(stores *store.Stores) (*Tokens, error) {
	labels, err := loadTokenSet(stores.LabelTokens, stores.LabelNames)
	if err != nil {
		return nil, fmt.Errorf("loading label tokens: %w", err)
	}

	relationshipTypes, err := loadTokenSet(stores.RelationshipTypeTokens, stores.RelationshipTypeNames)
	if err != nil {
		return nil, fmt.Errorf("loading relationship type tokens: %w", err)
	}

	propertyKeys, err := loadTokenSet(stores.PropertyKeyTokens, stores.PropertyKeyNames)
	if err != nil {
		return nil, fmt.Errorf("loading property key tokens: %w", err)
	}

	return &Tokens{
		Labels:            labels,
		RelationshipTypes: relationshipTypes,
		PropertyKeys:      propertyKeys,
	}, nil
}

// EntityTokens returns the label or relationship type tokens for an entity type.
func (s *Tokens) EntityTokens(entityType record.EntityType) *TokenSet {
	if entityType == record.EntityRelationship {
		return s.RelationshipTypes
	}

	return s.Labels
}
