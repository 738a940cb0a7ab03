package checker

import (
	"context"

	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/report"
	"github.com/specterops/recordcheck/store"
)

// TokenChecker checks the label, relationship type and property key token stores along with their name chains.
type TokenChecker struct {
	context *Context
}

func NewTokenChecker(checkContext *Context) *TokenChecker {
	return &TokenChecker{
		context: checkContext,
	}
}

func (s *TokenChecker) Check(ctx context.Context) error {
	stores := s.context.Stores

	for _, tokenStore := range []struct {
		tokens *store.Store[record.Token]
		names  *store.Store[record.Dynamic]
	}{
		{tokens: stores.LabelTokens, names: stores.LabelNames},
		{tokens: stores.RelationshipTypeTokens, names: stores.RelationshipTypeNames},
		{tokens: stores.PropertyKeyTokens, names: stores.PropertyKeyNames},
	} {
		if err := s.checkTokens(ctx, tokenStore.tokens, tokenStore.names); err != nil {
			return err
		}
	}

	return nil
}

func (s *TokenChecker) checkTokens(ctx context.Context, tokens *store.Store[record.Token], names *store.Store[record.Dynamic]) error {
	var (
		checkContext = s.context
		blockSize    = checkContext.Stores.BlockSize(names.Type())
	)

	for id := int64(0); id < tokens.HighID(); id++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		token, err := loadForCheck(tokens, id, checkContext)
		if err != nil {
			return err
		}

		checkIDGenerator(tokens, token, checkContext)

		if token.Corrupt || !token.InUse {
			continue
		}

		if token.NameID == record.NullReference {
			checkContext.reportf(tokens.Type(), report.EmptyName, token)
			continue
		}

		name, err := followDynamicChain(names, blockSize, token.NameID, chainOwner{
			recordType: tokens.Type(),
			subject:    token,
			notInUse:   report.NameBlockNotInUse,
		}, checkContext)

		if err != nil {
			return err
		}

		if name.Complete && len(name.Data) == 0 {
			checkContext.reportf(tokens.Type(), report.EmptyName, token)
		}
	}

	return nil
}
