package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ramsey-B/heather/pkg/search"
)

var ErrUnknownStrategy = errors.New("unknown name scoring strategy")

const (
	StrategyIndex  = "index"
	StrategyLedger = "ledger"
)

// NameScorer reports how many identity records are an exact match for a literal name.
type NameScorer interface {
	ScoreName(ctx context.Context, text string) (int, error)
}

// IdentityCounter counts identities carrying a name.
type IdentityCounter interface {
	CountByName(ctx context.Context, name string) (int, error)
}

// IndexNameScorer asks the identity index for its exact phrase match total.
type IndexNameScorer struct {
	index     search.Index
	indexName string
}

func NewIndexNameScorer(index search.Index, indexName string) *IndexNameScorer {
	return &IndexNameScorer{index: index, indexName: indexName}
}

func (s *IndexNameScorer) ScoreName(ctx context.Context, text string) (int, error) {
	result, err := s.index.Query(ctx, search.Query{
		IndexName:  s.indexName,
		Text:       text,
		Match:      search.MatchPhrase,
		MaxResults: 1,
	})
	if err != nil {
		return 0, err
	}
	return result.Total, nil
}

// LedgerNameScorer counts identities in the identity store.
type LedgerNameScorer struct {
	counter IdentityCounter
}

func NewLedgerNameScorer(counter IdentityCounter) *LedgerNameScorer {
	return &LedgerNameScorer{counter: counter}
}

func (s *LedgerNameScorer) ScoreName(ctx context.Context, text string) (int, error) {
	return s.counter.CountByName(ctx, text)
}

// StrategyDeps carries what the named strategies may need.
type StrategyDeps struct {
	Index             search.Index
	IdentityIndexName string
	Identities        IdentityCounter
}

// ResolveNameScorer picks the strategy once, before a batch starts.
func ResolveNameScorer(strategy string, deps StrategyDeps) (NameScorer, error) {
	switch strategy {
	case StrategyIndex:
		if deps.Index == nil || deps.IdentityIndexName == "" {
			return nil, fmt.Errorf("%w: %s strategy needs an identity index", ErrUnknownStrategy, strategy)
		}
		return NewIndexNameScorer(deps.Index, deps.IdentityIndexName), nil
	case StrategyLedger:
		if deps.Identities == nil {
			return nil, fmt.Errorf("%w: %s strategy needs the identity store", ErrUnknownStrategy, strategy)
		}
		return NewLedgerNameScorer(deps.Identities), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}
