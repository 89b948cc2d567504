package scoring

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/heather/pkg/metrics"
	"github.com/Ramsey-B/heather/pkg/models"
)

// ItemLoader fetches one record from the record store.
type ItemLoader func(ctx context.Context, itemID string) (*models.Item, error)

// Batch is the state of one scoring run. It memoizes match counts per literal
// name for the whole run and caches loaded records until they are released.
// A Batch must not be shared between runs or goroutines.
type Batch struct {
	scorer  NameScorer
	logger  ectologger.Logger
	counts  map[string]int
	items   map[string]*models.Item
	lookups int
}

func NewBatch(scorer NameScorer, logger ectologger.Logger) *Batch {
	return &Batch{
		scorer: scorer,
		logger: logger,
		counts: make(map[string]int),
		items:  make(map[string]*models.Item),
	}
}

// MatchCount returns how many identities match name, querying the strategy at
// most once per name. A failed lookup counts as zero and is retried next time.
func (b *Batch) MatchCount(ctx context.Context, name string) int {
	if count, ok := b.counts[name]; ok {
		metrics.RecordMatchCountLookup("hit")
		return count
	}

	b.lookups++
	count, err := b.scorer.ScoreName(ctx, name)
	if err != nil {
		metrics.RecordMatchCountLookup("error")
		b.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"name": name}).Warn("Match count lookup failed, treating as no match")
		return 0
	}

	metrics.RecordMatchCountLookup("miss")
	b.counts[name] = count
	return count
}

// Lookups is the number of strategy queries issued so far.
func (b *Batch) Lookups() int {
	return b.lookups
}

// Item returns the cached record or loads and caches it.
func (b *Batch) Item(ctx context.Context, itemID string, load ItemLoader) (*models.Item, error) {
	if item, ok := b.items[itemID]; ok {
		return item, nil
	}
	item, err := load(ctx, itemID)
	if err != nil {
		return nil, err
	}
	b.items[itemID] = item
	return item, nil
}

// Release drops a record from the cache once it has been written.
func (b *Batch) Release(itemID string) {
	delete(b.items, itemID)
}

// CachedItems is the number of records currently held.
func (b *Batch) CachedItems() int {
	return len(b.items)
}
