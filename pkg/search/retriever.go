package search

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/heather/pkg/metrics"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/tracing"
)

type Mode int

const (
	// ModeInteractive expands each word as a prefix and caps results at the page size.
	ModeInteractive Mode = iota
	// ModeBatch matches the literal text and does not cap results.
	ModeBatch
)

func (m Mode) String() string {
	if m == ModeBatch {
		return "batch"
	}
	return "interactive"
}

type Options struct {
	Mode          Mode
	Scope         string
	ExcludeLinked bool
}

type RetrieverConfig struct {
	IndexName      string
	AuthorityField string
	ScopeField     string
	PageSize       int
	// PartialMatch makes batch queries match terms instead of the exact phrase.
	PartialMatch bool
}

type Retriever struct {
	index  Index
	config RetrieverConfig
	logger ectologger.Logger
}

func NewRetriever(index Index, config RetrieverConfig, logger ectologger.Logger) *Retriever {
	if config.PageSize <= 0 {
		config.PageSize = 20
	}
	return &Retriever{
		index:  index,
		config: config,
		logger: logger,
	}
}

// Retrieve queries the index for records matching the variant's text. Index
// failures are logged and yield an empty result.
func (r *Retriever) Retrieve(ctx context.Context, variant models.NameVariant, opts Options) Result {
	ctx, span := tracing.StartSpan(ctx, "search.Retriever.Retrieve")
	defer span.End()

	query := r.buildQuery(variant.Text, opts)
	if opts.ExcludeLinked && variant.OwnerAuthorityKey != "" {
		query.Filters = append(query.Filters, Filter{Field: r.config.AuthorityField, Value: variant.OwnerAuthorityKey, Negate: true})
	}

	start := time.Now()
	result, err := r.index.Query(ctx, query)
	metrics.RecordIndexQuery(opts.Mode.String(), time.Since(start).Seconds(), err)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"index":         query.IndexName,
			"text":          variant.Text,
			"authority_key": variant.OwnerAuthorityKey,
			"mode":          opts.Mode.String(),
		}).Error("Index query failed, treating as no candidates")
		return Result{}
	}

	if len(result.IDs) > query.MaxResults {
		result.IDs = result.IDs[:query.MaxResults]
	}

	return result
}

// Lookup runs an interactive query for free text, as typed by an administrator.
func (r *Retriever) Lookup(ctx context.Context, text, scope string) Result {
	return r.Retrieve(ctx, models.NameVariant{Text: text}, Options{Mode: ModeInteractive, Scope: scope})
}

func (r *Retriever) buildQuery(text string, opts Options) Query {
	query := Query{
		IndexName: r.config.IndexName,
		Text:      text,
	}

	switch opts.Mode {
	case ModeBatch:
		query.Match = MatchPhrase
		if r.config.PartialMatch {
			query.Match = MatchTerms
		}
		query.MaxResults = Unbounded
	default:
		query.Match = MatchPrefix
		query.MaxResults = r.config.PageSize
	}

	if opts.Scope != "" {
		query.Filters = append(query.Filters, Filter{Field: r.config.ScopeField, Value: opts.Scope})
	}

	return query
}
