package search_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/search"
	"github.com/Ramsey-B/heather/pkg/search/searchtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newRetriever(index search.Index, partial bool) *search.Retriever {
	return search.NewRetriever(index, search.RetrieverConfig{
		IndexName:      "items",
		AuthorityField: "author_authority",
		ScopeField:     "location",
		PageSize:       2,
		PartialMatch:   partial,
	}, testLogger())
}

func TestRetrieve(t *testing.T) {
	variant := models.NameVariant{Text: "Smith, John", OwnerAuthorityKey: "rp00042", OwnerID: "id-42"}

	tests := []struct {
		name        string
		partial     bool
		opts        search.Options
		wantMatch   search.MatchType
		wantMax     int
		wantIDs     []string
		wantFilters []search.Filter
	}{
		{
			name:      "interactive caps at page size",
			opts:      search.Options{Mode: search.ModeInteractive},
			wantMatch: search.MatchPrefix,
			wantMax:   2,
			wantIDs:   []string{"10", "11"},
		},
		{
			name:      "batch exact phrase is unbounded",
			opts:      search.Options{Mode: search.ModeBatch},
			wantMatch: search.MatchPhrase,
			wantMax:   search.Unbounded,
			wantIDs:   []string{"10", "11", "12"},
		},
		{
			name:      "batch partial match",
			partial:   true,
			opts:      search.Options{Mode: search.ModeBatch},
			wantMatch: search.MatchTerms,
			wantMax:   search.Unbounded,
			wantIDs:   []string{"10", "11", "12"},
		},
		{
			name:      "scope and exclude linked filters",
			opts:      search.Options{Mode: search.ModeBatch, Scope: "col-1", ExcludeLinked: true},
			wantMatch: search.MatchPhrase,
			wantMax:   search.Unbounded,
			wantIDs:   []string{"10", "11", "12"},
			wantFilters: []search.Filter{
				{Field: "location", Value: "col-1"},
				{Field: "author_authority", Value: "rp00042", Negate: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := searchtest.NewIndex().Set("Smith, John", "10", "11", "12")
			retriever := newRetriever(index, tt.partial)

			result := retriever.Retrieve(context.Background(), variant, tt.opts)
			assert.Equal(t, tt.wantIDs, result.IDs)
			assert.Equal(t, 3, result.Total)

			queries := index.Queries()
			require.Len(t, queries, 1)
			assert.Equal(t, "items", queries[0].IndexName)
			assert.Equal(t, "Smith, John", queries[0].Text)
			assert.Equal(t, tt.wantMatch, queries[0].Match)
			assert.Equal(t, tt.wantMax, queries[0].MaxResults)
			assert.Equal(t, tt.wantFilters, queries[0].Filters)
		})
	}
}

func TestRetrieveIndexFailureIsEmpty(t *testing.T) {
	index := searchtest.NewIndex().
		Fail("Smith, John", errors.New("connection refused")).
		Set("J. Smith", "11", "12")
	retriever := newRetriever(index, false)

	failed := retriever.Retrieve(context.Background(), models.NameVariant{Text: "Smith, John"}, search.Options{Mode: search.ModeBatch})
	assert.Empty(t, failed.IDs)
	assert.Zero(t, failed.Total)

	ok := retriever.Retrieve(context.Background(), models.NameVariant{Text: "J. Smith"}, search.Options{Mode: search.ModeBatch})
	assert.Equal(t, []string{"11", "12"}, ok.IDs)
}

func TestLookup(t *testing.T) {
	index := searchtest.NewIndex().Set("smi", "10")
	retriever := newRetriever(index, false)

	result := retriever.Lookup(context.Background(), "smi", "col-9")
	assert.Equal(t, []string{"10"}, result.IDs)

	queries := index.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, search.MatchPrefix, queries[0].Match)
	assert.Equal(t, []search.Filter{{Field: "location", Value: "col-9"}}, queries[0].Filters)
}
