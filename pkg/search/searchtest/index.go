// Package searchtest provides an in-memory search.Index for tests.
package searchtest

import (
	"context"
	"sync"

	"github.com/Ramsey-B/heather/pkg/search"
)

// Index answers queries from a fixed table keyed by query text.
type Index struct {
	mu      sync.Mutex
	results map[string]search.Result
	errs    map[string]error
	queries []search.Query
}

func NewIndex() *Index {
	return &Index{
		results: make(map[string]search.Result),
		errs:    make(map[string]error),
	}
}

// Set registers the ids returned for text. Total defaults to len(ids).
func (i *Index) Set(text string, ids ...string) *Index {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.results[text] = search.Result{IDs: ids, Total: len(ids)}
	return i
}

// SetTotal registers a result whose total differs from the returned ids.
func (i *Index) SetTotal(text string, total int, ids ...string) *Index {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.results[text] = search.Result{IDs: ids, Total: total}
	return i
}

// Fail makes queries for text return err.
func (i *Index) Fail(text string, err error) *Index {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.errs[text] = err
	return i
}

func (i *Index) Query(ctx context.Context, query search.Query) (search.Result, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.queries = append(i.queries, query)
	if err, ok := i.errs[query.Text]; ok {
		return search.Result{}, err
	}

	result := i.results[query.Text]
	ids := make([]string, len(result.IDs))
	copy(ids, result.IDs)
	return search.Result{IDs: ids, Total: result.Total}, nil
}

// Queries returns every query received, in order.
func (i *Index) Queries() []search.Query {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]search.Query, len(i.queries))
	copy(out, i.queries)
	return out
}

// Count returns how many queries were received for text.
func (i *Index) Count(text string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := 0
	for _, q := range i.queries {
		if q.Text == text {
			n++
		}
	}
	return n
}
