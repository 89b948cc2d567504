// Package search retrieves candidate bibliographic records for a name form from an external index.
package search

import (
	"context"
	"math"
)

// Unbounded is the result cap used by batch runs.
const Unbounded = math.MaxInt32

// MatchType tells the index how to interpret Query.Text.
type MatchType string

const (
	// MatchPhrase matches the literal text as one phrase.
	MatchPhrase MatchType = "phrase"
	// MatchTerms matches the words of the text in any order.
	MatchTerms MatchType = "terms"
	// MatchPrefix matches each word as a prefix.
	MatchPrefix MatchType = "prefix"
)

type Filter struct {
	Field  string
	Value  string
	Negate bool
}

type Query struct {
	IndexName  string
	Text       string
	Match      MatchType
	Filters    []Filter
	MaxResults int
}

type Result struct {
	IDs   []string `json:"ids"`
	Total int      `json:"total"`
}

// Index is the external search/browse index.
type Index interface {
	Query(ctx context.Context, query Query) (Result, error)
}
