// Package query derives the visible subset of the catalog: free-text
// matching against make and model, an inclusive price window, and a
// descending price sort.
package query

import (
	"cmp"
	"slices"
	"strings"

	"github.com/WessleyAI/findyourcar/engine/domain"
	"github.com/WessleyAI/findyourcar/pkg/fn"
)

// Query is a parsed search input.
type Query struct {
	Raw       string // as typed
	Text      string // trimmed and lowercased
	MakeWord  string // first space-separated token
	ModelWord string // remaining tokens rejoined with single spaces
}

// Parse trims and lowercases raw and splits it on single spaces. Runs of
// spaces produce empty tokens, so "bmw  x5" has ModelWord " x5".
func Parse(raw string) Query {
	q := Query{Raw: raw, Text: strings.ToLower(strings.TrimSpace(raw))}
	if q.Text == "" {
		return q
	}
	words := strings.Split(q.Text, " ")
	q.MakeWord = words[0]
	q.ModelWord = strings.Join(words[1:], " ")
	return q
}

// Empty reports whether the query matches everything.
func (q Query) Empty() bool { return q.Text == "" }

// Match reports whether a listing is in the query's search scope.
//
//   - empty query: everything
//   - known make + model words: make contains MakeWord and model contains ModelWord
//   - unknown first word + model words: model contains ModelWord
//   - single word: make or model contains the whole text
func (q Query) Match(l domain.Listing) bool {
	if q.Empty() {
		return true
	}
	mk := strings.ToLower(l.Make)
	model := strings.ToLower(l.Model)

	switch {
	case q.ModelWord != "" && domain.IsAllowedMake(q.MakeWord):
		return strings.Contains(mk, q.MakeWord) && strings.Contains(model, q.ModelWord)
	case q.ModelWord != "":
		return strings.Contains(model, q.ModelWord)
	default:
		return strings.Contains(mk, q.Text) || strings.Contains(model, q.Text)
	}
}

// Scope returns the listings matching q. An empty query returns all as is.
func Scope(all []domain.Listing, q Query) []domain.Listing {
	if q.Empty() {
		return all
	}
	return fn.Filter(all, q.Match)
}

// Apply keeps listings priced within pr and sorts them by price, highest
// first. Equal prices keep their scope order. scope is never modified.
func Apply(scope []domain.Listing, pr domain.PriceRange) []domain.Listing {
	view := fn.Filter(scope, func(l domain.Listing) bool { return pr.Contains(l.Price) })
	slices.SortStableFunc(view, func(a, b domain.Listing) int {
		return cmp.Compare(b.Price, a.Price)
	})
	return view
}

// Run is Apply(Scope(all, Parse(raw)), pr).
func Run(all []domain.Listing, raw string, pr domain.PriceRange) []domain.Listing {
	return Apply(Scope(all, Parse(raw)), pr)
}
