// Package search runs server-side note queries and local fuzzy matching over
// the titles already loaded in the tree.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/Paintersrp/notetree/internal/api"
)

// GapPenalty is subtracted from a fuzzy score for every unmatched rune
// between the first and last matched rune.
const GapPenalty = 0.1

// Span is a half-open range of rune offsets into a title.
type Span struct {
	Start int
	End   int
}

type Result struct {
	Note  api.Note
	Score float64
	Spans []Span
}

type Query struct {
	Text            string
	FastSearch      bool
	IncludeArchived bool
	Limit           int
}

// Backend is the part of api.Client the server search needs.
type Backend interface {
	SearchNotes(ctx context.Context, params api.SearchParams) ([]api.SearchHit, error)
	GetNote(ctx context.Context, id string) (api.Note, error)
}

// Server asks the backend for matches and resolves each hit to a full note
// with one GetNote per distinct id. Hits whose note has vanished since the
// search ran are dropped.
func Server(ctx context.Context, backend Backend, q Query) ([]Result, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, nil
	}

	hits, err := backend.SearchNotes(ctx, api.SearchParams{
		Query:           text,
		FastSearch:      q.FastSearch,
		IncludeArchived: q.IncludeArchived,
		Limit:           q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", text, err)
	}

	seen := make(map[string]bool, len(hits))
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		if seen[hit.NoteID] {
			continue
		}
		seen[hit.NoteID] = true

		note, err := backend.GetNote(ctx, hit.NoteID)
		if api.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve search hit %s: %w", hit.NoteID, err)
		}
		results = append(results, Result{Note: note, Score: hit.Score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// Fuzzy keeps the notes whose title contains the query as a case-insensitive
// subsequence, best matches first.
func Fuzzy(query string, notes []api.Note) []Result {
	q := lowerRunes(strings.TrimSpace(query))
	if len(q) == 0 {
		return nil
	}

	var results []Result
	for _, n := range notes {
		positions, ok := match(q, lowerRunes(n.Title))
		if !ok {
			continue
		}
		results = append(results, Result{
			Note:  n,
			Score: score(positions),
			Spans: spans(positions),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return len([]rune(results[i].Note.Title)) < len([]rune(results[j].Note.Title))
	})
	return results
}

func lowerRunes(s string) []rune {
	r := []rune(s)
	for i := range r {
		r[i] = unicode.ToLower(r[i])
	}
	return r
}

// match finds the leftmost end of a subsequence match, then walks back from
// there to the latest possible start so the window is as tight as a single
// forward scan allows.
func match(q, title []rune) ([]int, bool) {
	qi := 0
	end := -1
	for i, r := range title {
		if r == q[qi] {
			qi++
			if qi == len(q) {
				end = i
				break
			}
		}
	}
	if end < 0 {
		return nil, false
	}

	positions := make([]int, len(q))
	qi = len(q) - 1
	for i := end; i >= 0 && qi >= 0; i-- {
		if title[i] == q[qi] {
			positions[qi] = i
			qi--
		}
	}
	return positions, true
}

func score(positions []int) float64 {
	matched := len(positions)
	window := positions[matched-1] - positions[0] + 1
	s := float64(matched) - GapPenalty*float64(window-matched)
	if s < 0 {
		return 0
	}
	return s
}

func spans(positions []int) []Span {
	var out []Span
	for _, p := range positions {
		if n := len(out); n > 0 && out[n-1].End == p {
			out[n-1].End = p + 1
			continue
		}
		out = append(out, Span{Start: p, End: p + 1})
	}
	return out
}

// Clamp keeps a selection index inside a result set of length n.
func Clamp(index, n int) int {
	if n <= 0 || index < 0 {
		return 0
	}
	if index >= n {
		return n - 1
	}
	return index
}
