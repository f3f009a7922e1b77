// Package fzf lets the user jump to any loaded note with an fzf-style picker.
package fzf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ktr0731/go-fuzzyfinder"

	"github.com/Paintersrp/notetree/internal/api"
	"github.com/Paintersrp/notetree/internal/render"
)

// ErrNoSelection is returned when the picker is dismissed.
var ErrNoSelection = errors.New("no note selected")

// Item is one pickable note with its breadcrumb.
type Item struct {
	Note api.Note
	Path []string
}

func (it Item) Label() string {
	if len(it.Path) <= 1 {
		return it.Note.Title
	}
	return fmt.Sprintf("%s [%s]", it.Note.Title, strings.Join(it.Path[:len(it.Path)-1], " / "))
}

// ContentFunc loads the body of a note for the preview pane.
type ContentFunc func(id string) (string, error)

// FuzzyFinder wraps go-fuzzyfinder with a glamour preview of the note body.
type FuzzyFinder struct {
	Header   string
	content  ContentFunc
	renderer *render.Renderer
	items    []Item
	previews map[string]string
}

func NewFuzzyFinder(header string, content ContentFunc, r *render.Renderer) *FuzzyFinder {
	return &FuzzyFinder{
		Header:   header,
		content:  content,
		renderer: r,
		previews: make(map[string]string),
	}
}

// Run shows the picker over items and returns the chosen one.
func (f *FuzzyFinder) Run(items []Item, query string) (Item, error) {
	if len(items) == 0 {
		return Item{}, ErrNoSelection
	}
	f.items = items

	options := []fuzzyfinder.Option{
		fuzzyfinder.WithPreviewWindow(f.renderPreview),
	}
	if query != "" {
		options = append(options, fuzzyfinder.WithQuery(query))
	}
	if f.Header != "" {
		options = append(options, fuzzyfinder.WithHeader(f.Header))
	}

	idx, err := fuzzyfinder.Find(items, func(i int) string {
		return items[i].Label()
	}, options...)
	if errors.Is(err, fuzzyfinder.ErrAbort) {
		return Item{}, ErrNoSelection
	}
	if err != nil {
		return Item{}, fmt.Errorf("fuzzy select: %w", err)
	}
	return items[idx], nil
}

func (f *FuzzyFinder) renderPreview(i, w, h int) string {
	if i < 0 || i >= len(f.items) {
		return ""
	}
	note := f.items[i].Note
	if cached, ok := f.previews[note.ID]; ok {
		return cached
	}
	if f.content == nil {
		return note.Title
	}

	body, err := f.content(note.ID)
	if err != nil {
		return "Error loading note: " + err.Error()
	}
	out := body
	if f.renderer != nil {
		rendered, err := f.renderer.Note(note, body, w-4)
		if err != nil {
			return "Error rendering note"
		}
		out = rendered
	}
	f.previews[note.ID] = out
	return out
}
