// Package render turns note content into styled terminal text with glamour.
package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/Paintersrp/notetree/internal/api"
	"github.com/Paintersrp/notetree/internal/convert"
)

const DefaultStyle = "dracula"

type Renderer struct {
	style   string
	profile termenv.Profile
	conv    *convert.Converter

	mu    sync.Mutex
	width int
	term  *glamour.TermRenderer
}

func New(style string, profile termenv.Profile) *Renderer {
	if style == "" {
		style = DefaultStyle
	}
	return &Renderer{style: style, profile: profile, conv: convert.New()}
}

func (r *Renderer) renderer(width int) (*glamour.TermRenderer, error) {
	if width <= 0 {
		width = 100
	}
	if r.term != nil && r.width == width {
		return r.term, nil
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.style),
		glamour.WithWordWrap(width),
		glamour.WithColorProfile(r.profile),
	)
	if err != nil {
		return nil, err
	}
	r.term, r.width = tr, width
	return tr, nil
}

// Markdown renders md wrapped to width.
func (r *Renderer) Markdown(md string, width int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tr, err := r.renderer(width)
	if err != nil {
		return "", err
	}
	return tr.Render(md)
}

// Note renders content in whatever format the note stores. HTML goes
// through the Markdown converter first; plain text is shown as is.
func (r *Renderer) Note(note api.Note, content string, width int) (string, error) {
	switch r.conv.Detect(note, content) {
	case convert.HTML:
		return r.Markdown(convert.HTMLToMarkdown(content), width)
	case convert.Markdown:
		return r.Markdown(content, width)
	default:
		return strings.TrimRight(content, "\n"), nil
	}
}
