// Package convert detects note content formats and converts between HTML and
// Markdown for external editing. Conversion is rule based and lossy: simple
// documents survive a round trip, arbitrary HTML does not.
package convert

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/Paintersrp/notetree/internal/api"
)

type Format int

const (
	PlainText Format = iota
	Markdown
	HTML
)

func (f Format) String() string {
	switch f {
	case Markdown:
		return "markdown"
	case HTML:
		return "html"
	default:
		return "plain"
	}
}

// Extension is the temp-file suffix editors use to pick a syntax.
func (f Format) Extension() string {
	switch f {
	case Markdown:
		return ".md"
	case HTML:
		return ".html"
	default:
		return ".txt"
	}
}

// Pair remembers what a note was stored as and what the user edited.
type Pair struct {
	Original Format
	Editing  Format
}

// Converted reports whether saving must translate the edit back.
func (p Pair) Converted() bool {
	return p.Original == HTML && p.Editing == Markdown
}

var htmlTagPattern = regexp.MustCompile(
	`(?i)</?(?:p|div|span|br|hr|h[1-6]|ul|ol|li|strong|b|em|i|a|code|pre|table|tr|td|th|blockquote|img)(?:\s[^>]*)?/?>`,
)

type Converter struct {
	md goldmark.Markdown
}

func New() *Converter {
	return &Converter{md: goldmark.New()}
}

// Detect trusts an html/markdown MIME type, then for text notes tries the
// HTML tag heuristic before the Markdown marker heuristic.
func (c *Converter) Detect(note api.Note, content string) Format {
	mime := strings.ToLower(note.Mime)
	switch {
	case strings.Contains(mime, "html"):
		return HTML
	case strings.Contains(mime, "markdown"):
		return Markdown
	}

	if note.Type != "" && note.Type != "text" {
		return PlainText
	}
	if htmlTagPattern.MatchString(content) {
		return HTML
	}
	if c.hasMarkdownMarkers(content) {
		return Markdown
	}
	return PlainText
}

// hasMarkdownMarkers looks for headings, emphasis, fenced code, or links.
func (c *Converter) hasMarkdownMarkers(content string) bool {
	if strings.TrimSpace(content) == "" {
		return false
	}

	src := []byte(content)
	doc := c.md.Parser().Parse(text.NewReader(src))

	found := false
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading, ast.KindEmphasis, ast.KindFencedCodeBlock, ast.KindLink:
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}

// PrepareForEditing converts HTML notes to Markdown; every other format is
// handed to the editor unchanged.
func (c *Converter) PrepareForEditing(note api.Note, content string) (string, Pair) {
	format := c.Detect(note, content)
	if format == HTML {
		return HTMLToMarkdown(content), Pair{Original: HTML, Editing: Markdown}
	}
	return content, Pair{Original: format, Editing: format}
}

// PrepareForSaving undoes the conversion PrepareForEditing applied.
func (c *Converter) PrepareForSaving(edited string, pair Pair) string {
	if pair.Converted() {
		return MarkdownToHTML(edited)
	}
	return edited
}
