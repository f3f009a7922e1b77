package editor

import (
	"context"
	"strings"

	"github.com/Paintersrp/notetree/internal/api"
	"github.com/Paintersrp/notetree/internal/convert"
)

// Session records one round trip through the editor.
type Session struct {
	TempPath       string
	Original       string
	OriginalFormat convert.Format
	EditingFormat  convert.Format
}

// Outcome is what the caller should store. Content is already back in the
// note's own format; it is only meaningful when Changed is set.
type Outcome struct {
	Session
	Content   string
	Changed   bool
	Cancelled bool
}

// EditSession converts stored content into something pleasant to edit, runs
// the editor and converts the edit back.
type EditSession struct {
	Editor    *Editor
	Converter *convert.Converter
}

func NewEditSession(ed *Editor, conv *convert.Converter) *EditSession {
	if conv == nil {
		conv = convert.New()
	}
	return &EditSession{Editor: ed, Converter: conv}
}

func (s *EditSession) Edit(ctx context.Context, note api.Note, content string) (Outcome, error) {
	editing, pair := s.Converter.PrepareForEditing(note, content)
	out := Outcome{Session: Session{
		Original:       content,
		OriginalFormat: pair.Original,
		EditingFormat:  pair.Editing,
	}}

	title := strings.TrimSpace(note.Title)
	if title == "" {
		title = note.ID
	}
	res, err := s.Editor.Open(ctx, editing, title+pair.Editing.Extension())
	out.TempPath = res.Path
	if err != nil || res.Cancelled {
		out.Cancelled = true
		return out, err
	}
	if !res.Changed {
		return out, nil
	}

	out.Changed = true
	out.Content = s.Converter.PrepareForSaving(res.Content, pair)
	return out, nil
}
