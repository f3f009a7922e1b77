package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Paintersrp/notetree/internal/api"
	"github.com/Paintersrp/notetree/internal/editor"
	"github.com/Paintersrp/notetree/internal/retry"
	"github.com/Paintersrp/notetree/internal/search"
	"github.com/Paintersrp/notetree/internal/state"
)

type rootLoadedMsg struct {
	res retry.Result[api.Note]
}

type childrenMsg struct {
	parent string
	res    retry.Result[[]api.Note]
}

type contentMsg struct {
	note api.Note
	res  retry.Result[string]
}

type searchMsg struct {
	query string
	res   retry.Result[[]search.Result]
}

type bookmarksMsg struct {
	res retry.Result[[]api.Note]
}

type branchMsg struct {
	res retry.Result[struct{}]
}

type editDoneMsg struct {
	note    api.Note
	outcome editor.Outcome
	err     error
	saved   bool
	saveErr error
}

type copiedMsg struct {
	what string
	err  error
}

// The commands below run under tickets issued by Update before the command
// is returned, so the request order seen by the gateway is the order the
// user asked in.

func loadRootCmd(st *state.State, t retry.Ticket) tea.Cmd {
	return func() tea.Msg {
		return rootLoadedMsg{res: st.NoteOn(t, api.RootID)}
	}
}

func childrenCmd(st *state.State, t retry.Ticket, id string) tea.Cmd {
	return func() tea.Msg {
		return childrenMsg{parent: id, res: st.ChildrenOn(t, id)}
	}
}

func contentCmd(st *state.State, t retry.Ticket, note api.Note) tea.Cmd {
	return func() tea.Msg {
		return contentMsg{note: note, res: st.ContentOn(t, note.ID)}
	}
}

func searchCmd(st *state.State, t retry.Ticket, q search.Query) tea.Cmd {
	return func() tea.Msg {
		return searchMsg{query: q.Text, res: st.SearchOn(t, q)}
	}
}

func bookmarksCmd(st *state.State, t retry.Ticket, ids []string) tea.Cmd {
	return func() tea.Msg {
		return bookmarksMsg{res: st.ResolveNotesOn(t, ids)}
	}
}

func branchCmd(st *state.State, branchID string, expanded bool) tea.Cmd {
	if branchID == "" {
		return nil
	}
	t := st.Issue(state.BranchSlot(branchID))
	return func() tea.Msg {
		return branchMsg{res: st.SetExpandedOn(t, branchID, expanded)}
	}
}

// editCmd runs the whole edit round trip off the event loop. The editor
// takes the terminal from term for as long as it runs.
func editCmd(st *state.State, note api.Note, term editor.Terminal, tempDir string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		msg := editDoneMsg{note: note}

		body := st.ContentOn(st.Gateway.Issue(ctx, state.EditSlot(note.ID)), note.ID)
		if body.Err != nil {
			msg.err = body.Err
			return msg
		}

		ed := &editor.Editor{Terminal: term, TempDir: tempDir, Logger: st.Logger}
		msg.outcome, msg.err = editor.NewEditSession(ed, st.Converter).Edit(ctx, note, body.Value)
		if msg.err != nil || !msg.outcome.Changed {
			return msg
		}

		res := st.Save(ctx, note.ID, msg.outcome.Content)
		msg.saved = res.Err == nil
		msg.saveErr = res.Err
		return msg
	}
}

func copyCmd(write func(string) error, what, text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{what: what, err: write(text)}
	}
}
