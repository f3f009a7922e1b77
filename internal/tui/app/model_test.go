package app

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Paintersrp/notetree/internal/api"
	"github.com/Paintersrp/notetree/internal/api/apitest"
	"github.com/Paintersrp/notetree/internal/config"
	"github.com/Paintersrp/notetree/internal/logging"
	"github.com/Paintersrp/notetree/internal/state"
)

func newTestModel(t *testing.T, fake *apitest.Fake, opts Options) (Model, *state.State) {
	t.Helper()
	cfg, err := config.Parse([]byte(`
profiles:
  test:
    server_url: http://localhost
    api_token: token
retry:
  max_attempts: 2
  base_delay: 1ms
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if err := cfg.Resolve("", nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ring := logging.NewRing(50)
	st := state.NewWithClient(cfg, fake, slog.New(logging.NewHandler(ring, slog.LevelDebug, nil)), ring)

	if opts.Clipboard == nil {
		opts.Clipboard = func(string) error { return nil }
	}
	opts.EditorTempDir = t.TempDir()
	m := New(st, opts)
	m.input.Cursor.SetMode(cursor.CursorStatic)
	return m, st
}

// seed adds titled html notes under parent.
func seed(fake *apitest.Fake, parent string, notes ...api.Note) {
	for _, n := range notes {
		n.Type, n.Mime = "text", "text/html"
		fake.SetNote(n)
		fake.Add(parent, n.ID)
	}
}

func newFixture(t *testing.T, opts Options) (Model, *state.State, *apitest.Fake) {
	t.Helper()
	fake := apitest.New()
	seed(fake, api.RootID,
		api.Note{ID: "a", Title: "Alpha"},
		api.Note{ID: "b", Title: "Beta"},
	)
	seed(fake, "a", api.Note{ID: "a1", Title: "Apple"})
	fake.SetContent("a", "<p>alpha body</p>")
	fake.SetContent("b", "<p>beta body</p>")

	m, st := newTestModel(t, fake, opts)
	m = run(t, m, m.Init())
	return m, st, fake
}

// run executes cmd and every command it leads to, feeding this package's
// messages back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 500 {
			t.Fatalf("command queue did not drain")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case rootLoadedMsg, childrenMsg, contentMsg, searchMsg, bookmarksMsg, branchMsg, editDoneMsg, copiedMsg:
			next, more := m.Update(msg)
			m = next.(Model)
			queue = append(queue, more)
		}
	}
	return m
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+e":
		return tea.KeyMsg{Type: tea.KeyCtrlE}
	case "ctrl+f":
		return tea.KeyMsg{Type: tea.KeyCtrlF}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, cmd := m.Update(keyMsg(k))
		m = run(t, next.(Model), cmd)
	}
	return m
}

var ansi = regexp.MustCompile("\x1b\\[[0-9;]*m")

func plain(s string) string {
	return ansi.ReplaceAllString(s, "")
}

func rowIDs(st *state.State) string {
	var ids []string
	for _, r := range st.Store.Rows() {
		ids = append(ids, r.ID)
	}
	return strings.Join(ids, ",")
}

func TestInitLoadsAndExpandsRoot(t *testing.T) {
	m, st, fake := newFixture(t, Options{})

	if got := rowIDs(st); got != "root,a,b" {
		t.Fatalf("rows = %q", got)
	}
	if len(m.loading) != 0 {
		t.Fatalf("still loading: %v", m.loading)
	}
	if got := fake.Calls("children:root"); got != 1 {
		t.Fatalf("root children fetched %d times", got)
	}
	view := plain(m.View())
	for _, want := range []string{"Alpha", "Beta", "1 Tree"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestTabCyclesModes(t *testing.T) {
	m, _, _ := newFixture(t, Options{})

	want := []Mode{ModeContent, ModeSearch, ModeRecent, ModeBookmarks, ModeSplit, ModeLogs, ModeTree}
	for _, w := range want {
		m = press(t, m, "tab")
		if m.Mode() != w {
			t.Fatalf("after tab mode = %v, want %v", m.Mode(), w)
		}
	}

	m = press(t, m, "shift+tab")
	if m.Mode() != ModeLogs {
		t.Fatalf("shift+tab from tree = %v", m.Mode())
	}
}

func TestDirectJumpsAndEscape(t *testing.T) {
	m, _, _ := newFixture(t, Options{})

	m = press(t, m, "4")
	if m.Mode() != ModeRecent {
		t.Fatalf("4 = %v", m.Mode())
	}
	m = press(t, m, "esc")
	if m.Mode() != ModeTree {
		t.Fatalf("esc = %v", m.Mode())
	}
	m = press(t, m, "esc")
	if m.Mode() != ModeRecent {
		t.Fatalf("second esc = %v", m.Mode())
	}

	m = press(t, m, "/")
	if m.Mode() != ModeSearch {
		t.Fatalf("/ = %v", m.Mode())
	}
	// digits are query text while searching
	m = press(t, m, "2")
	if m.Mode() != ModeSearch || m.input.Value() != "2" {
		t.Fatalf("mode %v query %q", m.Mode(), m.input.Value())
	}
	m = press(t, m, "esc")
	if m.Mode() != ModeRecent {
		t.Fatalf("esc from search = %v", m.Mode())
	}

	m = press(t, m, "?")
	if m.Mode() != ModeHelp {
		t.Fatalf("? = %v", m.Mode())
	}
	if !strings.Contains(plain(m.View()), "page down") {
		t.Fatalf("help view:\n%s", m.View())
	}
	m = press(t, m, "?")
	if m.Mode() != ModeRecent {
		t.Fatalf("? from help = %v", m.Mode())
	}
}

func TestCursorIsKeptPerMode(t *testing.T) {
	m, st, _ := newFixture(t, Options{})

	m = press(t, m, "j", "j")
	if st.Store.FocusedID() != "b" {
		t.Fatalf("focused %q", st.Store.FocusedID())
	}

	m = press(t, m, "tab")
	if m.Mode() != ModeContent || m.contentNote.ID != "b" || m.content != "<p>beta body</p>" {
		t.Fatalf("content mode %v note %q body %q", m.Mode(), m.contentNote.ID, m.content)
	}
	if !strings.Contains(plain(m.View()), "beta body") {
		t.Fatalf("content view:\n%s", m.View())
	}

	m = press(t, m, "6")
	if m.Mode() != ModeSplit || st.Store.FocusedID() != "root" {
		t.Fatalf("split focus %q", st.Store.FocusedID())
	}
	m = press(t, m, "1")
	if m.cursor[ModeTree] != 2 || st.Store.FocusedID() != "b" {
		t.Fatalf("tree cursor %d focus %q", m.cursor[ModeTree], st.Store.FocusedID())
	}

	m = press(t, m, "r")
	if m.cursor[ModeTree] != 0 {
		t.Fatalf("refresh kept cursor %d", m.cursor[ModeTree])
	}
}

func TestSplitFollowsTreeFocus(t *testing.T) {
	m, _, _ := newFixture(t, Options{Mode: ModeSplit})

	if m.contentNote.ID != api.RootID {
		t.Fatalf("split starts on %q", m.contentNote.ID)
	}
	m = press(t, m, "j")
	if m.contentNote.ID != "a" || m.content != "<p>alpha body</p>" {
		t.Fatalf("split content %q %q", m.contentNote.ID, m.content)
	}
	if !strings.Contains(plain(m.View()), "alpha body") {
		t.Fatalf("split view:\n%s", m.View())
	}
}

func TestStaleContentIsDropped(t *testing.T) {
	m, st, fake := newFixture(t, Options{})
	note := m.note("a")
	m.mode = ModeContent
	m.contentNote = note

	st.Cache.Purge()
	fake.SetContent("a", "first")
	older := contentCmd(st, st.Issue(state.SlotContent), note)
	newer := contentCmd(st, st.Issue(state.SlotContent), note)
	newMsg := newer().(contentMsg)
	fake.SetContent("a", "second")
	st.Cache.Purge()
	oldMsg := older().(contentMsg)

	next, _ := m.Update(newMsg)
	next, _ = next.(Model).Update(oldMsg)
	m = next.(Model)
	if m.content != "first" {
		t.Fatalf("content = %q, stale result applied", m.content)
	}
	if !oldMsg.res.Cancelled || fake.Calls("content:a") != 1 {
		t.Fatalf("superseded load ran: %+v, calls %d", oldMsg.res, fake.Calls("content:a"))
	}
}

func TestSplitKeepsNewestLoadWhenCommandsRunOutOfOrder(t *testing.T) {
	m, _, _ := newFixture(t, Options{Mode: ModeSplit})

	next, alpha := m.Update(keyMsg("j"))
	next, beta := next.(Model).Update(keyMsg("j"))
	m = next.(Model)
	if m.contentNote.ID != "b" {
		t.Fatalf("split points at %q", m.contentNote.ID)
	}

	m = run(t, m, beta)
	m = run(t, m, alpha)
	if m.contentNote.ID != "b" || !m.contentLoaded || m.content != "<p>beta body</p>" {
		t.Fatalf("content %q loaded=%t %q", m.contentNote.ID, m.contentLoaded, m.content)
	}
	if m.loading[state.SlotContent] {
		t.Fatalf("content slot still marked busy")
	}
}

func TestLeavingContentCancelsLoad(t *testing.T) {
	m, st, _ := newFixture(t, Options{})
	m = press(t, m, "j")

	next, cmd := m.Update(keyMsg("tab"))
	m = next.(Model)
	if !m.loading[state.SlotContent] {
		t.Fatalf("content load not started")
	}
	next, _ = m.Update(keyMsg("tab"))
	m = next.(Model)

	m = run(t, m, cmd)
	if m.contentLoaded {
		t.Fatalf("cancelled load was applied")
	}
	if m.loading[state.SlotContent] {
		t.Fatalf("spinner left running")
	}
	m = press(t, m, "shift+tab")
	if !m.contentLoaded || m.content != "<p>alpha body</p>" {
		t.Fatalf("content not reloaded on return: %q", m.content)
	}
	if st.Cache.Len() != 1 {
		t.Fatalf("cache entries = %d", st.Cache.Len())
	}
}

func TestExpandAndCollapse(t *testing.T) {
	m, st, fake := newFixture(t, Options{})

	m = press(t, m, "j", "l")
	if got := rowIDs(st); got != "root,a,a1,b" {
		t.Fatalf("rows = %q", got)
	}
	if v, ok := fake.Expanded("a_a1"); ok {
		t.Fatalf("wrong branch written: %v", v)
	}
	if v, ok := fake.Expanded("root_a"); !ok || !v {
		t.Fatalf("branch expansion not written: %v %v", v, ok)
	}

	m = press(t, m, "j", "h")
	if st.Store.FocusedID() != "a" {
		t.Fatalf("h on a leaf should focus the parent, got %q", st.Store.FocusedID())
	}
	m = press(t, m, "h")
	if got := rowIDs(st); got != "root,a,b" {
		t.Fatalf("rows after collapse = %q", got)
	}
	if v, _ := fake.Expanded("root_a"); v {
		t.Fatalf("collapse not written")
	}

	m = press(t, m, "space")
	if got := rowIDs(st); got != "root,a,a1,b" {
		t.Fatalf("rows after toggle = %q", got)
	}
	if got := fake.Calls("children:a"); got != 1 {
		t.Fatalf("children of a fetched %d times", got)
	}
}

func TestExpandFailureKeepsRunning(t *testing.T) {
	m, st, fake := newFixture(t, Options{})
	fake.Fail("children:a", &api.NetworkError{Op: "children", Err: errors.New("connection refused")})

	m = press(t, m, "j", "l")
	text, isErr := m.Status()
	if !isErr || !strings.Contains(text, `expand "Alpha"`) {
		t.Fatalf("status = %q %v", text, isErr)
	}
	if n, _ := st.Store.Node("a"); n.Expanded {
		t.Fatalf("node expanded after failure")
	}
	if m.Mode() != ModeTree {
		t.Fatalf("mode = %v", m.Mode())
	}

	fake.Fail("children:a", nil)
	m = press(t, m, "l")
	if text, isErr := m.Status(); isErr {
		t.Fatalf("status not cleared: %q", text)
	}
	if got := rowIDs(st); got != "root,a,a1,b" {
		t.Fatalf("rows = %q", got)
	}
}

func TestFuzzySearchRunsOnInput(t *testing.T) {
	fake := apitest.New()
	seed(fake, api.RootID,
		api.Note{ID: "mn", Title: "Meeting Notes"},
		api.Note{ID: "mo", Title: "Monday"},
		api.Note{ID: "x", Title: "Xyz"},
	)
	m, _ := newTestModel(t, fake, Options{})
	m = run(t, m, m.Init())

	m = press(t, m, "/", "ctrl+f", "m", "n")
	if !m.fuzzy || len(m.results) != 2 {
		t.Fatalf("fuzzy %v results %+v", m.fuzzy, m.results)
	}
	if m.results[0].Note.ID != "mo" || m.results[1].Note.ID != "mn" {
		t.Fatalf("order = %s, %s", m.results[0].Note.ID, m.results[1].Note.ID)
	}
	if got := fake.Calls("search:mn"); got != 0 {
		t.Fatalf("fuzzy search hit the server %d times", got)
	}

	m = press(t, m, "down", "enter")
	if m.Mode() != ModeContent || m.contentNote.ID != "mn" {
		t.Fatalf("opened %v %q", m.Mode(), m.contentNote.ID)
	}
}

func TestServerSearchOnEnter(t *testing.T) {
	fake := apitest.New()
	seed(fake, api.RootID,
		api.Note{ID: "mo", Title: "Monday"},
		api.Note{ID: "tu", Title: "Tuesday"},
	)
	fake.SetHits("day", api.SearchHit{NoteID: "tu"}, api.SearchHit{NoteID: "gone"}, api.SearchHit{NoteID: "mo"})
	m, _ := newTestModel(t, fake, Options{Mode: ModeSearch})
	m = run(t, m, m.Init())

	m = press(t, m, "d", "a", "y")
	if len(m.results) != 0 || fake.Calls("search:day") != 0 {
		t.Fatalf("search ran before enter")
	}
	m = press(t, m, "enter")
	if len(m.results) != 2 || m.results[0].Note.ID != "tu" || m.results[1].Note.ID != "mo" {
		t.Fatalf("results = %+v", m.results)
	}

	m = press(t, m, "ctrl+r")
	if m.input.Value() != "" || len(m.results) != 0 {
		t.Fatalf("ctrl+r left %q %d", m.input.Value(), len(m.results))
	}
}

func TestSearchCancelledByEscRunsAgain(t *testing.T) {
	fake := apitest.New()
	seed(fake, api.RootID, api.Note{ID: "a", Title: "Alpha"})
	fake.SetHits("alpha", api.SearchHit{NoteID: "a"})
	m, _ := newTestModel(t, fake, Options{})
	m = run(t, m, m.Init())

	m = press(t, m, "/", "a", "l", "p", "h", "a")
	next, pending := m.Update(keyMsg("enter"))
	m = next.(Model)
	if !m.loading[state.SlotSearch] {
		t.Fatalf("search not started")
	}
	m = press(t, m, "esc")
	m = run(t, m, pending)
	if len(m.results) != 0 {
		t.Fatalf("cancelled search applied %d results", len(m.results))
	}

	m = press(t, m, "/", "enter")
	if m.input.Value() != "alpha" {
		t.Fatalf("input = %q", m.input.Value())
	}
	if len(m.results) != 1 || m.results[0].Note.ID != "a" {
		t.Fatalf("search did not run again: %+v", m.results)
	}
}

func TestEditSavesConvertedContent(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", `sh -c 'printf changed > "$0"'`)
	m, _, fake := newFixture(t, Options{})

	m = press(t, m, "j", "e")
	if got := fake.Content("a"); got != "<p>changed</p>" {
		t.Fatalf("saved %q", got)
	}
	if text, isErr := m.Status(); isErr || text != "saved Alpha" {
		t.Fatalf("status = %q %v", text, isErr)
	}
	if m.editing {
		t.Fatalf("still editing")
	}
}

func TestEditorFailureIsReported(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "false")
	m, _, fake := newFixture(t, Options{})

	m = press(t, m, "j", "e")
	text, isErr := m.Status()
	if !isErr || !strings.Contains(text, "cancelled") {
		t.Fatalf("status = %q %v", text, isErr)
	}
	if fake.Calls("save:a") != 0 {
		t.Fatalf("cancelled edit was saved")
	}
}

func TestBookmarksAndRecent(t *testing.T) {
	m, _, _ := newFixture(t, Options{})

	m = press(t, m, "j", "b")
	if len(m.bookmarks) != 1 || m.bookmarks[0] != "a" {
		t.Fatalf("bookmarks = %v", m.bookmarks)
	}
	m = press(t, m, "5")
	if !strings.Contains(plain(m.View()), "Alpha") {
		t.Fatalf("bookmarks view:\n%s", m.View())
	}
	m = press(t, m, "b")
	if len(m.bookmarks) != 0 {
		t.Fatalf("bookmark not removed: %v", m.bookmarks)
	}

	m = press(t, m, "1", "j", "j", "enter", "4")
	if ids := m.recentIDs(); len(ids) != 1 || ids[0] != "b" {
		t.Fatalf("recent = %v", ids)
	}
	if !strings.Contains(plain(m.View()), "Beta") {
		t.Fatalf("recent view:\n%s", m.View())
	}
}

func TestSinceFiltersRecent(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m, st, _ := newFixture(t, Options{Since: since})

	old := m.note("a")
	old.Modified = since.Add(-time.Hour)
	fresh := m.note("b")
	fresh.Modified = since.Add(time.Hour)
	m.remember(old, fresh)
	st.History.Push("a")
	st.History.Push("b")

	if ids := m.recentIDs(); len(ids) != 1 || ids[0] != "b" {
		t.Fatalf("recent = %v", ids)
	}
}

func TestHistoryNavigation(t *testing.T) {
	m, _, _ := newFixture(t, Options{})

	m = press(t, m, "j", "enter", "1", "j", "enter")
	if m.contentNote.ID != "b" {
		t.Fatalf("content %q", m.contentNote.ID)
	}
	m = press(t, m, "[")
	if m.contentNote.ID != "a" {
		t.Fatalf("back = %q", m.contentNote.ID)
	}
	m = press(t, m, "]")
	if m.contentNote.ID != "b" {
		t.Fatalf("forward = %q", m.contentNote.ID)
	}
	m = press(t, m, "]")
	if text, _ := m.Status(); text != "no more history" {
		t.Fatalf("status = %q", text)
	}
}

func TestCopyID(t *testing.T) {
	var copied []string
	m, _, _ := newFixture(t, Options{Clipboard: func(s string) error {
		copied = append(copied, s)
		return nil
	}})

	m = press(t, m, "j", "y")
	if len(copied) != 1 || copied[0] != "a" {
		t.Fatalf("copied = %v", copied)
	}
	if text, _ := m.Status(); text != "copied id a" {
		t.Fatalf("status = %q", text)
	}

	m = press(t, m, "Y")
	if len(copied) != 1 {
		t.Fatalf("copied unloaded content: %v", copied)
	}
	m = press(t, m, "tab", "Y")
	if len(copied) != 2 || copied[1] != "<p>alpha body</p>" {
		t.Fatalf("copied = %v", copied)
	}
}

func TestQuitKeys(t *testing.T) {
	m, _, _ := newFixture(t, Options{})

	for _, k := range []string{"q", "ctrl+c"} {
		_, cmd := m.Update(keyMsg(k))
		if cmd == nil {
			t.Fatalf("%s returned no command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("%s did not quit", k)
		}
	}

	m = press(t, m, "/")
	next, cmd := m.Update(keyMsg("q"))
	if cmd != nil {
		if _, ok := cmd().(tea.QuitMsg); ok {
			t.Fatalf("q quit while typing a query")
		}
	}
	if next.(Model).input.Value() != "q" {
		t.Fatalf("q not typed")
	}
}

func TestEveryModeRenders(t *testing.T) {
	m, _, _ := newFixture(t, Options{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(Model)

	for _, k := range []string{"1", "2", "3", "esc", "4", "5", "6", "7", "?"} {
		m = press(t, m, k)
		if view := m.View(); view == "" {
			t.Fatalf("empty view in %v", m.Mode())
		}
	}
}
