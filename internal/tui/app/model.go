// Package app is the interactive note browser: one bubbletea model that
// owns every view mode, routes keys through the keybinding table and runs
// all backend work as commands through the retry gateway.
package app

import (
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Paintersrp/notetree/internal/api"
	"github.com/Paintersrp/notetree/internal/editor"
	"github.com/Paintersrp/notetree/internal/search"
	"github.com/Paintersrp/notetree/internal/state"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	recentLimit   = 50
)

// Options tunes a new Model.
type Options struct {
	// Mode is the mode shown first. Help is not a valid start mode.
	Mode Mode
	// Since hides notes modified before it from Recent.
	Since time.Time
	// Terminal is handed to the external editor. Use the running
	// *tea.Program so the editor gets the screen to itself.
	Terminal      editor.Terminal
	Clipboard     func(string) error
	EditorTempDir string
}

type statusLevel int

const (
	levelInfo statusLevel = iota
	levelError
)

type status struct {
	text  string
	level statusLevel
}

type Model struct {
	st       *state.State
	help     help.Model
	spinner  spinner.Model
	input    textinput.Model
	viewport viewport.Model

	mode   Mode
	prev   Mode
	cursor [numModes]int
	offset [numModes]int

	width  int
	height int

	contentNote   api.Note
	content       string
	contentLoaded bool
	renderedWidth int

	fuzzy         bool
	archived      bool
	lastSubmitted string
	results       []search.Result

	bookmarks []string
	known     map[string]api.Note
	since     time.Time

	status  status
	loading map[string]bool
	editing bool

	terminal  editor.Terminal
	clipboard func(string) error
	tempDir   string
}

func New(st *state.State, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "search notes"
	ti.Prompt = "/ "
	ti.CharLimit = 256

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = infoStyle

	clip := opts.Clipboard
	if clip == nil {
		clip = clipboard.WriteAll
	}
	term := opts.Terminal
	if term == nil {
		term = editor.NopTerminal{}
	}

	mode := opts.Mode
	if mode < 0 || mode >= ModeHelp {
		mode = ModeTree
	}

	m := Model{
		st:        st,
		help:      help.New(),
		spinner:   sp,
		input:     ti,
		viewport:  viewport.New(defaultWidth, defaultHeight),
		mode:      mode,
		prev:      mode,
		fuzzy:     st.Config.Search.Fuzzy,
		archived:  st.Config.Search.IncludeArchived,
		bookmarks: st.Bookmarks(),
		known:     make(map[string]api.Note),
		since:     opts.Since,
		loading:   map[string]bool{state.SlotNote: true},
		terminal:  term,
		clipboard: clip,
		tempDir:   opts.EditorTempDir,
	}
	switch mode {
	case ModeSearch:
		m.input.Focus()
	case ModeBookmarks:
		m.loading[state.SlotBookmarks] = true
	}
	m.resize()
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{loadRootCmd(m.st, m.st.Issue(state.SlotNote)), m.spinner.Tick}
	switch m.mode {
	case ModeSearch:
		cmds = append(cmds, textinput.Blink)
	case ModeBookmarks:
		cmds = append(cmds, bookmarksCmd(m.st, m.st.Issue(state.SlotBookmarks), m.bookmarks))
	}
	return tea.Batch(cmds...)
}

// Mode is the active mode.
func (m Model) Mode() Mode { return m.mode }

// Status returns the status bar text and whether it reports an error.
func (m Model) Status() (string, bool) {
	return m.status.text, m.status.level == levelError
}

func (m *Model) setInfo(format string, args ...any) {
	m.status = status{text: fmt.Sprintf(format, args...), level: levelInfo}
}

func (m *Model) setError(err error) {
	m.status = status{text: err.Error(), level: levelError}
	m.st.Logger.Debug("status error", "err", err)
}

// startLoading marks slot busy and starts the spinner if it was idle.
func (m *Model) startLoading(slot string, cmd tea.Cmd) tea.Cmd {
	idle := len(m.loading) == 0
	m.loading[slot] = true
	if idle {
		return tea.Batch(cmd, m.spinner.Tick)
	}
	return cmd
}

// finished reports whether a result should be applied. Results superseded by
// a newer call on the same slot are dropped without touching the spinner.
func (m *Model) finished(slot string, id uint64) bool {
	if !m.st.Gateway.IsCurrent(slot, id) {
		return false
	}
	delete(m.loading, slot)
	return true
}

func (m *Model) remember(notes ...api.Note) {
	for _, n := range notes {
		if n.ID != "" {
			m.known[n.ID] = n
		}
	}
}

// note looks id up among everything fetched so far.
func (m Model) note(id string) api.Note {
	if n, ok := m.known[id]; ok {
		return n
	}
	if n, ok := m.st.Store.Node(id); ok {
		return n.Note
	}
	return api.Note{ID: id, Title: id}
}

func title(n api.Note) string {
	if n.Title != "" {
		return n.Title
	}
	return n.ID
}

func (m Model) recentIDs() []string {
	ids := m.st.History.Recent(recentLimit)
	if m.since.IsZero() {
		return ids
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		n := m.note(id)
		if n.Modified.IsZero() || !n.Modified.Before(m.since) {
			out = append(out, id)
		}
	}
	return out
}

func (m Model) listLen(mode Mode) int {
	switch mode {
	case ModeTree, ModeSplit:
		return m.st.Store.Len()
	case ModeSearch:
		return len(m.results)
	case ModeRecent:
		return len(m.recentIDs())
	case ModeBookmarks:
		return len(m.bookmarks)
	case ModeLogs:
		return m.st.Logs.Len()
	}
	return 0
}

// selectedNote is the note the given mode currently points at.
func (m Model) selectedNote(mode Mode) (api.Note, bool) {
	c := m.cursor[mode]
	switch mode {
	case ModeTree, ModeSplit:
		n, ok := m.st.Store.Node(m.st.Store.FocusedID())
		return n.Note, ok
	case ModeContent:
		return m.contentNote, m.contentNote.ID != ""
	case ModeSearch:
		if c < len(m.results) {
			return m.results[c].Note, true
		}
	case ModeRecent:
		if ids := m.recentIDs(); c < len(ids) {
			return m.note(ids[c]), true
		}
	case ModeBookmarks:
		if c < len(m.bookmarks) {
			return m.note(m.bookmarks[c]), true
		}
	}
	return api.Note{}, false
}

func (m Model) frameWidth() int {
	w := m.width
	if w <= 0 {
		w = defaultWidth
	}
	h, _ := appStyle.GetFrameSize()
	return max(w-h, 20)
}

// bodyHeight leaves room for the tab bar, status line and help line.
func (m Model) bodyHeight() int {
	h := m.height
	if h <= 0 {
		h = defaultHeight
	}
	return max(h-3, 1)
}

func (m Model) listHeight(mode Mode) int {
	switch mode {
	case ModeSearch:
		return max(m.bodyHeight()-4, 1)
	case ModeContent:
		return max(m.bodyHeight()-1, 1)
	}
	return m.bodyHeight()
}

func (m Model) treeWidth() int {
	if m.mode != ModeSplit {
		return m.frameWidth()
	}
	return max(m.frameWidth()/3, 20)
}

func (m Model) contentWidth() int {
	if m.mode != ModeSplit {
		return m.frameWidth()
	}
	return max(m.frameWidth()-m.treeWidth()-2, 20)
}

// resize fits the viewport and input to the terminal and the active mode.
func (m *Model) resize() {
	m.viewport.Width = m.contentWidth()
	m.viewport.Height = m.listHeight(ModeContent)
	if m.mode == ModeSplit {
		m.viewport.Height = m.bodyHeight() - 1
	}
	m.input.Width = max(m.frameWidth()-6, 10)
	m.help.Width = m.frameWidth()
	if m.contentLoaded && m.renderedWidth != m.viewport.Width {
		m.renderContent()
	}
	m.scrollIntoView()
}

func (m *Model) renderContent() {
	w := m.viewport.Width
	out, err := m.st.Renderer.Note(m.contentNote, m.content, w)
	if err != nil {
		m.st.Logger.Warn("render failed", "note", m.contentNote.ID, "err", err)
		out = m.content
	}
	m.renderedWidth = w
	m.viewport.SetContent(out)
}

// scrollIntoView keeps the active cursor inside the visible window.
func (m *Model) scrollIntoView() {
	if m.mode == ModeContent || m.mode == ModeHelp {
		return
	}
	h := m.listHeight(m.mode)
	c, o := m.cursor[m.mode], m.offset[m.mode]
	if c < o {
		o = c
	}
	if c >= o+h {
		o = c - h + 1
	}
	m.offset[m.mode] = max(o, 0)
}

func (m *Model) setCursor(i int) {
	switch m.mode {
	case ModeTree, ModeSplit:
		m.st.Store.SetFocus(i)
		m.cursor[m.mode] = m.st.Store.Focus()
	default:
		m.cursor[m.mode] = search.Clamp(i, m.listLen(m.mode))
	}
	m.scrollIntoView()
}

// syncTree copies the store's focus into the active tree mode's cursor.
func (m *Model) syncTree() {
	if m.mode == ModeTree || m.mode == ModeSplit {
		m.cursor[m.mode] = m.st.Store.Focus()
		m.scrollIntoView()
	}
}
