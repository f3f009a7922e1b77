package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Paintersrp/notetree/internal/api"
	"github.com/Paintersrp/notetree/internal/editor"
	"github.com/Paintersrp/notetree/internal/search"
	"github.com/Paintersrp/notetree/internal/state"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		if len(m.loading) == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case rootLoadedMsg:
		return m.onRoot(msg)
	case childrenMsg:
		return m.onChildren(msg)
	case contentMsg:
		return m.onContent(msg)
	case searchMsg:
		return m.onSearch(msg)
	case bookmarksMsg:
		return m.onBookmarks(msg)
	case branchMsg:
		m.finished(msg.res.Slot, msg.res.ID)
		return m, nil
	case editDoneMsg:
		return m.onEditDone(msg)
	case copiedMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("copy %s: %w", msg.what, msg.err))
		} else {
			m.setInfo("copied %s", msg.what)
		}
		return m, nil
	}

	if m.mode == ModeSearch {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action := Lookup(m.mode, msg)
	if action != ActionNone && action != ActionInput {
		m.status = status{}
	}

	if to, ok := gotoActions[action]; ok {
		return m.switchMode(to)
	}

	switch action {
	case ActionQuit:
		for _, slot := range []string{state.SlotNote, state.SlotContent, state.SlotSearch, state.SlotBookmarks} {
			m.st.Gateway.Cancel(slot)
		}
		return m, tea.Quit
	case ActionNextMode:
		return m.switchMode(m.mode.Next())
	case ActionPrevMode:
		return m.switchMode(m.mode.Prev())
	case ActionSearch:
		return m.switchMode(ModeSearch)
	case ActionHelp:
		return m.switchMode(ModeHelp)
	case ActionEscape:
		return m.switchMode(m.prev)

	case ActionUp:
		return m.move(-1)
	case ActionDown:
		return m.move(1)
	case ActionPageUp:
		return m.move(-max(m.listHeight(m.mode)-1, 1))
	case ActionPageDown:
		return m.move(max(m.listHeight(m.mode)-1, 1))
	case ActionTop:
		if m.mode == ModeContent {
			m.viewport.GotoTop()
			return m, nil
		}
		return m.jump(0)
	case ActionBottom:
		if m.mode == ModeContent {
			m.viewport.GotoBottom()
			return m, nil
		}
		return m.jump(m.listLen(m.mode) - 1)

	case ActionExpand:
		return m, m.expandNode(m.st.Store.FocusedID())
	case ActionCollapse:
		return m, m.collapse()
	case ActionToggle:
		id := m.st.Store.FocusedID()
		if n, ok := m.st.Store.Node(id); ok && n.Expanded {
			return m, m.collapseNode(id)
		}
		return m, m.expandNode(id)
	case ActionOpen:
		return m.open()

	case ActionEdit:
		return m.edit()
	case ActionBookmark:
		return m.toggleBookmark()
	case ActionCopyID, ActionCopyContent:
		return m.copy(action)
	case ActionHistoryBack:
		return m.history(-1)
	case ActionHistoryForward:
		return m.history(1)

	case ActionToggleFuzzy:
		m.fuzzy = !m.fuzzy
		m.results = nil
		m.lastSubmitted = ""
		m.cursor[ModeSearch] = 0
		m.cancel(state.SlotSearch)
		if m.fuzzy {
			m.runFuzzy()
			m.setInfo("fuzzy search over loaded notes")
		} else {
			m.setInfo("server search, press enter to run")
		}
		return m, nil
	case ActionToggleArchived:
		m.archived = !m.archived
		m.setInfo("include archived: %t", m.archived)
		if !m.fuzzy && m.lastSubmitted != "" {
			return m, m.submit()
		}
		return m, nil
	case ActionRefresh:
		return m.refresh()

	case ActionInput:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if m.fuzzy {
			m.runFuzzy()
		}
		return m, cmd
	}
	return m, nil
}

// switchMode leaves the active mode and enters to. The focused note of the
// mode being left is what Content shows on entry.
func (m Model) switchMode(to Mode) (tea.Model, tea.Cmd) {
	if to == m.mode || to < 0 || to >= numModes {
		return m, nil
	}
	focused, ok := m.selectedNote(m.mode)
	m.setMode(to)
	return m, m.enter(to, focused, ok)
}

func (m *Model) setMode(to Mode) {
	from := m.mode
	switch from {
	case ModeTree, ModeSplit:
		m.cursor[from] = m.st.Store.Focus()
	case ModeSearch:
		// An unanswered query must run again on the next enter.
		if m.loading[state.SlotSearch] {
			m.lastSubmitted = ""
		}
		m.cancel(state.SlotSearch)
		m.input.Blur()
	case ModeBookmarks:
		m.cancel(state.SlotBookmarks)
	}
	if from == ModeContent || from == ModeSplit {
		m.cancel(state.SlotContent)
	}
	if from != ModeHelp {
		m.prev = from
	}
	m.mode = to
	m.resize()
}

// cancel aborts slot and forgets it was busy. A result that still arrives
// is ignored by the mode-specific handlers.
func (m *Model) cancel(slot string) {
	m.st.Gateway.Cancel(slot)
	delete(m.loading, slot)
}

func (m *Model) enter(mode Mode, focused api.Note, ok bool) tea.Cmd {
	switch mode {
	case ModeTree:
		m.st.Store.SetFocus(m.cursor[mode])
		m.syncTree()
	case ModeSplit:
		m.st.Store.SetFocus(m.cursor[mode])
		m.syncTree()
		if n, ok := m.selectedNote(ModeSplit); ok {
			return m.loadContent(n)
		}
	case ModeContent:
		if !ok {
			focused, ok = m.contentNote, m.contentNote.ID != ""
		}
		if ok {
			m.st.History.Push(focused.ID)
			return m.loadContent(focused)
		}
	case ModeSearch:
		return m.input.Focus()
	case ModeBookmarks:
		m.setCursor(m.cursor[mode])
		return m.resolveBookmarks()
	case ModeRecent, ModeLogs:
		m.setCursor(m.cursor[mode])
	}
	return nil
}

// loadContent points the content pane at note and fetches its body unless
// it is already shown or on its way.
func (m *Model) loadContent(note api.Note) tea.Cmd {
	if note.ID == "" {
		return nil
	}
	if note.ID == m.contentNote.ID && (m.contentLoaded || m.loading[state.SlotContent]) {
		return nil
	}
	m.contentNote = note
	m.content = ""
	m.contentLoaded = false
	m.viewport.SetContent("")
	m.viewport.GotoTop()
	return m.startLoading(state.SlotContent, contentCmd(m.st, m.st.Issue(state.SlotContent), note))
}

func (m Model) move(delta int) (tea.Model, tea.Cmd) {
	if m.mode == ModeContent {
		if delta < 0 {
			m.viewport.LineUp(-delta)
		} else {
			m.viewport.LineDown(delta)
		}
		return m, nil
	}
	return m.jump(m.cursor[m.mode] + delta)
}

func (m Model) jump(i int) (tea.Model, tea.Cmd) {
	m.setCursor(i)
	if m.mode == ModeSplit {
		if n, ok := m.selectedNote(ModeSplit); ok {
			return m, m.loadContent(n)
		}
	}
	return m, nil
}

func (m *Model) expandNode(id string) tea.Cmd {
	if id == "" {
		return nil
	}
	store := m.st.Store
	if store.NeedsFetch(id) {
		slot := state.ChildrenSlot(id)
		if m.loading[slot] {
			return nil
		}
		return m.startLoading(slot, childrenCmd(m.st, m.st.Issue(slot), id))
	}

	node, _ := store.Node(id)
	if node.Expanded {
		return nil
	}
	if err := store.Expand(context.Background(), id, nil); err != nil {
		m.setError(fmt.Errorf("expand %q: %w", title(node.Note), err))
		return nil
	}
	m.syncTree()
	if node.HasChildren() && id != store.RootID() {
		return branchCmd(m.st, node.BranchID, true)
	}
	return nil
}

func (m *Model) collapseNode(id string) tea.Cmd {
	node, ok := m.st.Store.Node(id)
	if !ok || !node.Expanded {
		return nil
	}
	m.st.Store.Collapse(id)
	m.syncTree()
	if id == m.st.Store.RootID() {
		return nil
	}
	return branchCmd(m.st, node.BranchID, false)
}

// collapse folds the focused node, or moves to its parent when there is
// nothing to fold.
func (m *Model) collapse() tea.Cmd {
	id := m.st.Store.FocusedID()
	if node, ok := m.st.Store.Node(id); ok && node.Expanded && len(node.ChildIDs) > 0 {
		return m.collapseNode(id)
	}
	if parent := m.st.Store.Parent(id); parent != "" {
		m.st.Store.FocusID(parent)
		m.syncTree()
	}
	return nil
}

func (m Model) open() (tea.Model, tea.Cmd) {
	if m.mode == ModeSearch && !m.fuzzy && m.input.Value() != m.lastSubmitted {
		return m, m.submit()
	}
	if _, ok := m.selectedNote(m.mode); !ok {
		return m, nil
	}
	return m.switchMode(ModeContent)
}

func (m *Model) submit() tea.Cmd {
	m.lastSubmitted = m.input.Value()
	text := strings.TrimSpace(m.lastSubmitted)
	if text == "" {
		m.cancel(state.SlotSearch)
		m.results = nil
		m.setCursor(0)
		return nil
	}
	q := m.st.Config.Search.Query(text)
	q.IncludeArchived = m.archived
	return m.startLoading(state.SlotSearch, searchCmd(m.st, m.st.Issue(state.SlotSearch), q))
}

func (m *Model) runFuzzy() {
	m.results = search.Fuzzy(m.input.Value(), m.st.Store.Notes())
	m.cursor[ModeSearch] = search.Clamp(m.cursor[ModeSearch], len(m.results))
	m.scrollIntoView()
}

func (m *Model) resolveBookmarks() tea.Cmd {
	var missing bool
	for _, id := range m.bookmarks {
		if _, ok := m.known[id]; !ok {
			missing = true
			break
		}
	}
	if !missing {
		return nil
	}
	return m.startLoading(state.SlotBookmarks, bookmarksCmd(m.st, m.st.Issue(state.SlotBookmarks), slices.Clone(m.bookmarks)))
}

func (m Model) edit() (tea.Model, tea.Cmd) {
	note, ok := m.selectedNote(m.mode)
	if !ok {
		m.setInfo("nothing to edit")
		return m, nil
	}
	if m.editing {
		m.setInfo("already editing")
		return m, nil
	}
	if note.IsProtected {
		m.setError(&api.ValidationError{Field: "note", Msg: "protected notes cannot be edited"})
		return m, nil
	}
	m.editing = true
	m.setInfo("editing %s", title(note))
	m.st.Logger.Info("launching editor", "note", note.ID)
	return m, editCmd(m.st, note, m.terminal, m.tempDir)
}

func (m Model) onEditDone(msg editDoneMsg) (tea.Model, tea.Cmd) {
	m.editing = false
	name := title(msg.note)

	var edErr *editor.EditorError
	switch {
	case errors.As(msg.err, &edErr):
		m.setError(fmt.Errorf("edit %q cancelled: %w", name, msg.err))
	case msg.err != nil:
		m.setError(fmt.Errorf("edit %q: %w", name, msg.err))
	case msg.outcome.Cancelled:
		m.setInfo("edit of %s cancelled", name)
	case !msg.outcome.Changed:
		m.setInfo("no changes to %s", name)
	case msg.saveErr != nil:
		m.setError(fmt.Errorf("save %q: %w", name, msg.saveErr))
	default:
		m.setInfo("saved %s", name)
		if m.contentNote.ID == msg.note.ID {
			m.content = msg.outcome.Content
			m.contentLoaded = true
			m.renderContent()
		}
	}
	return m, nil
}

func (m Model) toggleBookmark() (tea.Model, tea.Cmd) {
	note, ok := m.selectedNote(m.mode)
	if !ok {
		return m, nil
	}
	if i := slices.Index(m.bookmarks, note.ID); i >= 0 {
		m.bookmarks = slices.Delete(slices.Clone(m.bookmarks), i, i+1)
		m.setInfo("removed bookmark %s", title(note))
	} else {
		m.bookmarks = append(slices.Clone(m.bookmarks), note.ID)
		m.remember(note)
		m.setInfo("bookmarked %s", title(note))
	}
	if m.mode == ModeBookmarks {
		m.setCursor(m.cursor[ModeBookmarks])
	}
	return m, nil
}

func (m Model) copy(action Action) (tea.Model, tea.Cmd) {
	note, ok := m.selectedNote(m.mode)
	if !ok {
		return m, nil
	}
	if action == ActionCopyID {
		return m, copyCmd(m.clipboard, "id "+note.ID, note.ID)
	}

	body, ok := m.st.Cache.Get(note.ID)
	if note.ID == m.contentNote.ID && m.contentLoaded {
		body, ok = m.content, true
	}
	if !ok {
		m.setInfo("content of %s is not loaded yet", title(note))
		return m, nil
	}
	return m, copyCmd(m.clipboard, "content of "+title(note), body)
}

func (m Model) history(step int) (tea.Model, tea.Cmd) {
	var (
		id string
		ok bool
	)
	if step < 0 {
		id, ok = m.st.History.Back()
	} else {
		id, ok = m.st.History.Forward()
	}
	if !ok {
		m.setInfo("no more history")
		return m, nil
	}
	if m.mode != ModeContent {
		m.setMode(ModeContent)
	}
	return m, m.loadContent(m.note(id))
}

// refresh resets the active mode: selection, scroll and cached data.
func (m Model) refresh() (tea.Model, tea.Cmd) {
	m.cursor[m.mode] = 0
	m.offset[m.mode] = 0

	switch m.mode {
	case ModeTree, ModeSplit:
		m.st.Cache.Purge()
		m.st.Store.Reset()
		m.cursor[ModeTree], m.cursor[ModeSplit] = 0, 0
		m.contentNote = api.Note{}
		m.contentLoaded = false
		m.viewport.SetContent("")
		m.setInfo("reloading tree")
		return m, m.startLoading(state.SlotNote, loadRootCmd(m.st, m.st.Issue(state.SlotNote)))
	case ModeContent:
		note := m.contentNote
		m.st.Cache.Remove(note.ID)
		m.contentNote = api.Note{}
		m.contentLoaded = false
		return m, m.loadContent(note)
	case ModeSearch:
		m.cancel(state.SlotSearch)
		m.input.Reset()
		m.results = nil
		m.lastSubmitted = ""
	case ModeBookmarks:
		for _, id := range m.bookmarks {
			delete(m.known, id)
		}
		return m, m.resolveBookmarks()
	}
	return m, nil
}

func (m Model) onRoot(msg rootLoadedMsg) (tea.Model, tea.Cmd) {
	if !m.finished(msg.res.Slot, msg.res.ID) || msg.res.Cancelled {
		return m, nil
	}
	if msg.res.Err != nil {
		m.setError(fmt.Errorf("load root: %w", msg.res.Err))
		return m, nil
	}

	root := msg.res.Value
	m.st.Store.SetRoot(root)
	m.remember(root)
	m.syncTree()

	cmds := []tea.Cmd{m.expandNode(root.ID)}
	if (m.mode == ModeContent || m.mode == ModeSplit) && m.contentNote.ID == "" {
		if m.mode == ModeContent {
			m.st.History.Push(root.ID)
		}
		cmds = append(cmds, m.loadContent(root))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) onChildren(msg childrenMsg) (tea.Model, tea.Cmd) {
	if !m.finished(msg.res.Slot, msg.res.ID) || msg.res.Cancelled {
		return m, nil
	}
	node, ok := m.st.Store.Node(msg.parent)
	if !ok {
		return m, nil
	}
	if msg.res.Err != nil {
		m.setError(fmt.Errorf("expand %q: %w", title(node.Note), msg.res.Err))
		return m, nil
	}
	if err := m.st.Store.Attach(msg.parent, msg.res.Value); err != nil {
		m.setError(fmt.Errorf("expand %q: %w", title(node.Note), err))
		return m, nil
	}
	m.remember(msg.res.Value...)
	m.syncTree()
	if m.mode == ModeSearch && m.fuzzy {
		m.runFuzzy()
	}
	if msg.parent == m.st.Store.RootID() {
		return m, nil
	}
	return m, branchCmd(m.st, node.BranchID, true)
}

func (m Model) onContent(msg contentMsg) (tea.Model, tea.Cmd) {
	if !m.finished(msg.res.Slot, msg.res.ID) || msg.res.Cancelled {
		return m, nil
	}
	if msg.note.ID != m.contentNote.ID || (m.mode != ModeContent && m.mode != ModeSplit) {
		return m, nil
	}
	if msg.res.Err != nil {
		m.setError(fmt.Errorf("load %q: %w", title(msg.note), msg.res.Err))
		return m, nil
	}
	m.content = msg.res.Value
	m.contentLoaded = true
	m.renderContent()
	m.viewport.GotoTop()
	return m, nil
}

func (m Model) onSearch(msg searchMsg) (tea.Model, tea.Cmd) {
	if !m.finished(msg.res.Slot, msg.res.ID) || msg.res.Cancelled {
		return m, nil
	}
	if m.fuzzy || m.mode != ModeSearch {
		return m, nil
	}
	if msg.res.Err != nil {
		m.setError(fmt.Errorf("search %q: %w", msg.query, msg.res.Err))
		return m, nil
	}
	m.results = msg.res.Value
	for _, r := range m.results {
		m.remember(r.Note)
	}
	m.cursor[ModeSearch] = search.Clamp(m.cursor[ModeSearch], len(m.results))
	m.scrollIntoView()
	if len(m.results) == 0 {
		m.setInfo("no notes match %q", msg.query)
	}
	return m, nil
}

func (m Model) onBookmarks(msg bookmarksMsg) (tea.Model, tea.Cmd) {
	if !m.finished(msg.res.Slot, msg.res.ID) || msg.res.Cancelled || m.mode != ModeBookmarks {
		return m, nil
	}
	if msg.res.Err != nil {
		m.setError(fmt.Errorf("load bookmarks: %w", msg.res.Err))
		return m, nil
	}
	found := make(map[string]bool, len(msg.res.Value))
	for _, n := range msg.res.Value {
		found[n.ID] = true
		m.remember(n)
	}
	kept := make([]string, 0, len(m.bookmarks))
	for _, id := range m.bookmarks {
		if _, ok := m.known[id]; ok || found[id] {
			kept = append(kept, id)
		}
	}
	if dropped := len(m.bookmarks) - len(kept); dropped > 0 {
		m.setInfo("%d bookmarked notes no longer exist", dropped)
	}
	m.bookmarks = kept
	m.setCursor(m.cursor[ModeBookmarks])
	return m, nil
}
