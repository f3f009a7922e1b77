package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Action is what a key press means in the active mode.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionNextMode
	ActionPrevMode
	ActionSearch
	ActionHelp
	ActionEscape
	ActionGotoTree
	ActionGotoContent
	ActionGotoSearch
	ActionGotoRecent
	ActionGotoBookmarks
	ActionGotoSplit
	ActionGotoLogs
	ActionUp
	ActionDown
	ActionTop
	ActionBottom
	ActionPageUp
	ActionPageDown
	ActionExpand
	ActionCollapse
	ActionToggle
	ActionOpen
	ActionEdit
	ActionBookmark
	ActionCopyID
	ActionCopyContent
	ActionHistoryBack
	ActionHistoryForward
	ActionToggleFuzzy
	ActionToggleArchived
	ActionRefresh
	ActionInput
)

var gotoActions = map[Action]Mode{
	ActionGotoTree:      ModeTree,
	ActionGotoContent:   ModeContent,
	ActionGotoSearch:    ModeSearch,
	ActionGotoRecent:    ModeRecent,
	ActionGotoBookmarks: ModeBookmarks,
	ActionGotoSplit:     ModeSplit,
	ActionGotoLogs:      ModeLogs,
}

type keyMap struct {
	quit           key.Binding
	forceQuit      key.Binding
	nextMode       key.Binding
	prevMode       key.Binding
	search         key.Binding
	help           key.Binding
	escape         key.Binding
	gotoMode       [7]key.Binding
	up             key.Binding
	down           key.Binding
	top            key.Binding
	bottom         key.Binding
	pageUp         key.Binding
	pageDown       key.Binding
	expand         key.Binding
	collapse       key.Binding
	toggle         key.Binding
	open           key.Binding
	edit           key.Binding
	bookmark       key.Binding
	copyID         key.Binding
	copyContent    key.Binding
	back           key.Binding
	forward        key.Binding
	refresh        key.Binding
	searchUp       key.Binding
	searchDown     key.Binding
	searchFuzzy    key.Binding
	searchArchived key.Binding
	searchEdit     key.Binding
	searchRefresh  key.Binding
}

func newKeyMap() keyMap {
	k := keyMap{
		quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		forceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		nextMode: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next view"),
		),
		prevMode: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous view"),
		),
		search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back to previous view"),
		),
		up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
		top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		pageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("ctrl+u", "page up"),
		),
		pageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("ctrl+d", "page down"),
		),
		expand: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("→/l", "expand"),
		),
		collapse: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("←/h", "collapse"),
		),
		toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "toggle"),
		),
		open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("↵", "open"),
		),
		edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit in $EDITOR"),
		),
		bookmark: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "bookmark"),
		),
		copyID: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy id"),
		),
		copyContent: key.NewBinding(
			key.WithKeys("Y"),
			key.WithHelp("Y", "copy content"),
		),
		back: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "history back"),
		),
		forward: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "history forward"),
		),
		refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		searchUp: key.NewBinding(
			key.WithKeys("up", "ctrl+p"),
			key.WithHelp("↑", "previous result"),
		),
		searchDown: key.NewBinding(
			key.WithKeys("down", "ctrl+n"),
			key.WithHelp("↓", "next result"),
		),
		searchFuzzy: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("ctrl+f", "fuzzy/server"),
		),
		searchArchived: key.NewBinding(
			key.WithKeys("ctrl+a"),
			key.WithHelp("ctrl+a", "archived"),
		),
		searchEdit: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("ctrl+e", "edit result"),
		),
		searchRefresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "clear search"),
		),
	}
	for i, mode := range cycle {
		digit := string(rune('1' + i))
		k.gotoMode[i] = key.NewBinding(
			key.WithKeys(digit),
			key.WithHelp(digit, mode.String()),
		)
	}
	return k
}

// fullHelp lists the bindings shown in Help, grouped into columns.
func (k keyMap) fullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.nextMode, k.prevMode, k.search, k.help, k.escape, k.quit},
		{k.up, k.down, k.top, k.bottom, k.pageUp, k.pageDown},
		{k.expand, k.collapse, k.toggle, k.open, k.back, k.forward},
		{k.edit, k.bookmark, k.copyID, k.copyContent, k.refresh},
		{k.searchFuzzy, k.searchArchived, k.searchEdit, k.searchRefresh},
	}
}

func (k keyMap) shortHelp(mode Mode) []key.Binding {
	switch mode {
	case ModeSearch:
		return []key.Binding{k.open, k.searchUp, k.searchDown, k.searchFuzzy, k.escape}
	case ModeTree, ModeSplit:
		return []key.Binding{k.expand, k.collapse, k.open, k.edit, k.search, k.help}
	default:
		return []key.Binding{k.nextMode, k.up, k.down, k.edit, k.search, k.help}
	}
}

var keys = newKeyMap()

// Lookup maps a key press in mode to an action. It depends on nothing but
// its arguments.
func Lookup(mode Mode, msg tea.KeyMsg) Action {
	switch {
	case key.Matches(msg, keys.forceQuit):
		return ActionQuit
	case key.Matches(msg, keys.nextMode):
		return ActionNextMode
	case key.Matches(msg, keys.prevMode):
		return ActionPrevMode
	case key.Matches(msg, keys.escape):
		return ActionEscape
	}

	if mode == ModeSearch {
		return lookupSearch(msg)
	}

	switch {
	case key.Matches(msg, keys.quit):
		return ActionQuit
	case key.Matches(msg, keys.help):
		if mode == ModeHelp {
			return ActionEscape
		}
		return ActionHelp
	case key.Matches(msg, keys.search):
		return ActionSearch
	}
	for i, b := range keys.gotoMode {
		if key.Matches(msg, b) {
			return ActionGotoTree + Action(i)
		}
	}
	if mode == ModeHelp {
		return ActionNone
	}

	switch {
	case key.Matches(msg, keys.up):
		return ActionUp
	case key.Matches(msg, keys.down):
		return ActionDown
	case key.Matches(msg, keys.top):
		return ActionTop
	case key.Matches(msg, keys.bottom):
		return ActionBottom
	case key.Matches(msg, keys.pageUp):
		return ActionPageUp
	case key.Matches(msg, keys.pageDown):
		return ActionPageDown
	case key.Matches(msg, keys.refresh):
		return ActionRefresh
	}
	if mode == ModeLogs {
		return ActionNone
	}

	switch {
	case key.Matches(msg, keys.edit):
		return ActionEdit
	case key.Matches(msg, keys.bookmark):
		return ActionBookmark
	case key.Matches(msg, keys.copyID):
		return ActionCopyID
	case key.Matches(msg, keys.copyContent):
		return ActionCopyContent
	case key.Matches(msg, keys.back):
		return ActionHistoryBack
	case key.Matches(msg, keys.forward):
		return ActionHistoryForward
	}

	switch mode {
	case ModeTree, ModeSplit:
		switch {
		case key.Matches(msg, keys.expand):
			return ActionExpand
		case key.Matches(msg, keys.collapse):
			return ActionCollapse
		case key.Matches(msg, keys.toggle):
			return ActionToggle
		case key.Matches(msg, keys.open):
			return ActionOpen
		}
	case ModeRecent, ModeBookmarks:
		if key.Matches(msg, keys.open) {
			return ActionOpen
		}
	}
	return ActionNone
}

// lookupSearch treats anything that is not a search command as typing.
func lookupSearch(msg tea.KeyMsg) Action {
	switch {
	case key.Matches(msg, keys.open):
		return ActionOpen
	case key.Matches(msg, keys.searchUp):
		return ActionUp
	case key.Matches(msg, keys.searchDown):
		return ActionDown
	case key.Matches(msg, keys.searchFuzzy):
		return ActionToggleFuzzy
	case key.Matches(msg, keys.searchArchived):
		return ActionToggleArchived
	case key.Matches(msg, keys.searchEdit):
		return ActionEdit
	case key.Matches(msg, keys.searchRefresh):
		return ActionRefresh
	}
	return ActionInput
}
