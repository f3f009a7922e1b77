package app

import "strings"

// Mode is one of the screens the controller can show. Exactly one is active.
type Mode int

const (
	ModeTree Mode = iota
	ModeContent
	ModeSearch
	ModeRecent
	ModeBookmarks
	ModeSplit
	ModeLogs
	ModeHelp

	numModes
)

// cycle is the Tab order; Help is reached only through its own key.
var cycle = []Mode{ModeTree, ModeContent, ModeSearch, ModeRecent, ModeBookmarks, ModeSplit, ModeLogs}

var modeNames = [numModes]string{
	ModeTree:      "Tree",
	ModeContent:   "Content",
	ModeSearch:    "Search",
	ModeRecent:    "Recent",
	ModeBookmarks: "Bookmarks",
	ModeSplit:     "Split",
	ModeLogs:      "Logs",
	ModeHelp:      "Help",
}

func (m Mode) String() string {
	if m < 0 || m >= numModes {
		return "Unknown"
	}
	return modeNames[m]
}

// ParseMode accepts a mode name in any case.
func ParseMode(s string) (Mode, bool) {
	for i, name := range modeNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return Mode(i), true
		}
	}
	return ModeTree, false
}

// Next is the mode after m in Tab order. Help continues from Tree.
func (m Mode) Next() Mode {
	return m.step(1)
}

func (m Mode) Prev() Mode {
	return m.step(-1)
}

func (m Mode) step(d int) Mode {
	idx := 0
	for i, c := range cycle {
		if c == m {
			idx = i
			break
		}
	}
	n := len(cycle)
	return cycle[((idx+d)%n+n)%n]
}
