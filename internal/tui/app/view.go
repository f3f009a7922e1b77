package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Paintersrp/notetree/internal/search"
	"github.com/Paintersrp/notetree/internal/tree"
)

func (m Model) View() string {
	body := lipgloss.NewStyle().
		Height(m.bodyHeight()).
		MaxHeight(m.bodyHeight()).
		Render(m.viewBody())

	return appStyle.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewTabs(),
		body,
		m.viewStatus(),
		m.viewHelp(),
	))
}

func (m Model) viewTabs() string {
	tabs := make([]string, 0, len(cycle)+1)
	for i, mode := range cycle {
		label := fmt.Sprintf("%d %s", i+1, mode)
		if mode == m.mode {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	if m.mode == ModeHelp {
		tabs = append(tabs, activeTabStyle.Render("? Help"))
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if m.st.ProfileName != "" {
		bar += dimStyle.Render("  " + m.st.ProfileName)
	}
	return bar
}

func (m Model) viewBody() string {
	switch m.mode {
	case ModeTree:
		return m.viewTree(m.frameWidth(), m.bodyHeight())
	case ModeContent:
		return m.viewContent()
	case ModeSearch:
		return m.viewSearch()
	case ModeRecent:
		return m.viewNoteList(ModeRecent, m.recentIDs(), "No recently opened notes.")
	case ModeBookmarks:
		return m.viewNoteList(ModeBookmarks, m.bookmarks, "No bookmarks. Press b on a note to add one.")
	case ModeSplit:
		left := treePaneStyle.
			Width(m.treeWidth()).
			Height(m.bodyHeight()).
			Render(m.viewTree(m.treeWidth(), m.bodyHeight()))
		return lipgloss.JoinHorizontal(lipgloss.Top, left, m.viewContent())
	case ModeLogs:
		return m.viewLogs()
	case ModeHelp:
		return helpStyle.Render(m.help.FullHelpView(keys.fullHelp()))
	}
	return ""
}

func (m Model) viewTree(width, height int) string {
	rows := m.st.Store.Rows()
	if len(rows) == 0 {
		return dimStyle.Render("Loading notes...")
	}
	lines := make([]string, 0, height)
	window(len(rows), m.offset[m.mode], height, func(i int) {
		line := treeLine(rows[i], width)
		if i == m.st.Store.Focus() {
			line = selectedItemStyle.Render(line)
		} else {
			line = textStyle.Render(line)
		}
		lines = append(lines, line)
	})
	return strings.Join(lines, "\n")
}

func treeLine(r tree.Row, width int) string {
	indent := strings.Repeat("  ", r.Depth)
	marker := "• "
	switch {
	case r.HasChildren && r.Expanded:
		marker = "▾ "
	case r.HasChildren:
		marker = "▸ "
	}
	name := r.Title
	if name == "" {
		name = r.ID
	}
	avail := max(width-runewidth.StringWidth(indent+marker), 1)
	return indent + marker + runewidth.Truncate(name, avail, "…")
}

func (m Model) viewContent() string {
	if m.contentNote.ID == "" {
		return dimStyle.Render("Select a note to read it.")
	}
	header := titleStyle.Render(runewidth.Truncate(title(m.contentNote), m.viewport.Width, "…"))
	if !m.contentLoaded {
		return header + "\n" + m.spinner.View() + " loading"
	}
	return header + "\n" + m.viewport.View()
}

func (m Model) viewSearch() string {
	kind := "server"
	if m.fuzzy {
		kind = "fuzzy"
	}
	if m.archived {
		kind += " · archived"
	}

	var b strings.Builder
	b.WriteString(inputStyle.Width(m.frameWidth() - 2).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s · %d results", kind, len(m.results))))

	width := m.frameWidth()
	window(len(m.results), m.offset[ModeSearch], m.listHeight(ModeSearch), func(i int) {
		b.WriteString("\n")
		line := resultLine(m.results[i], width)
		if i == m.cursor[ModeSearch] {
			line = selectedItemStyle.Render(line)
		}
		b.WriteString(line)
	})
	return b.String()
}

// resultLine highlights matched runes. Titles too wide to fit are truncated
// without highlights.
func resultLine(r search.Result, width int) string {
	name := title(r.Note)
	if runewidth.StringWidth(name) > width || len(r.Spans) == 0 {
		return textStyle.Render(runewidth.Truncate(name, width, "…"))
	}
	runes := []rune(name)
	var b strings.Builder
	last := 0
	for _, sp := range r.Spans {
		if sp.Start < last || sp.End > len(runes) {
			continue
		}
		b.WriteString(textStyle.Render(string(runes[last:sp.Start])))
		b.WriteString(matchStyle.Render(string(runes[sp.Start:sp.End])))
		last = sp.End
	}
	b.WriteString(textStyle.Render(string(runes[last:])))
	return b.String()
}

func (m Model) viewNoteList(mode Mode, ids []string, empty string) string {
	if len(ids) == 0 {
		return dimStyle.Render(empty)
	}
	width := m.frameWidth()
	lines := make([]string, 0, len(ids))
	window(len(ids), m.offset[mode], m.listHeight(mode), func(i int) {
		n := m.note(ids[i])
		line := runewidth.Truncate(title(n), width, "…")
		if path := m.st.Store.Path(n.ID); len(path) > 1 {
			parent := strings.Join(path[:len(path)-1], " / ")
			rest := width - runewidth.StringWidth(line) - 2
			if rest > 4 {
				line += dimStyle.Render("  " + runewidth.Truncate(parent, rest, "…"))
			}
		}
		if i == m.cursor[mode] {
			line = selectedItemStyle.Render(line)
		}
		lines = append(lines, line)
	})
	return strings.Join(lines, "\n")
}

func (m Model) viewLogs() string {
	entries := m.st.Logs.Entries()
	if len(entries) == 0 {
		return dimStyle.Render("Nothing logged yet.")
	}
	width := m.frameWidth()
	lines := make([]string, 0, len(entries))
	window(len(entries), m.offset[ModeLogs], m.listHeight(ModeLogs), func(i int) {
		line := runewidth.Truncate(entries[i].String(), width, "…")
		if i == m.cursor[ModeLogs] {
			line = selectedItemStyle.Render(line)
		}
		lines = append(lines, line)
	})
	return strings.Join(lines, "\n")
}

func (m Model) viewStatus() string {
	var prefix string
	if len(m.loading) > 0 {
		prefix = m.spinner.View() + " "
	}
	switch {
	case m.status.text == "":
		return prefix + dimStyle.Render(fmt.Sprintf("%d rows · %d bookmarks", m.st.Store.Len(), len(m.bookmarks)))
	case m.status.level == levelError:
		return prefix + errorStyle.Render(m.status.text)
	default:
		return prefix + infoStyle.Render(m.status.text)
	}
}

func (m Model) viewHelp() string {
	return helpStyle.Render(m.help.ShortHelpView(keys.shortHelp(m.mode)))
}

// window calls fn for each index of an n-item list visible from offset.
func window(n, offset, height int, fn func(i int)) {
	end := min(offset+height, n)
	for i := max(offset, 0); i < end; i++ {
		fn(i)
	}
}
