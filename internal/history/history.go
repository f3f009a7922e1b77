// Package history tracks the notes the user has opened, browser style.
package history

// History is an ordered list of note ids with a cursor. Pushing after going
// back drops everything ahead of the cursor.
type History struct {
	ids   []string
	index int
	limit int
}

// DefaultLimit bounds how many entries are kept before the oldest is dropped.
const DefaultLimit = 200

func New(limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{index: -1, limit: limit}
}

// Push records id as the current entry. Visiting the current entry again is
// not a new step.
func (h *History) Push(id string) {
	if id == "" {
		return
	}
	if cur, ok := h.Current(); ok && cur == id {
		return
	}
	h.ids = append(h.ids[:h.index+1], id)
	if over := len(h.ids) - h.limit; over > 0 {
		h.ids = append([]string(nil), h.ids[over:]...)
	}
	h.index = len(h.ids) - 1
}

func (h *History) Back() (string, bool) {
	if h.index <= 0 {
		return "", false
	}
	h.index--
	return h.ids[h.index], true
}

func (h *History) Forward() (string, bool) {
	if h.index+1 >= len(h.ids) {
		return "", false
	}
	h.index++
	return h.ids[h.index], true
}

func (h *History) Current() (string, bool) {
	if h.index < 0 || h.index >= len(h.ids) {
		return "", false
	}
	return h.ids[h.index], true
}

func (h *History) Len() int { return len(h.ids) }

// Recent returns up to n distinct ids, most recently pushed first. A
// non-positive n returns them all.
func (h *History) Recent(n int) []string {
	seen := make(map[string]bool, len(h.ids))
	var out []string
	for i := len(h.ids) - 1; i >= 0; i-- {
		id := h.ids[i]
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}
