package editor

import "unicode"

// SplitCommand splits an editor command line into argv. Single and double
// quotes group words, and a backslash escapes the next rune outside single
// quotes.
func SplitCommand(s string) []string {
	var out []string
	var cur []rune
	inSingle, inDouble, escaped := false, false, false
	started := false

	flush := func() {
		if !started {
			return
		}
		out = append(out, string(cur))
		cur = cur[:0]
		started = false
	}

	for _, r := range s {
		switch {
		case escaped:
			cur = append(cur, r)
			escaped = false
		case r == '\\' && !inSingle:
			escaped, started = true, true
		case r == '\'' && !inDouble:
			inSingle, started = !inSingle, true
		case r == '"' && !inSingle:
			inDouble, started = !inDouble, true
		case !inSingle && !inDouble && unicode.IsSpace(r):
			flush()
		default:
			cur = append(cur, r)
			started = true
		}
	}
	flush()
	return out
}
