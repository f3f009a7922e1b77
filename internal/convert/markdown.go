package convert

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	reATXHeading = regexp.MustCompile(`^(#{1,6})\s+(.*?)(?:\s+#+)?\s*$`)
	reBullet     = regexp.MustCompile(`^\s*[-*+]\s+(.*)$`)
	reNumbered   = regexp.MustCompile(`^\s*\d+[.)]\s+(.*)$`)
	reCodeSpan   = regexp.MustCompile("`([^`]+)`")
	reMDLink     = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	reBoldStar   = regexp.MustCompile(`\*\*(\S(?:.*?\S)?)\*\*`)
	reBoldUnder  = regexp.MustCompile(`__(\S(?:.*?\S)?)__`)
	reItalic     = regexp.MustCompile(`\*(\S(?:.*?\S)?)\*`)
)

type mdWriter struct {
	blocks   []string
	para     []string
	listTag  string
	items    []string
	inFence  bool
	fenceBuf []string
}

func (w *mdWriter) flush() {
	if len(w.para) > 0 {
		w.blocks = append(w.blocks, "<p>"+strings.Join(w.para, "<br>")+"</p>")
		w.para = nil
	}
	if w.listTag != "" {
		w.blocks = append(w.blocks, fmt.Sprintf("<%s>%s</%s>", w.listTag, strings.Join(w.items, ""), w.listTag))
		w.listTag, w.items = "", nil
	}
}

func (w *mdWriter) item(tag, body string) {
	if len(w.para) > 0 || (w.listTag != "" && w.listTag != tag) {
		w.flush()
	}
	w.listTag = tag
	w.items = append(w.items, "<li>"+inlineHTML(body)+"</li>")
}

// MarkdownToHTML renders headings, lists, fenced code, paragraphs and the
// inline emphasis, code and link forms. Anything else is escaped text.
func MarkdownToHTML(src string) string {
	w := &mdWriter{}
	for _, line := range strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)

		if w.inFence {
			if strings.HasPrefix(trimmed, "```") {
				w.blocks = append(w.blocks, "<pre><code>"+html.EscapeString(strings.Join(w.fenceBuf, "\n"))+"</code></pre>")
				w.inFence, w.fenceBuf = false, nil
				continue
			}
			w.fenceBuf = append(w.fenceBuf, line)
			continue
		}

		switch {
		case trimmed == "":
			w.flush()
		case strings.HasPrefix(trimmed, "```"):
			w.flush()
			w.inFence = true
		case reATXHeading.MatchString(trimmed):
			w.flush()
			m := reATXHeading.FindStringSubmatch(trimmed)
			level := len(m[1])
			w.blocks = append(w.blocks, fmt.Sprintf("<h%d>%s</h%d>", level, inlineHTML(m[2]), level))
		case reBullet.MatchString(line):
			w.item("ul", reBullet.FindStringSubmatch(line)[1])
		case reNumbered.MatchString(line):
			w.item("ol", reNumbered.FindStringSubmatch(line)[1])
		default:
			if w.listTag != "" {
				w.flush()
			}
			w.para = append(w.para, inlineHTML(trimmed))
		}
	}

	if w.inFence {
		w.blocks = append(w.blocks, "<pre><code>"+html.EscapeString(strings.Join(w.fenceBuf, "\n"))+"</code></pre>")
	}
	w.flush()
	return strings.Join(w.blocks, "\n")
}

func inlineHTML(s string) string {
	var spans []string
	s = reCodeSpan.ReplaceAllStringFunc(s, func(m string) string {
		spans = append(spans, "<code>"+html.EscapeString(reCodeSpan.FindStringSubmatch(m)[1])+"</code>")
		return fmt.Sprintf(placeholder, len(spans)-1)
	})

	s = html.EscapeString(s)
	s = reMDLink.ReplaceAllString(s, `<a href="$2">$1</a>`)
	s = reBoldStar.ReplaceAllString(s, "<strong>$1</strong>")
	s = reBoldUnder.ReplaceAllString(s, "<strong>$1</strong>")
	s = reItalic.ReplaceAllString(s, "<em>$1</em>")

	for i, span := range spans {
		s = strings.Replace(s, fmt.Sprintf(placeholder, i), span, 1)
	}
	return s
}
