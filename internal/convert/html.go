package convert

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	rePreCode   = regexp.MustCompile(`(?is)<pre[^>]*>\s*<code[^>]*>(.*?)</code>\s*</pre>`)
	rePre       = regexp.MustCompile(`(?is)<pre[^>]*>(.*?)</pre>`)
	reStrong    = regexp.MustCompile(`(?is)<(?:strong|b)(?:\s[^>]*)?>(.*?)</(?:strong|b)>`)
	reEm        = regexp.MustCompile(`(?is)<(?:em|i)(?:\s[^>]*)?>(.*?)</(?:em|i)>`)
	reCode      = regexp.MustCompile(`(?is)<code[^>]*>(.*?)</code>`)
	reAnchor    = regexp.MustCompile(`(?is)<a\s[^>]*?href\s*=\s*["']([^"']*)["'][^>]*>(.*?)</a>`)
	reOrdered   = regexp.MustCompile(`(?is)<ol[^>]*>(.*?)</ol>`)
	reUnordered = regexp.MustCompile(`(?is)<ul[^>]*>(.*?)</ul>`)
	reItem      = regexp.MustCompile(`(?is)<li[^>]*>(.*?)</li>`)
	reBreak     = regexp.MustCompile(`(?i)<br\s*/?>`)
	reBlockOpen = regexp.MustCompile(`(?i)<(?:p|div|blockquote)(?:\s[^>]*)?>`)
	reBlockEnd  = regexp.MustCompile(`(?i)</(?:p|div|blockquote)>`)
	reAnyTag    = regexp.MustCompile(`<[^>]+>`)
	reBlankRuns = regexp.MustCompile(`\n{3,}`)
	reHeadings  = func() [6]*regexp.Regexp {
		var out [6]*regexp.Regexp
		for i := range out {
			out[i] = regexp.MustCompile(fmt.Sprintf(`(?is)<h%d(?:\s[^>]*)?>(.*?)</h%d>`, i+1, i+1))
		}
		return out
	}()
)

const placeholder = "\x00%d\x00"

// HTMLToMarkdown rewrites the common block and inline tags as Markdown and
// strips whatever is left.
func HTMLToMarkdown(src string) string {
	s := strings.ReplaceAll(src, "\r\n", "\n")

	var blocks []string
	protect := func(body string) string {
		blocks = append(blocks, "\n```\n"+strings.Trim(html.UnescapeString(body), "\n")+"\n```\n")
		return fmt.Sprintf(placeholder, len(blocks)-1)
	}
	s = rePreCode.ReplaceAllStringFunc(s, func(m string) string {
		return protect(rePreCode.FindStringSubmatch(m)[1])
	})
	s = rePre.ReplaceAllStringFunc(s, func(m string) string {
		return protect(reAnyTag.ReplaceAllString(rePre.FindStringSubmatch(m)[1], ""))
	})

	for level, re := range reHeadings {
		prefix := strings.Repeat("#", level+1)
		s = re.ReplaceAllStringFunc(s, func(m string) string {
			inner := singleLine(re.FindStringSubmatch(m)[1])
			return "\n" + prefix + " " + inner + "\n\n"
		})
	}

	s = reStrong.ReplaceAllString(s, "**$1**")
	s = reEm.ReplaceAllString(s, "*$1*")
	s = reCode.ReplaceAllString(s, "`$1`")
	s = reAnchor.ReplaceAllString(s, "[$2]($1)")

	s = reOrdered.ReplaceAllStringFunc(s, func(m string) string {
		return listToMarkdown(reOrdered.FindStringSubmatch(m)[1], true)
	})
	s = reUnordered.ReplaceAllStringFunc(s, func(m string) string {
		return listToMarkdown(reUnordered.FindStringSubmatch(m)[1], false)
	})

	s = reBreak.ReplaceAllString(s, "\n")
	s = reBlockOpen.ReplaceAllString(s, "")
	s = reBlockEnd.ReplaceAllString(s, "\n\n")
	s = reAnyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")

	for i, block := range blocks {
		s = strings.Replace(s, fmt.Sprintf(placeholder, i), block, 1)
	}

	s = reBlankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func listToMarkdown(body string, ordered bool) string {
	var b strings.Builder
	b.WriteString("\n")
	for i, m := range reItem.FindAllStringSubmatch(body, -1) {
		inner := reBlockOpen.ReplaceAllString(m[1], "")
		inner = singleLine(reBlockEnd.ReplaceAllString(inner, " "))
		if ordered {
			b.WriteString(strconv.Itoa(i+1) + ". ")
		} else {
			b.WriteString("- ")
		}
		b.WriteString(inner)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
