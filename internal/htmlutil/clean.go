package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
)

// ToText converts HTML to plain text using a proper HTML parser.
// Handles entities, strips tags, and preserves readable text.
func ToText(s string) string {
	return html2text.HTML2Text(s)
}

// Summarize turns an upstream error body (often an HTML error page) into a
// single line of at most max runes.
func Summarize(body string, max int) string {
	text := body
	if strings.Contains(body, "<") {
		text = ToText(body)
	}
	text = strings.Join(strings.Fields(text), " ")
	if max > 0 {
		if r := []rune(text); len(r) > max {
			text = string(r[:max]) + "…"
		}
	}
	return text
}
