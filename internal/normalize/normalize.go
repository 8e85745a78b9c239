package normalize

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// skipElements never contribute text.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
}

// Text collapses runs of whitespace to single spaces and trims both ends.
// NBSP counts as whitespace (unicode.IsSpace).
func Text(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most max runes. No ellipsis is added, names are
// identifiers in exports.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}

// Len is the rune length of s.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

// NodeText flattens the text under n, treating every element boundary as
// whitespace. goquery's Text() glues sibling blocks together ("Name12K
// members"), which breaks the member and activity patterns.
func NodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipElements[n.Data] {
				return
			}
			sb.WriteByte(' ')
			defer sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return Text(sb.String())
}
