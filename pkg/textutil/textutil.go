// Package textutil holds the small text helpers shared by poll rendering:
// HTML escaping for Telegram's HTML parse mode and character-safe slicing.
package textutil

import (
	"strings"

	"github.com/rivo/uniseg"
)

// htmlReplacer escapes exactly the characters Telegram's HTML parse mode reserves.
var htmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeHTML escapes &, < and > in text.
func EscapeHTML(text string) string {
	return htmlReplacer.Replace(text)
}

// Bold escapes text and wraps it in <b> tags.
func Bold(text string) string {
	return "<b>" + EscapeHTML(text) + "</b>"
}

// BoldFirstLine bolds the first line of text; the remaining lines are escaped only.
func BoldFirstLine(text string) string {
	first, rest, found := strings.Cut(text, "\n")
	out := Bold(first)
	if found {
		out += "\n" + EscapeHTML(rest)
	}
	return out
}

// Len returns the number of user-perceived characters (grapheme clusters) in text.
func Len(text string) int {
	return uniseg.GraphemeClusterCount(text)
}

// Truncate returns the first n user-perceived characters of text. A multi-codepoint
// character (emoji with modifiers, flags, combining marks) is never split.
func Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	g := uniseg.NewGraphemes(text)
	end, count := 0, 0
	for count < n && g.Next() {
		_, end = g.Positions()
		count++
	}
	return text[:end]
}
