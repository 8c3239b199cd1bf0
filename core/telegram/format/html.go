// Package format renders user-supplied text safely for Telegram's HTML parse mode.
package format

import (
	"html"
	"strings"
)

// Escape escapes &, <, > and quotes so s renders literally under ParseMode HTML.
func Escape(s string) string {
	return html.EscapeString(s)
}

// Bold wraps the escaped s in <b>.
func Bold(s string) string {
	return "<b>" + Escape(s) + "</b>"
}

// Code wraps the escaped s in <code>.
func Code(s string) string {
	return "<code>" + Escape(s) + "</code>"
}

// Truncate shortens s to at most max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return strings.TrimRightFunc(string(r[:max-1]), func(r rune) bool { return r == ' ' }) + "…"
}
