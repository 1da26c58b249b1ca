// Package display lays out plain text for the operator console.
package display

import (
	"strings"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const DefaultWidth = 80

// Wrap word-wraps text to width columns. A zero width uses DefaultWidth.
func Wrap(text string, width uint) string {
	if width == 0 {
		width = DefaultWidth
	}
	return wordwrap.String(text, int(width))
}

// Hang wraps text to width and indents every line after the first by n
// columns, so continuations sit under the start of the body.
func Hang(text string, width, n uint) string {
	if width == 0 {
		width = DefaultWidth
	}
	if n >= width {
		return Wrap(text, width)
	}

	first, rest, ok := strings.Cut(wordwrap.String(text, int(width)), "\n")
	if !ok {
		return first
	}
	rest = wordwrap.String(strings.ReplaceAll(rest, "\n", " "), int(width-n))
	return first + "\n" + indent.String(rest, n)
}

// Capitalize returns s with the first letter of each word in title case and
// everything else untouched. Casers hold state, so one is built per call.
func Capitalize(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(s)
}
