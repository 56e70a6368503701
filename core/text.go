package core

import (
	"strings"
	"unicode"
)

// NormalizeText prepares OCR transcripts and query text for embedding.
// Control and zero-width characters are dropped and whitespace runs
// collapse to single spaces, so visually identical transcripts embed
// identically regardless of the engine's spacing habits.
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if unicode.IsControl(r) || isZeroWidth(r) {
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}

	return b.String()
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200D', '\uFEFF':
		return true
	}
	return false
}
