package triage

import (
	"strings"
	"unicode"
)

// punctuation replaced by a single space during normalization.
const punctuation = ".,;:!?(){}[]\"'`~"

// Normalize lowercases text with Turkish-aware case folding, replaces
// punctuation with spaces and collapses whitespace. Both the symptom
// interpreter and the specialty scorer consume its output, so it must be
// byte-for-byte reproducible.
//
// Go's strings.ToLower maps U+0130 (İ) to "i" plus a combining dot, which
// would break substring matching against the catalog variants; the two
// Turkish dotted/dotless pairs are therefore folded explicitly first.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for _, r := range text {
		switch {
		case r == 'İ':
			b.WriteRune('i')
		case r == 'I':
			b.WriteRune('ı')
		case strings.ContainsRune(punctuation, r):
			b.WriteRune(' ')
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
