package textvec

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Tokenize normalizes text and splits it into terms.
//
// Input is NFKC-normalized and case-folded, then every rune that is not a
// letter, digit, mark, underscore or whitespace is dropped ("what's" becomes
// "whats"). The result is split on whitespace. Empty or punctuation-only input
// returns nil.
func Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	// cases.Caser is stateful, so a fresh one is taken per call.
	folded := cases.Fold().String(norm.NFKC.String(text))

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r), r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	return strings.Fields(b.String())
}
