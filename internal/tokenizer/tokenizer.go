// Package tokenizer turns raw text into the normalized token stream used by
// both the indexing and the query path.
//
// A token is a maximal run of characters that are neither whitespace nor
// ASCII punctuation, lowercased. Everything outside those two sets (letters,
// digits, any non-ASCII rune) is a token character, so splitting is
// ASCII-delimiter based rather than Unicode-aware.
package tokenizer

import (
	"iter"
	"strings"
)

// Tokens returns a lazy, single-pass sequence over the tokens of text.
// Each call produces a fresh sequence; ranging over it twice rescans text.
func Tokens(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		inside := false
		begin := 0

		for i, r := range text {
			if IsTokenRune(r) {
				if !inside {
					begin = i
					inside = true
				}
				continue
			}
			if inside {
				inside = false
				if !yield(strings.ToLower(text[begin:i])) {
					return
				}
			}
		}

		if inside {
			yield(strings.ToLower(text[begin:]))
		}
	}
}

// Tokenize returns the tokens of text in left-to-right order.
// Empty input yields an empty (non-nil) slice.
func Tokenize(text string) []string {
	tokens := []string{}
	for tok := range Tokens(text) {
		tokens = append(tokens, tok)
	}
	return tokens
}

// Tally counts occurrences of each token in text and returns the frequency
// table together with the total number of tokens.
func Tally(text string) (map[string]int, int) {
	freq := make(map[string]int)
	total := 0
	for tok := range Tokens(text) {
		freq[tok]++
		total++
	}
	return freq, total
}

// IsTokenRune reports whether r belongs to a token.
func IsTokenRune(r rune) bool {
	return !IsWhitespace(r) && !IsPunctuation(r)
}

// IsWhitespace reports whether r is one of space, CR, LF, TAB, VT or FF.
func IsWhitespace(r rune) bool {
	switch r {
	case ' ', '\r', '\n', '\t', '\v', '\f':
		return true
	}
	return false
}

// IsPunctuation reports whether r falls in the printable ASCII symbol ranges
// [33,47], [58,64], [91,96] or [123,126].
func IsPunctuation(r rune) bool {
	return (r >= 33 && r <= 47) ||
		(r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) ||
		(r >= 123 && r <= 126)
}
