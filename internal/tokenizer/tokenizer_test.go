package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_SplitsOnPunctuationAndLowercases(t *testing.T) {
	// Given: mixed-case text with punctuation
	text := "Hello, World!"

	// When: tokenizing
	tokens := Tokenize(text)

	// Then: punctuation is stripped and tokens are lowercased
	assert.Equal(t, []string{"hello", "world"}, tokens)
}

func TestTokenize_EdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{name: "empty", input: "", expect: []string{}},
		{name: "single char", input: "a", expect: []string{"a"}},
		{name: "only punctuation", input: "!?.,;:-()[]{}~`@#$%^&*", expect: []string{}},
		{name: "only whitespace", input: " \t\r\n\v\f ", expect: []string{}},
		{name: "trailing token", input: "foo bar", expect: []string{"foo", "bar"}},
		{name: "leading separators", input: "  ...foo", expect: []string{"foo"}},
		{name: "consecutive punctuation", input: "a--b..c", expect: []string{"a", "b", "c"}},
		{name: "digits kept", input: "route66 is 4U", expect: []string{"route66", "is", "4u"}},
		{name: "underscore splits", input: "snake_case", expect: []string{"snake", "case"}},
		{name: "apostrophe splits", input: "don't", expect: []string{"don", "t"}},
		{name: "non-ascii letters kept", input: "Café Über", expect: []string{"café", "über"}},
		{name: "non-ascii punctuation kept", input: "a—b", expect: []string{"a—b"}},
		{name: "tabs and newlines", input: "one\ttwo\nthree", expect: []string{"one", "two", "three"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, Tokenize(tt.input))
		})
	}
}

func TestTokenize_IdempotentOnNormalizedInput(t *testing.T) {
	// Given: text that is already lowercased and space separated
	first := Tokenize("The quick, brown FOX; jumps!")

	// When: re-tokenizing the joined output
	second := Tokenize(strings.Join(first, " "))

	// Then: the result is unchanged
	assert.Equal(t, first, second)
}

func TestTokens_IsRestartable(t *testing.T) {
	seq := Tokens("alpha beta")

	var firstPass, secondPass []string
	for tok := range seq {
		firstPass = append(firstPass, tok)
	}
	for tok := range seq {
		secondPass = append(secondPass, tok)
	}

	assert.Equal(t, []string{"alpha", "beta"}, firstPass)
	assert.Equal(t, firstPass, secondPass)
}

func TestTokens_StopsEarly(t *testing.T) {
	var got []string
	for tok := range Tokens("one two three four") {
		got = append(got, tok)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestTally_CountsOccurrences(t *testing.T) {
	// Given: text with repeated tokens
	freq, total := Tally("cat Cat CAT dog")

	// Then: counts are case-insensitive and sum to the total
	require.Len(t, freq, 2)
	assert.Equal(t, 3, freq["cat"])
	assert.Equal(t, 1, freq["dog"])
	assert.Equal(t, 4, total)
}

func TestTally_Empty(t *testing.T) {
	freq, total := Tally("  ,,, ")
	assert.Empty(t, freq)
	assert.Zero(t, total)
}

func TestIsPunctuation_Ranges(t *testing.T) {
	for r := rune(0); r < 128; r++ {
		want := (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126)
		assert.Equal(t, want, IsPunctuation(r), "rune %d", r)
	}
	assert.False(t, IsPunctuation('a'))
	assert.False(t, IsPunctuation('Z'))
	assert.False(t, IsPunctuation('0'))
	assert.False(t, IsPunctuation('é'))
}
