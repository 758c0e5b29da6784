package store

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
	"github.com/rpopa-dp/srch/internal/tokenizer"
)

// MaxQueryTerms bounds the tokens of one query. The SQL backends bind one
// parameter per token and older SQLite builds accept at most 999.
const MaxQueryTerms = 512

// queryTerms tokenizes query, rejecting queries longer than MaxQueryTerms.
func queryTerms(query string) ([]string, error) {
	terms := tokenizer.Tokenize(query)
	if len(terms) > MaxQueryTerms {
		return nil, srcherr.ValidationError(
			fmt.Sprintf("query has %d terms, at most %d are allowed", len(terms), MaxQueryTerms), nil)
	}
	return terms, nil
}

// TF returns the normalized term frequency: occurrences of a term in a
// document divided by the document's token count.
func TF(freq, termCount int) float64 {
	if freq == 0 || termCount == 0 {
		return 0
	}
	return float64(freq) / float64(termCount)
}

// IDF returns log2(totalDocs / docFreq), or 0 for a term never seen.
// A term present in every document also scores 0.
func IDF(docFreq, totalDocs int) float64 {
	if docFreq == 0 || totalDocs == 0 {
		return 0
	}
	return math.Log2(float64(totalDocs) / float64(docFreq))
}

// compareResults orders by score descending, then title and id ascending.
func compareResults(a, b *Result) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Title, b.Title); c != 0 {
		return c
	}
	return cmp.Compare(a.DocumentID, b.DocumentID)
}

// rank drops non-positive scores, sorts and truncates to k results.
func rank(results []*Result, k int) []*Result {
	kept := results[:0]
	for _, r := range results {
		if r.Score > 0 {
			kept = append(kept, r)
		}
	}

	slices.SortFunc(kept, compareResults)

	if len(kept) > k {
		kept = kept[:k]
	}
	return kept
}
