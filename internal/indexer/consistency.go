package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/rpopa-dp/srch/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyTermCount indicates an entry whose term_count differs from
	// the sum of its term frequencies.
	InconsistencyTermCount InconsistencyType = iota
	// InconsistencyDocumentFreq indicates a term whose document_freq differs
	// from the number of entries containing it.
	InconsistencyDocumentFreq
	// InconsistencyMissingTerm indicates a posting for a term with no terms row.
	InconsistencyMissingTerm
)

// String returns a short name for the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyTermCount:
		return "term_count"
	case InconsistencyDocumentFreq:
		return "document_freq"
	case InconsistencyMissingTerm:
		return "missing_term"
	default:
		return "unknown"
	}
}

// Inconsistency represents a detected invariant violation.
type Inconsistency struct {
	Type    InconsistencyType
	Subject string
	Details string
}

// String formats the issue for display.
func (i Inconsistency) String() string {
	return fmt.Sprintf("%s %s: %s", i.Type, i.Subject, i.Details)
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of entries verified.
	Checked int
	// Inconsistencies contains all detected issues.
	Inconsistencies []Inconsistency
	// Duration is how long the check took.
	Duration time.Duration
}

// ConsistencyChecker validates that an index upholds its invariants after
// any sequence of Add calls.
type ConsistencyChecker struct {
	index store.Index
}

// NewConsistencyChecker creates a checker for idx.
func NewConsistencyChecker(idx store.Index) *ConsistencyChecker {
	return &ConsistencyChecker{index: idx}
}

// Check loads every entry and the term table and compares them.
// This is O(postings).
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	entries, err := c.index.Entries(ctx)
	if err != nil {
		return nil, err
	}
	terms, err := c.index.Terms(ctx)
	if err != nil {
		return nil, err
	}

	var issues []Inconsistency
	counted := make(map[string]int, len(terms))

	for _, e := range entries {
		sum := 0
		for term, n := range e.TermFreq {
			sum += n
			counted[term]++
		}
		if sum != e.TermCount {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyTermCount,
				Subject: fmt.Sprintf("document %d", e.Document.ID),
				Details: fmt.Sprintf("term_count %d, postings sum %d", e.TermCount, sum),
			})
		}
	}

	for _, term := range sortedKeys(counted) {
		if _, ok := terms[term]; !ok {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyMissingTerm,
				Subject: fmt.Sprintf("term %q", term),
				Details: fmt.Sprintf("in %d documents but not in the term table", counted[term]),
			})
		}
	}
	for _, term := range sortedKeys(terms) {
		if df := terms[term]; df != counted[term] {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyDocumentFreq,
				Subject: fmt.Sprintf("term %q", term),
				Details: fmt.Sprintf("document_freq %d, found in %d documents", df, counted[term]),
			})
		}
	}

	if len(issues) > 0 {
		slog.Warn("index_inconsistent",
			slog.Int("entries", len(entries)),
			slog.Int("issues", len(issues)))
	}

	return &CheckResult{
		Checked:         len(entries),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// QuickCheck only compares the aggregate posting count with the sum of
// document frequencies, which must be equal.
func (c *ConsistencyChecker) QuickCheck(ctx context.Context) (bool, error) {
	stats, err := c.index.Stats(ctx)
	if err != nil {
		return false, err
	}
	terms, err := c.index.Terms(ctx)
	if err != nil {
		return false, err
	}

	dfSum := 0
	for _, df := range terms {
		dfSum += df
	}

	consistent := dfSum == stats.Postings
	if !consistent {
		slog.Debug("index counts mismatch",
			slog.Int("postings", stats.Postings),
			slog.Int("document_freq_sum", dfSum))
	}
	return consistent, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
