// Package store provides the inverted index: the document/entry data model,
// TF-IDF ranking, and the in-memory and SQL-backed index implementations.
package store

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/rpopa-dp/srch/internal/tokenizer"
)

// OrphanTerm names a posting whose terms row is missing. '#' is punctuation,
// so the name never collides with a token.
func OrphanTerm(termID int64) string {
	return "#" + strconv.FormatInt(termID, 10)
}

// DefaultMaxResults is the number of ranked results a search returns.
const DefaultMaxResults = 10

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// Document is a unit of text handed to the index by a document source.
// ID is assigned by the index when the document is added.
type Document struct {
	ID    int64
	Title string
	Body  string
}

// Entry is the indexed representation of one document.
// TermCount always equals the sum of TermFreq values.
type Entry struct {
	Document  Document
	TermFreq  map[string]int
	TermCount int
}

// NewEntry tokenizes the document body once and builds its term-frequency table.
func NewEntry(doc Document) *Entry {
	freq, total := tokenizer.Tally(doc.Body)
	return &Entry{
		Document:  doc,
		TermFreq:  freq,
		TermCount: total,
	}
}

// Freq returns the number of occurrences of term in the entry.
func (e *Entry) Freq(term string) int {
	return e.TermFreq[term]
}

// Terms returns the distinct terms of the entry in sorted order.
func (e *Entry) Terms() []string {
	return slices.Sorted(maps.Keys(e.TermFreq))
}

// clone returns a deep copy so callers never share the index's maps.
func (e *Entry) clone() *Entry {
	return &Entry{
		Document:  e.Document,
		TermFreq:  maps.Clone(e.TermFreq),
		TermCount: e.TermCount,
	}
}

// Result is a single ranked search hit.
type Result struct {
	Score      float64 `json:"score"`
	DocumentID int64   `json:"document_id"`
	Title      string  `json:"title"`
}

// TermStat is a term together with its document frequency.
type TermStat struct {
	Term         string `json:"term"`
	DocumentFreq int    `json:"document_freq"`
}

// IndexStats provides aggregate statistics about an index.
type IndexStats struct {
	Backend   string     `json:"backend"`
	Documents int        `json:"documents"`
	Terms     int        `json:"terms"`
	Postings  int        `json:"postings"`
	Tokens    int        `json:"tokens"`
	TopTerms  []TermStat `json:"top_terms"`
	BuildID   string     `json:"build_id,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitzero"`
}

// Index is an append-only inverted index answering TF-IDF ranked queries.
type Index interface {
	// Add tokenizes and stores a document. Either the entry, all of its
	// postings and every document-frequency increment become visible, or none do.
	Add(ctx context.Context, doc *Document) error

	// Search returns at most MaxResults documents with a strictly positive
	// score, ordered by score descending, then title and id ascending.
	Search(ctx context.Context, query string) ([]*Result, error)

	// DocumentFreq returns the number of documents containing term.
	DocumentFreq(ctx context.Context, term string) (int, error)

	// Terms returns a snapshot of the term -> document frequency mapping.
	Terms(ctx context.Context) (map[string]int, error)

	// Entries returns copies of all entries in insertion order.
	Entries(ctx context.Context) ([]*Entry, error)

	// Stats returns index statistics.
	Stats(ctx context.Context) (*IndexStats, error)

	Close() error
}

// IndexConfig configures an index.
type IndexConfig struct {
	// MaxResults is the top-K cut applied to ranked results (default: 10).
	MaxResults int

	// TopTerms is how many of the most frequent terms Stats reports (default: 10).
	TopTerms int
}

// DefaultIndexConfig returns default index configuration.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		MaxResults: DefaultMaxResults,
		TopTerms:   10,
	}
}

func (c IndexConfig) withDefaults() IndexConfig {
	d := DefaultIndexConfig()
	if c.MaxResults <= 0 {
		c.MaxResults = d.MaxResults
	}
	if c.TopTerms <= 0 {
		c.TopTerms = d.TopTerms
	}
	return c
}
