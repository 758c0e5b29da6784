package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryIndex is an Index held entirely in process memory.
// Search is a linear scan over every entry, which suits small corpora and tests.
type MemoryIndex struct {
	mu        sync.RWMutex
	config    IndexConfig
	entries   []*Entry
	docFreq   map[string]int
	buildID   string
	createdAt time.Time
	closed    bool
}

// Verify interface implementation at compile time
var _ Index = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex(config IndexConfig) *MemoryIndex {
	return &MemoryIndex{
		config:    config.withDefaults(),
		docFreq:   make(map[string]int),
		buildID:   uuid.NewString(),
		createdAt: time.Now().UTC(),
	}
}

// Add implements Index.
func (m *MemoryIndex) Add(_ context.Context, doc *Document) error {
	if doc == nil {
		return fmt.Errorf("document is nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("index is closed")
	}

	stored := *doc
	stored.ID = int64(len(m.entries) + 1)
	entry := NewEntry(stored)

	// Nothing below can fail, so the entry and its increments land together.
	m.entries = append(m.entries, entry)
	for term := range entry.TermFreq {
		m.docFreq[term]++
	}
	doc.ID = stored.ID

	return nil
}

// Search implements Index.
func (m *MemoryIndex) Search(_ context.Context, query string) ([]*Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("index is closed")
	}

	terms, err := queryTerms(query)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return []*Result{}, nil
	}

	total := len(m.entries)
	idf := make(map[string]float64, len(terms))
	for _, term := range terms {
		idf[term] = IDF(m.docFreq[term], total)
	}

	results := make([]*Result, 0, len(m.entries))
	for _, entry := range m.entries {
		score := 0.0
		// duplicated query terms count once per occurrence
		for _, term := range terms {
			score += TF(entry.Freq(term), entry.TermCount) * idf[term]
		}
		results = append(results, &Result{
			Score:      score,
			DocumentID: entry.Document.ID,
			Title:      entry.Document.Title,
		})
	}

	return rank(results, m.config.MaxResults), nil
}

// DocumentFreq implements Index.
func (m *MemoryIndex) DocumentFreq(_ context.Context, term string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docFreq[term], nil
}

// Terms implements Index.
func (m *MemoryIndex) Terms(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.docFreq), nil
}

// Entries implements Index.
func (m *MemoryIndex) Entries(_ context.Context) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Entry, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.clone()
	}
	return out, nil
}

// Stats implements Index.
func (m *MemoryIndex) Stats(_ context.Context) (*IndexStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &IndexStats{
		Backend:   string(BackendMemory),
		Documents: len(m.entries),
		Terms:     len(m.docFreq),
		BuildID:   m.buildID,
		CreatedAt: m.createdAt,
	}
	for _, e := range m.entries {
		stats.Postings += len(e.TermFreq)
		stats.Tokens += e.TermCount
	}

	top := make([]TermStat, 0, len(m.docFreq))
	for term, df := range m.docFreq {
		top = append(top, TermStat{Term: term, DocumentFreq: df})
	}
	slices.SortFunc(top, func(a, b TermStat) int {
		if c := cmp.Compare(b.DocumentFreq, a.DocumentFreq); c != 0 {
			return c
		}
		return cmp.Compare(a.Term, b.Term)
	})
	if len(top) > m.config.TopTerms {
		top = top[:m.config.TopTerms]
	}
	stats.TopTerms = top

	return stats, nil
}

// Close implements Index.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
