package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
)

// addStage names a point inside the Add transaction.
type addStage string

const (
	stageDocument addStage = "document"
	stageTerms    addStage = "terms"
	stagePostings addStage = "postings"
)

// SQLIndex is an Index persisted in a relational database.
// Ranking is computed by the database in a single aggregate statement.
type SQLIndex struct {
	mu      sync.RWMutex
	db      *sql.DB
	dialect dialect
	backend Backend
	config  IndexConfig
	closed  bool

	// afterStage, when set, runs after each stage of Add. A non-nil
	// return aborts the transaction.
	afterStage func(stage addStage) error

	// onClose runs before the database handle is closed.
	onClose func(db *sql.DB)
}

// Verify interface implementation at compile time
var _ Index = (*SQLIndex)(nil)

func newSQLIndex(db *sql.DB, d dialect, backend Backend, config IndexConfig) *SQLIndex {
	return &SQLIndex{
		db:      db,
		dialect: d,
		backend: backend,
		config:  config.withDefaults(),
	}
}

// DB exposes the underlying handle for maintenance commands.
func (s *SQLIndex) DB() *sql.DB {
	return s.db
}

// setup creates the schema. When fresh is true any existing tables are
// dropped first and a new build id is recorded.
func (s *SQLIndex) setup(ctx context.Context, fresh bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if fresh {
			for _, stmt := range s.dialect.drop {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("drop schema: %w", err)
				}
			}
		}
		for _, stmt := range s.dialect.schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
		}

		version := `INSERT INTO schema_version (version) VALUES (` + s.dialect.bindvar(1) + `) ON CONFLICT DO NOTHING`
		if _, err := tx.ExecContext(ctx, version, CurrentSchemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}

		meta := `INSERT INTO index_meta (key, value) VALUES (` +
			s.dialect.bindvars(1, 2, identity) + `) ON CONFLICT DO NOTHING`
		if _, err := tx.ExecContext(ctx, meta, "build_id", uuid.NewString()); err != nil {
			return fmt.Errorf("record build id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, meta, "created_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("record build time: %w", err)
		}
		return nil
	})
}

// checkSchema verifies an existing database carries the current schema.
func (s *SQLIndex) checkSchema(ctx context.Context) error {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT max(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return srcherr.New(srcherr.ErrCodeStorageSchema, "index schema is missing", err).
			WithSuggestion("Rebuild the index with 'srch index <path>'")
	}
	if version != CurrentSchemaVersion {
		return srcherr.New(srcherr.ErrCodeStorageSchema,
			fmt.Sprintf("index schema version %d, expected %d", version, CurrentSchemaVersion), nil).
			WithSuggestion("Rebuild the index with 'srch index <path>'")
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error.
func (s *SQLIndex) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return srcherr.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return srcherr.StorageError("transaction failed", err)
	}
	if err := tx.Commit(); err != nil {
		return srcherr.StorageError("failed to commit transaction", err)
	}
	return nil
}

func (s *SQLIndex) reached(stage addStage) error {
	if s.afterStage == nil {
		return nil
	}
	return s.afterStage(stage)
}

// Add implements Index.
func (s *SQLIndex) Add(ctx context.Context, doc *Document) error {
	if doc == nil {
		return srcherr.ValidationError("document is nil", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return srcherr.StorageError("index is closed", nil)
	}

	entry := NewEntry(*doc)
	var docID int64

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if s.dialect.lockTerms != "" {
			if _, err := tx.ExecContext(ctx, s.dialect.lockTerms); err != nil {
				return fmt.Errorf("lock terms: %w", err)
			}
		}

		id, err := s.insertDocument(ctx, tx, entry)
		if err != nil {
			return err
		}
		if err := s.reached(stageDocument); err != nil {
			return err
		}

		termIDs, err := s.upsertTerms(ctx, tx, entry.Terms())
		if err != nil {
			return err
		}
		if err := s.reached(stageTerms); err != nil {
			return err
		}

		if err := s.insertPostings(ctx, tx, id, entry, termIDs); err != nil {
			return err
		}
		if err := s.reached(stagePostings); err != nil {
			return err
		}

		docID = id
		return nil
	})
	if err != nil {
		return err
	}

	doc.ID = docID
	slog.Debug("sql_index_add",
		slog.String("backend", string(s.backend)),
		slog.Int64("id", docID),
		slog.Int("terms", len(entry.TermFreq)))
	return nil
}

func (s *SQLIndex) insertDocument(ctx context.Context, tx *sql.Tx, entry *Entry) (int64, error) {
	query := `INSERT INTO documents (title, body, term_count) VALUES (` +
		s.dialect.bindvars(1, 3, identity) + `) RETURNING id`

	var id int64
	err := tx.QueryRowContext(ctx, query,
		entry.Document.Title, entry.Document.Body, entry.TermCount).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

// upsertTerms bumps document_freq for known terms and inserts the rest with
// document_freq = 1. It returns the id of every term.
func (s *SQLIndex) upsertTerms(ctx context.Context, tx *sql.Tx, terms []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(terms))

	for _, batch := range batches(terms, s.dialect.maxParams, 1) {
		query := `SELECT term, id FROM terms WHERE term IN (` +
			s.dialect.bindvars(1, len(batch), identity) + `)`
		rows, err := tx.QueryContext(ctx, query, toArgs(batch)...)
		if err != nil {
			return nil, fmt.Errorf("lookup terms: %w", err)
		}

		var existing []int64
		for rows.Next() {
			var term string
			var id int64
			if err := rows.Scan(&term, &id); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan term: %w", err)
			}
			ids[term] = id
			existing = append(existing, id)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("lookup terms: %w", err)
		}
		_ = rows.Close()

		if len(existing) == 0 {
			continue
		}
		update := `UPDATE terms SET document_freq = document_freq + 1 WHERE id IN (` +
			s.dialect.bindvars(1, len(existing), identity) + `)`
		if _, err := tx.ExecContext(ctx, update, toArgs(existing)...); err != nil {
			return nil, fmt.Errorf("update document frequency: %w", err)
		}
	}

	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO terms (term, document_freq) VALUES (`+s.dialect.bindvar(1)+`, 1) RETURNING id`)
	if err != nil {
		return nil, fmt.Errorf("prepare term insert: %w", err)
	}
	defer insert.Close()

	for _, term := range terms {
		if _, ok := ids[term]; ok {
			continue
		}
		var id int64
		if err := insert.QueryRowContext(ctx, term).Scan(&id); err != nil {
			return nil, fmt.Errorf("insert term %q: %w", term, err)
		}
		ids[term] = id
	}

	return ids, nil
}

func (s *SQLIndex) insertPostings(ctx context.Context, tx *sql.Tx, docID int64, entry *Entry, termIDs map[string]int64) error {
	for _, batch := range batches(entry.Terms(), s.dialect.maxParams, 3) {
		var sb strings.Builder
		sb.WriteString(`INSERT INTO term_freq (document_id, term_id, freq) VALUES `)

		args := make([]any, 0, len(batch)*3)
		for i, term := range batch {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(" + s.dialect.bindvars(len(args)+1, 3, identity) + ")")
			args = append(args, docID, termIDs[term], entry.TermFreq[term])
		}

		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("insert postings: %w", err)
		}
	}
	return nil
}

// Search implements Index.
func (s *SQLIndex) Search(ctx context.Context, query string) ([]*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, srcherr.StorageError("index is closed", nil)
	}

	terms, err := queryTerms(query)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return []*Result{}, nil
	}

	args := append(toArgs(terms), s.config.MaxResults)
	rows, err := s.db.QueryContext(ctx, s.dialect.searchQuery(len(terms)), args...)
	if err != nil {
		return nil, srcherr.StorageError("search query failed", err)
	}
	defer rows.Close()

	results := make([]*Result, 0, s.config.MaxResults)
	for rows.Next() {
		r := &Result{}
		if err := rows.Scan(&r.Score, &r.DocumentID, &r.Title); err != nil {
			return nil, srcherr.StorageError("failed to scan result", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, srcherr.StorageError("search query failed", err)
	}

	return results, nil
}

// DocumentFreq implements Index.
func (s *SQLIndex) DocumentFreq(ctx context.Context, term string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var df int
	err := s.db.QueryRowContext(ctx,
		`SELECT document_freq FROM terms WHERE term = `+s.dialect.bindvar(1), term).Scan(&df)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, srcherr.StorageError("document frequency lookup failed", err)
	}
	return df, nil
}

// Terms implements Index.
func (s *SQLIndex) Terms(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT term, document_freq FROM terms`)
	if err != nil {
		return nil, srcherr.StorageError("failed to list terms", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var term string
		var df int
		if err := rows.Scan(&term, &df); err != nil {
			return nil, srcherr.StorageError("failed to scan term", err)
		}
		out[term] = df
	}
	if err := rows.Err(); err != nil {
		return nil, srcherr.StorageError("failed to list terms", err)
	}
	return out, nil
}

// Entries implements Index.
func (s *SQLIndex) Entries(ctx context.Context) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, body, term_count FROM documents ORDER BY id`)
	if err != nil {
		return nil, srcherr.StorageError("failed to list documents", err)
	}

	var entries []*Entry
	byID := make(map[int64]*Entry)
	for rows.Next() {
		e := &Entry{TermFreq: make(map[string]int)}
		if err := rows.Scan(&e.Document.ID, &e.Document.Title, &e.Document.Body, &e.TermCount); err != nil {
			_ = rows.Close()
			return nil, srcherr.StorageError("failed to scan document", err)
		}
		entries = append(entries, e)
		byID[e.Document.ID] = e
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, srcherr.StorageError("failed to list documents", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT term_freq.document_id, term_freq.term_id, terms.term, term_freq.freq
		FROM term_freq LEFT JOIN terms ON terms.id = term_freq.term_id`)
	if err != nil {
		return nil, srcherr.StorageError("failed to list postings", err)
	}
	defer rows.Close()

	for rows.Next() {
		var docID, termID int64
		var term sql.NullString
		var freq int
		if err := rows.Scan(&docID, &termID, &term, &freq); err != nil {
			return nil, srcherr.StorageError("failed to scan posting", err)
		}
		key := term.String
		if !term.Valid {
			key = OrphanTerm(termID)
		}
		if e, ok := byID[docID]; ok {
			e.TermFreq[key] = freq
		}
	}
	if err := rows.Err(); err != nil {
		return nil, srcherr.StorageError("failed to list postings", err)
	}

	return entries, nil
}

// Stats implements Index.
func (s *SQLIndex) Stats(ctx context.Context) (*IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &IndexStats{Backend: string(s.backend)}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT count(*) FROM documents`, &stats.Documents},
		{`SELECT count(*) FROM terms`, &stats.Terms},
		{`SELECT count(*) FROM term_freq`, &stats.Postings},
		{`SELECT coalesce(sum(term_count), 0) FROM documents`, &stats.Tokens},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, srcherr.StorageError("failed to collect stats", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT term, document_freq FROM terms ORDER BY document_freq DESC, term ASC LIMIT `+s.dialect.bindvar(1),
		s.config.TopTerms)
	if err != nil {
		return nil, srcherr.StorageError("failed to list top terms", err)
	}
	for rows.Next() {
		var ts TermStat
		if err := rows.Scan(&ts.Term, &ts.DocumentFreq); err != nil {
			_ = rows.Close()
			return nil, srcherr.StorageError("failed to scan term", err)
		}
		stats.TopTerms = append(stats.TopTerms, ts)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, srcherr.StorageError("failed to list top terms", err)
	}

	meta, err := s.meta(ctx)
	if err != nil {
		return nil, err
	}
	stats.BuildID = meta["build_id"]
	if ts, err := time.Parse(time.RFC3339, meta["created_at"]); err == nil {
		stats.CreatedAt = ts
	}

	return stats, nil
}

func (s *SQLIndex) meta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM index_meta`)
	if err != nil {
		return nil, srcherr.StorageError("failed to read index metadata", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, srcherr.StorageError("failed to scan index metadata", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Close implements Index.
func (s *SQLIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.onClose != nil {
		s.onClose(s.db)
	}
	return s.db.Close()
}

func identity(p string) string { return p }

func toArgs[T any](items []T) []any {
	args := make([]any, len(items))
	for i, item := range items {
		args[i] = item
	}
	return args
}

// String describes the index for log output.
func (s *SQLIndex) String() string {
	return "SQLIndex(" + string(s.backend) + ", max_results=" + strconv.Itoa(s.config.MaxResults) + ")"
}
