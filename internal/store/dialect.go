package store

import (
	"strconv"
	"strings"
)

// dialect captures the SQL differences between the supported databases.
type dialect struct {
	name string

	// bindvar returns the placeholder for the n-th (1-based) parameter.
	bindvar func(n int) string

	// log2 wraps a floating point expression in a base-2 logarithm.
	log2 func(expr string) string

	schema []string
	drop   []string

	// maxParams bounds the placeholders of one batched write. Search binds
	// one per query token and relies on MaxQueryTerms instead.
	maxParams int

	// titleOrder is the tie-break expression. It must sort titles by bytes.
	titleOrder string

	// lockTerms, when set, runs first in every Add transaction so that
	// concurrent writers serialize the read-then-update of terms.
	lockTerms string
}

var sqliteDialect = dialect{
	name:    "sqlite",
	bindvar: func(int) string { return "?" },
	log2:    func(expr string) string { return "srch_log2(" + expr + ")" },
	schema: []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS index_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			term_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS terms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			term TEXT NOT NULL UNIQUE,
			document_freq INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS term_freq (
			document_id INTEGER NOT NULL REFERENCES documents(id),
			term_id INTEGER NOT NULL REFERENCES terms(id),
			freq INTEGER NOT NULL,
			PRIMARY KEY (document_id, term_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_term_freq_term ON term_freq(term_id)`,
	},
	drop: []string{
		`DROP TABLE IF EXISTS term_freq`,
		`DROP TABLE IF EXISTS terms`,
		`DROP TABLE IF EXISTS documents`,
		`DROP TABLE IF EXISTS index_meta`,
		`DROP TABLE IF EXISTS schema_version`,
	},
	// SQLITE_MAX_VARIABLE_NUMBER is 999 on older builds
	maxParams:  500,
	titleOrder: `documents.title`,
}

var postgresDialect = dialect{
	name:    "postgres",
	bindvar: func(n int) string { return "$" + strconv.Itoa(n) },
	log2:    func(expr string) string { return "(ln(" + expr + ") / ln(2.0))" },
	schema: []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS index_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			term_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS terms (
			id BIGSERIAL PRIMARY KEY,
			term TEXT NOT NULL UNIQUE,
			document_freq INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS term_freq (
			document_id BIGINT NOT NULL REFERENCES documents(id),
			term_id BIGINT NOT NULL REFERENCES terms(id),
			freq INTEGER NOT NULL,
			PRIMARY KEY (document_id, term_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_term_freq_term ON term_freq(term_id)`,
	},
	drop: []string{
		`DROP TABLE IF EXISTS term_freq`,
		`DROP TABLE IF EXISTS terms`,
		`DROP TABLE IF EXISTS documents`,
		`DROP TABLE IF EXISTS index_meta`,
		`DROP TABLE IF EXISTS schema_version`,
	},
	maxParams:  1000,
	titleOrder: `documents.title COLLATE "C"`,
	lockTerms:  `LOCK TABLE terms IN SHARE ROW EXCLUSIVE MODE`,
}

// bindvars returns count comma-separated placeholders starting at first.
// Each placeholder is wrapped by the format function.
func (d dialect) bindvars(first, count int, wrap func(string) string) string {
	var sb strings.Builder
	for i := 0; i < count; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(wrap(d.bindvar(first + i)))
	}
	return sb.String()
}

// scoreExpr is the TF-IDF sum for one document over the joined query terms.
func (d dialect) scoreExpr() string {
	idf := d.log2(`CAST((SELECT count(*) FROM documents) AS DOUBLE PRECISION) / terms.document_freq`)
	return `sum(CAST(term_freq.freq AS DOUBLE PRECISION) / documents.term_count * ` + idf + `)`
}

// searchQuery builds the ranking statement for n query terms.
// Parameters are the n terms followed by the result limit.
func (d dialect) searchQuery(n int) string {
	values := d.bindvars(1, n, func(p string) string { return "(CAST(" + p + " AS TEXT))" })
	score := d.scoreExpr()

	return `WITH query_terms(term) AS (VALUES ` + values + `)
		SELECT ` + score + ` AS rank, documents.id, documents.title
		FROM query_terms
		INNER JOIN terms ON query_terms.term = terms.term
		INNER JOIN term_freq ON term_freq.term_id = terms.id
		INNER JOIN documents ON term_freq.document_id = documents.id
		GROUP BY documents.id, documents.title
		HAVING ` + score + ` > 0
		ORDER BY rank DESC, ` + d.titleOrder + ` ASC, documents.id ASC
		LIMIT ` + d.bindvar(n+1)
}

// batches splits items into chunks that fit the dialect's parameter limit
// when every item uses perItem placeholders.
func batches[T any](items []T, limit, perItem int) [][]T {
	size := limit / perItem
	if size < 1 {
		size = 1
	}
	var out [][]T
	for len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}
