package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/dotsetgreg/factkeeper/pkg/facts"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// searchCandidateLimit bounds how many rows a search pulls before ranking.
const searchCandidateLimit = 500

// SQLBackend stores facts in a single relational table. The same
// statements serve sqlite and postgres; only placeholders differ.
type SQLBackend struct {
	db      *sql.DB
	dialect string
}

// NewSQLiteBackend creates/opens the fact database at path.
func NewSQLiteBackend(path string) (*SQLBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create fact db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One shared connection avoids writer lock contention across goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return newSQLBackend(db, DialectSQLite)
}

// NewPostgresBackend connects through the pgx stdlib driver.
func NewPostgresBackend(dsn string) (*SQLBackend, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return newSQLBackend(db, DialectPostgres)
}

func newSQLBackend(db *sql.DB, dialect string) (*SQLBackend, error) {
	b := &SQLBackend{db: db, dialect: dialect}
	if err := b.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLBackend) Name() string { return b.dialect }

func (b *SQLBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *SQLBackend) init() error {
	var stmts []string
	if b.dialect == DialectSQLite {
		stmts = append(stmts,
			`PRAGMA journal_mode=WAL;`,
			`PRAGMA synchronous=NORMAL;`,
			`PRAGMA busy_timeout=5000;`,
		)
	}
	stmts = append(stmts,
		`CREATE TABLE IF NOT EXISTS facts (
			id TEXT PRIMARY KEY,
			subject_key TEXT NOT NULL,
			data_type TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT 'self',
			person TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			keywords_json TEXT NOT NULL DEFAULT '[]',
			source_date TEXT NOT NULL DEFAULT '',
			created_at_ms BIGINT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}'
		);`,
		`CREATE INDEX IF NOT EXISTS facts_series_idx ON facts(subject_key, data_type, created_at_ms DESC);`,
	)

	for _, stmt := range stmts {
		if _, err := b.db.Exec(stmt); err != nil {
			return fmt.Errorf("init fact schema (%s): %w", trimSQL(stmt), err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (b *SQLBackend) rebind(query string) string {
	if b.dialect != DialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

const factColumns = `id, subject_key, data_type, subject, person, content, keywords_json, source_date, created_at_ms, metadata_json`

func (b *SQLBackend) Save(ctx context.Context, f facts.Fact) error {
	_, err := b.db.ExecContext(ctx, b.rebind(`
INSERT INTO facts (`+factColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	content = excluded.content,
	keywords_json = excluded.keywords_json,
	source_date = excluded.source_date,
	created_at_ms = excluded.created_at_ms,
	metadata_json = excluded.metadata_json`),
		f.ID,
		f.SubjectKey,
		string(f.DataType),
		f.Subject,
		f.Person,
		f.Content,
		encodeKeywords(f.Keywords),
		f.SourceDate,
		f.CreatedAt.UnixMilli(),
		encodeMetadata(f.Metadata),
	)
	if err != nil {
		return fmt.Errorf("save fact: %w", err)
	}
	return nil
}

func (b *SQLBackend) Get(ctx context.Context, id string) (facts.Fact, error) {
	rows, err := b.db.QueryContext(ctx, b.rebind(`SELECT `+factColumns+` FROM facts WHERE id = ?`), id)
	if err != nil {
		return facts.Fact{}, fmt.Errorf("get fact: %w", err)
	}
	defer rows.Close()

	out, err := scanFacts(rows)
	if err != nil {
		return facts.Fact{}, err
	}
	if len(out) == 0 {
		return facts.Fact{}, ErrNotFound
	}
	return out[0], nil
}

func (b *SQLBackend) List(ctx context.Context, subjectKey string) ([]facts.Fact, error) {
	rows, err := b.db.QueryContext(ctx, b.rebind(`
SELECT `+factColumns+`
FROM facts
WHERE subject_key = ?
ORDER BY created_at_ms DESC, id ASC`), subjectKey)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	return scanFacts(rows)
}

func (b *SQLBackend) DeleteAll(ctx context.Context, subjectKey string) error {
	if _, err := b.db.ExecContext(ctx, b.rebind(`DELETE FROM facts WHERE subject_key = ?`), subjectKey); err != nil {
		return fmt.Errorf("delete facts: %w", err)
	}
	return nil
}

// Search prefilters rows with LIKE on each token, then ranks in process.
func (b *SQLBackend) Search(ctx context.Context, query string, limit int) ([]facts.Fact, error) {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	clauses := make([]string, 0, len(tokens))
	args := make([]interface{}, 0, len(tokens)*3+1)
	for _, tok := range tokens {
		clauses = append(clauses, `(LOWER(content) LIKE ? OR LOWER(keywords_json) LIKE ? OR data_type = ?)`)
		args = append(args, "%"+tok+"%", "%\""+tok+"\"%", tok)
	}
	args = append(args, searchCandidateLimit)

	rows, err := b.db.QueryContext(ctx, b.rebind(`
SELECT `+factColumns+`
FROM facts
WHERE `+strings.Join(clauses, " OR ")+`
ORDER BY created_at_ms DESC
LIMIT ?`), args...)
	if err != nil {
		return nil, fmt.Errorf("search facts: %w", err)
	}
	defer rows.Close()

	candidates, err := scanFacts(rows)
	if err != nil {
		return nil, err
	}
	return rank(candidates, query, limit), nil
}

func scanFacts(rows *sql.Rows) ([]facts.Fact, error) {
	out := []facts.Fact{}
	for rows.Next() {
		var f facts.Fact
		var dataType, keywordsRaw, metaRaw string
		var createdMS int64
		if err := rows.Scan(&f.ID, &f.SubjectKey, &dataType, &f.Subject, &f.Person, &f.Content, &keywordsRaw, &f.SourceDate, &createdMS, &metaRaw); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.DataType = facts.DataType(dataType)
		f.Keywords = decodeKeywords(keywordsRaw)
		f.Metadata = decodeMetadata(metaRaw)
		f.CreatedAt = time.UnixMilli(createdMS).UTC()
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return out, nil
}

func trimSQL(sql string) string {
	line := strings.TrimSpace(sql)
	if len(line) > 96 {
		return line[:96] + "..."
	}
	return line
}

func encodeKeywords(k []string) string {
	if len(k) == 0 {
		return "[]"
	}
	b, err := json.Marshal(k)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeKeywords(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []string{}
	}
	return out
}

func encodeMetadata(m facts.Metadata) string {
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeMetadata(raw string) facts.Metadata {
	var m facts.Metadata
	if raw == "" {
		return m
	}
	_ = json.Unmarshal([]byte(raw), &m)
	return m
}
