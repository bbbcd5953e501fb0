package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	// ErrDuplicate is returned when a write-once or unique row already exists.
	ErrDuplicate = errors.New("already exists")
	ErrNotFound  = errors.New("not found")
	// ErrIncomplete guards the completeness-at-write invariant.
	ErrIncomplete = errors.New("article is missing required fields")
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// defaultQueryLimit caps scope queries that do not set a limit.
const defaultQueryLimit = 500

type Store struct {
	readDB  *sql.DB
	writeDB *sql.DB
	dialect Dialect
}

// Open opens (creating if needed) the SQLite article store at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	s := &Store{writeDB: writeDB, dialect: SQLite}
	// Schema must exist before a read-only handle can open the file.
	if err := s.init(); err != nil {
		writeDB.Close()
		return nil, err
	}

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro&_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}
	s.readDB = readDB
	return s, nil
}

// OpenPostgres connects to a PostgreSQL article store.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	s := &Store{readDB: db, writeDB: db, dialect: Postgres}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) init() error {
	timeType, floatType := "DATETIME", "REAL"
	if s.dialect == Postgres {
		timeType, floatType = "TIMESTAMPTZ", "DOUBLE PRECISION"
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS articles (
			id                TEXT PRIMARY KEY,
			title             TEXT NOT NULL,
			body              TEXT NOT NULL,
			source            TEXT NOT NULL,
			published_at      %[1]s NOT NULL,
			published_at_estimated BOOLEAN NOT NULL DEFAULT FALSE,
			created_at        %[1]s NOT NULL,
			keywords          TEXT NOT NULL DEFAULT '[]',
			embedding         TEXT NOT NULL DEFAULT '[]',
			clusters          TEXT NOT NULL DEFAULT '[]',
			summary           TEXT,
			bias_rating       TEXT,
			credibility_score %[2]s,
			UNIQUE (title, source)
		);
		CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at DESC);
		CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);

		CREATE TABLE IF NOT EXISTS cluster_summaries (
			id         TEXT PRIMARY KEY,
			summary    TEXT NOT NULL,
			created_at %[1]s NOT NULL
		);
	`, timeType, floatType)

	if _, err := s.writeDB.Exec(schema); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return s.migrate()
}

// migrate adds columns introduced after a database was first created.
func (s *Store) migrate() error {
	stmt := "ALTER TABLE articles ADD COLUMN published_at_estimated BOOLEAN NOT NULL DEFAULT FALSE"
	if s.dialect == Postgres {
		stmt = "ALTER TABLE articles ADD COLUMN IF NOT EXISTS published_at_estimated BOOLEAN NOT NULL DEFAULT FALSE"
	}
	if _, err := s.writeDB.Exec(stmt); err != nil && !strings.Contains(err.Error(), "duplicate column") {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	var errs []error
	if s.readDB != nil && s.readDB != s.writeDB {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	return errors.Join(errs...)
}

// rebind rewrites ? placeholders for the active dialect.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// articleColumns is the read projection. It never includes the embedding.
const articleColumns = "id, title, body, source, published_at, published_at_estimated, created_at, keywords, clusters, summary, bias_rating, credibility_score"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (Article, error) {
	var (
		a                  Article
		keywords, clusters string
		summary, bias      sql.NullString
		credibility        sql.NullFloat64
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Body, &a.Source, &a.PublishedAt, &a.PublishedAtEstimated, &a.CreatedAt,
		&keywords, &clusters, &summary, &bias, &credibility); err != nil {
		return Article{}, err
	}
	if err := json.Unmarshal([]byte(keywords), &a.Keywords); err != nil {
		return Article{}, fmt.Errorf("decoding keywords of %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(clusters), &a.Clusters); err != nil {
		return Article{}, fmt.Errorf("decoding clusters of %s: %w", a.ID, err)
	}
	if summary.Valid {
		a.Summary = &summary.String
	}
	if bias.Valid {
		a.BiasRating = &bias.String
	}
	if credibility.Valid {
		a.CredibilityScore = &credibility.Float64
	}
	return a, nil
}

func (s *Store) queryArticles(ctx context.Context, query string, args ...any) ([]Article, error) {
	rows, err := s.readDB.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func encodeStrings(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(v)
	return string(data)
}

// Insert stores a new article. The (title, source) pair is claimed atomically:
// a concurrent or repeated insert of the same pair returns ErrDuplicate.
func (s *Store) Insert(ctx context.Context, a Article) (Article, error) {
	if a.Title == "" || a.Body == "" || a.Source == "" || len(a.Embedding) == 0 || len(a.Keywords) == 0 {
		return Article{}, ErrIncomplete
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.PublishedAt = a.PublishedAt.UTC()

	embedding, err := json.Marshal(a.Embedding)
	if err != nil {
		return Article{}, fmt.Errorf("encoding embedding: %w", err)
	}

	res, err := s.writeDB.ExecContext(ctx, s.rebind(`
		INSERT INTO articles (id, title, body, source, published_at, published_at_estimated, created_at,
			keywords, embedding, clusters, summary, bias_rating, credibility_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (title, source) DO NOTHING
	`), a.ID, a.Title, a.Body, a.Source, a.PublishedAt, a.PublishedAtEstimated, a.CreatedAt,
		encodeStrings(a.Keywords), string(embedding), encodeStrings(a.Clusters),
		a.Summary, a.BiasRating, a.CredibilityScore)
	if err != nil {
		return Article{}, fmt.Errorf("inserting article %q: %w", a.Title, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Article{}, err
	}
	if n == 0 {
		return Article{}, ErrDuplicate
	}
	return a, nil
}

// FindByTitleSource returns the article with the given dedupe key, or nil.
func (s *Store) FindByTitleSource(ctx context.Context, title, source string) (*Article, error) {
	row := s.readDB.QueryRowContext(ctx,
		s.rebind("SELECT "+articleColumns+" FROM articles WHERE title = ? AND source = ?"), title, source)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding article: %w", err)
	}
	return &a, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*Article, error) {
	row := s.readDB.QueryRowContext(ctx, s.rebind("SELECT "+articleColumns+" FROM articles WHERE id = ?"), id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding article %s: %w", id, err)
	}
	return &a, nil
}

// MostRecentPublishedAt returns the ingestion high-water mark. Articles whose
// date was substituted at ingest do not count. ok is false when no article
// has a feed-supplied date.
func (s *Store) MostRecentPublishedAt(ctx context.Context) (t time.Time, ok bool, err error) {
	err = s.readDB.QueryRowContext(ctx,
		"SELECT published_at FROM articles WHERE NOT published_at_estimated ORDER BY published_at DESC LIMIT 1").Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading high-water mark: %w", err)
	}
	return t, true, nil
}

// AllWithEmbedding returns id, title, source and embedding of every embedded
// article in insertion order. It is the only read that exposes embeddings.
func (s *Store) AllWithEmbedding(ctx context.Context) ([]Article, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, title, source, embedding FROM articles
		WHERE embedding <> '[]' AND embedding <> ''
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var (
			a   Article
			raw string
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Source, &raw); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &a.Embedding); err != nil {
			return nil, fmt.Errorf("decoding embedding of %s: %w", a.ID, err)
		}
		if len(a.Embedding) > 0 {
			articles = append(articles, a)
		}
	}
	return articles, rows.Err()
}

// ApplyClusters replaces the cluster sets of the given articles in one
// transaction. Sets are overwritten, never merged.
func (s *Store) ApplyClusters(ctx context.Context, assignments []ClusterAssignment) error {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind("UPDATE articles SET clusters = ? WHERE id = ?"))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, as := range assignments {
		if _, err := stmt.ExecContext(ctx, encodeStrings(as.Clusters), as.ArticleID); err != nil {
			return fmt.Errorf("updating clusters of %s: %w", as.ArticleID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) UpdateClusters(ctx context.Context, id string, clusters []string) error {
	return s.ApplyClusters(ctx, []ClusterAssignment{{ArticleID: id, Clusters: clusters}})
}

// AllClustered returns every labelled article in natural (insertion) order.
func (s *Store) AllClustered(ctx context.Context) ([]Article, error) {
	return s.queryArticles(ctx,
		"SELECT "+articleColumns+" FROM articles WHERE clusters <> '[]' ORDER BY created_at ASC, id ASC")
}

// PendingSummaries returns up to limit articles that have no summary yet.
func (s *Store) PendingSummaries(ctx context.Context, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.queryArticles(ctx, fmt.Sprintf(
		"SELECT "+articleColumns+" FROM articles WHERE summary IS NULL ORDER BY created_at ASC, id ASC LIMIT %d", limit))
}

// UpdateSummary sets an article summary once. A second write returns ErrDuplicate.
func (s *Store) UpdateSummary(ctx context.Context, id, summary string) error {
	res, err := s.writeDB.ExecContext(ctx,
		s.rebind("UPDATE articles SET summary = ? WHERE id = ? AND summary IS NULL"), summary, id)
	if err != nil {
		return fmt.Errorf("updating summary of %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	return ErrDuplicate
}

// QueryByScope returns scope-filtered articles, newest first, without embeddings.
func (s *Store) QueryByScope(ctx context.Context, scope Scope) ([]Article, error) {
	var (
		where []string
		args  []any
	)

	if len(scope.ArticleIDs) > 0 {
		where = append(where, "id IN ("+placeholders(len(scope.ArticleIDs))+")")
		for _, id := range scope.ArticleIDs {
			args = append(args, id)
		}
	}

	if len(scope.Sources) > 0 {
		where = append(where, "source IN ("+placeholders(len(scope.Sources))+")")
		for _, src := range scope.Sources {
			args = append(args, src)
		}
	}

	if len(scope.ClusterIDs) > 0 {
		var ors []string
		for _, id := range scope.ClusterIDs {
			ors = append(ors, `clusters LIKE ? ESCAPE '\'`)
			args = append(args, `%"`+likeEscape(id)+`"%`)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	if !scope.FromDate.IsZero() {
		where = append(where, "published_at >= ?")
		args = append(args, scope.FromDate.UTC())
	}
	if !scope.ToDate.IsZero() {
		where = append(where, "published_at <= ?")
		args = append(args, scope.ToDate.UTC())
	}

	query := "SELECT " + articleColumns + " FROM articles"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY published_at DESC, id ASC"

	limit := scope.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	return s.queryArticles(ctx, query, args...)
}

func placeholders(n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = "?"
	}
	return strings.Join(p, ",")
}

func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.readDB.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN embedding <> '[]' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN clusters <> '[]' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN summary IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM articles
	`).Scan(&st.Articles, &st.Embedded, &st.Clustered, &st.Summarized)
	if err != nil {
		return Stats{}, fmt.Errorf("counting articles: %w", err)
	}
	if err := s.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM cluster_summaries").Scan(&st.ClusterSummaries); err != nil {
		return Stats{}, fmt.Errorf("counting cluster summaries: %w", err)
	}
	return st, nil
}
