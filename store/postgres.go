package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// pgUndefinedTable is the SQLSTATE for querying a table that does not exist.
const pgUndefinedTable = "42P01"

// Postgres stores chunks in a single pgvector table. The table name is the
// configured collection name; the distance metric selects the pgvector
// operator used for ranking.
type Postgres struct {
	pool      *pgxpool.Pool
	table     string
	metric    string
	dimension int
}

// NewPostgresPool connects to Postgres.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	return pool, nil
}

func NewPostgres(pool *pgxpool.Pool, collection, metric string, dimension int) *Postgres {
	return &Postgres{
		pool:      pool,
		table:     collection,
		metric:    metric,
		dimension: dimension,
	}
}

func (s *Postgres) operator() string {
	if s.metric == "l2" {
		return "<->"
	}
	return "<=>"
}

func (s *Postgres) opclass() string {
	if s.metric == "l2" {
		return "vector_l2_ops"
	}
	return "vector_cosine_ops"
}

func (s *Postgres) EnsureCollection(ctx context.Context) error {
	if s.dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_key TEXT NOT NULL,
			chunk_kind TEXT NOT NULL,
			book_title TEXT NOT NULL,
			book_author TEXT NOT NULL,
			chapter_title TEXT,
			chapter_number INT NOT NULL,
			chunk_index INT NOT NULL,
			word_count INT NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			indexed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, s.table, s.dimension),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_document ON %s(document_key)", s.table, s.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_kind ON %s(chunk_kind)", s.table, s.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING ivfflat (embedding %s)", s.table, s.table, s.opclass()),
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *Postgres) DropCollection(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.table)); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	return nil
}

func (s *Postgres) Upsert(ctx context.Context, records []Record) (err error) {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, document_key, chunk_kind, book_title, book_author,
			chapter_title, chapter_number, chunk_index, word_count, content, embedding, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			chapter_title = EXCLUDED.chapter_title,
			word_count = EXCLUDED.word_count,
			indexed_at = NOW()
	`, s.table)

	for _, rec := range records {
		if _, err = tx.Exec(ctx, stmt,
			rec.ID, rec.Meta.DocumentKey, rec.Meta.Kind, rec.Meta.BookTitle, rec.Meta.BookAuthor,
			rec.Meta.ChapterTitle, rec.Meta.ChapterNumber, rec.Meta.ChunkIndex, rec.Meta.WordCount,
			rec.Text, pgvector.NewVector(rec.Embedding),
		); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", rec.ID, mapPgError(err))
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *Postgres) DeleteDocument(ctx context.Context, documentKey string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE document_key = $1", s.table), documentKey)
	if err != nil {
		return fmt.Errorf("delete document chunks: %w", mapPgError(err))
	}
	return nil
}

func (s *Postgres) Query(ctx context.Context, embedding []float32, k int, filter Filter) ([]Hit, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding is empty")
	}
	if k <= 0 {
		return nil, nil
	}

	op := s.operator()
	sql := fmt.Sprintf(`
		SELECT id, document_key, chunk_kind, book_title, book_author,
			chapter_title, chapter_number, chunk_index, word_count, content,
			(embedding %s $1::vector) AS distance
		FROM %s`, op, s.table)
	args := []any{pgvector.NewVector(embedding)}
	if filter.Kind != "" {
		sql += " WHERE chunk_kind = $2"
		args = append(args, filter.Kind)
	}
	sql += fmt.Sprintf(" ORDER BY embedding %s $1::vector LIMIT %d", op, k)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			hit          Hit
			chapterTitle *string
		)
		if err := rows.Scan(&hit.ID, &hit.Meta.DocumentKey, &hit.Meta.Kind,
			&hit.Meta.BookTitle, &hit.Meta.BookAuthor, &chapterTitle,
			&hit.Meta.ChapterNumber, &hit.Meta.ChunkIndex, &hit.Meta.WordCount,
			&hit.Text, &hit.Distance); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		if chapterTitle != nil {
			hit.Meta.ChapterTitle = *chapterTitle
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return hits, nil
}

func (s *Postgres) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&count)
	if err != nil {
		return 0, mapPgError(err)
	}
	return count, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return ErrIndexNotInitialized
	}
	return err
}

var _ VectorStore = (*Postgres)(nil)
