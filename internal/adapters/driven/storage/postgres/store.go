// Package postgres provides a durable index on PostgreSQL with the pgvector extension.
//
// Vectors are stored in an unconstrained vector column alongside their
// dimension, so one database can hold records from several embedding models.
// Search only compares records whose dimension matches the query and ranks
// them with the pgvector L2 operator.
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.DurableIndex = (*Store)(nil)
	_ driven.SourceLister = (*Store)(nil)
)

var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS sercha_records (
		id          TEXT PRIMARY KEY,
		source      TEXT NOT NULL,
		title       TEXT NOT NULL DEFAULT '',
		page        INTEGER NOT NULL,
		chunk_index INTEGER NOT NULL,
		text        TEXT NOT NULL,
		dimensions  INTEGER NOT NULL,
		embedding   vector NOT NULL,
		indexed_at  TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sercha_records_source ON sercha_records (source)`,
	`CREATE INDEX IF NOT EXISTS idx_sercha_records_dimensions ON sercha_records (dimensions)`,
}

// Store is a pgvector-backed durable index.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn and ensures the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

// UpsertBySource replaces every record of source in one transaction.
func (s *Store) UpsertBySource(ctx context.Context, source string, records []domain.VectorRecord) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sercha_records WHERE source = $1`, source); err != nil {
			return fmt.Errorf("delete records: %w", err)
		}
		if len(records) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, r := range records {
			if len(r.Vector) == 0 {
				return fmt.Errorf("%w: record %s has no vector", domain.ErrInvalidInput, r.ID)
			}
			batch.Queue(`
				INSERT INTO sercha_records (id, source, title, page, chunk_index, text, dimensions, embedding)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector)
			`, r.ID, source, r.Chunk.Title, r.Chunk.Page, r.Chunk.ChunkIndex, r.Chunk.Text,
				len(r.Vector), formatVector(r.Vector))
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert records: %w", err)
		}
		return nil
	})
	return storeError(ctx, "upsert", err)
}

// Search returns the k records nearest to vector by L2 distance.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	results := make([]domain.SearchResult, 0)
	if k <= 0 || len(vector) == 0 {
		return results, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT source, title, page, chunk_index, text, embedding <-> $1::vector AS distance
		FROM sercha_records
		WHERE dimensions = $2
		ORDER BY distance, source, chunk_index
		LIMIT $3
	`, formatVector(vector), len(vector), k)
	if err != nil {
		return nil, storeError(ctx, "search", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r domain.SearchResult
		if err := rows.Scan(&r.Source, &r.Title, &r.Page, &r.ChunkIndex, &r.Text, &r.Distance); err != nil {
			return nil, storeError(ctx, "scan row", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(ctx, "search", err)
	}

	return results, nil
}

// Stats reports record and source counts.
func (s *Store) Stats(ctx context.Context) (domain.IndexStats, error) {
	var stats domain.IndexStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT source) FROM sercha_records`,
	).Scan(&stats.TotalRecords, &stats.DistinctSources)
	if err != nil {
		return domain.IndexStats{}, storeError(ctx, "stats", err)
	}
	return stats, nil
}

// DeleteSource removes every record of source.
func (s *Store) DeleteSource(ctx context.Context, source string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sercha_records WHERE source = $1`, source); err != nil {
		return storeError(ctx, "delete source", err)
	}
	return nil
}

// Clear removes all records.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE sercha_records`); err != nil {
		return storeError(ctx, "clear", err)
	}
	return nil
}

// Sources lists the distinct sources in the index.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT source FROM sercha_records ORDER BY source`)
	if err != nil {
		return nil, storeError(ctx, "list sources", err)
	}
	sources, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storeError(ctx, "list sources", err)
	}
	return sources, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// formatVector renders a vector in pgvector text form: "[0.1,0.2,0.3]".
func formatVector(vec []float32) string {
	var b strings.Builder
	b.Grow(len(vec) * 8)
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
