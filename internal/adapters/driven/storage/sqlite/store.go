package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.DurableIndex = (*Store)(nil)
	_ driven.SourceLister = (*Store)(nil)
)

// DefaultFileName is the database file created under the data directory.
const DefaultFileName = "index.db"

// Store is a SQLite-backed durable index.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens or creates the database at path and runs pending migrations.
// An empty path selects ~/.sercha-rag/data/index.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".sercha-rag", "data", DefaultFileName)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: path,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations, recording each applied version.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_records.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.apply(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) apply(version int, statements string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(statements); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertBySource replaces every record of source in one transaction.
func (s *Store) UpsertBySource(ctx context.Context, source string, records []domain.VectorRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError(ctx, "begin upsert", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE source = ?", source); err != nil {
		return storeError(ctx, "delete records", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (id, source, title, page, chunk_index, text, dimensions, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return storeError(ctx, "prepare insert", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if len(r.Vector) == 0 {
			return fmt.Errorf("%w: record %s has no vector", domain.ErrInvalidInput, r.ID)
		}
		_, err := stmt.ExecContext(ctx,
			r.ID, source, r.Chunk.Title, r.Chunk.Page, r.Chunk.ChunkIndex, r.Chunk.Text,
			len(r.Vector), float32SliceToBytes(r.Vector),
		)
		if err != nil {
			return storeError(ctx, "insert record "+r.ID, err)
		}
	}

	return storeError(ctx, "commit upsert", tx.Commit())
}

// Search returns the k records nearest to vector. Records with a
// different dimension are never compared.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 || len(vector) == 0 {
		return []domain.SearchResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source, title, page, chunk_index, text, vector
		FROM records
		WHERE dimensions = ?
	`, len(vector))
	if err != nil {
		return nil, storeError(ctx, "search", err)
	}
	defer rows.Close()

	best := newNearest(k)
	for rows.Next() {
		var (
			chunk domain.Chunk
			blob  []byte
		)
		if err := rows.Scan(&chunk.Source, &chunk.Title, &chunk.Page, &chunk.ChunkIndex, &chunk.Text, &blob); err != nil {
			return nil, storeError(ctx, "scan record", err)
		}
		dist := domain.EuclideanDistance(vector, bytesToFloat32Slice(blob))
		if math.IsInf(dist, 1) {
			continue
		}
		best.offer(domain.SearchResult{Chunk: chunk, Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(ctx, "search", err)
	}

	return best.results(), nil
}

// Stats reports record and source counts.
func (s *Store) Stats(ctx context.Context) (domain.IndexStats, error) {
	var stats domain.IndexStats
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT source) FROM records",
	).Scan(&stats.TotalRecords, &stats.DistinctSources)
	if err != nil {
		return domain.IndexStats{}, storeError(ctx, "stats", err)
	}
	return stats, nil
}

// DeleteSource removes every record of source.
func (s *Store) DeleteSource(ctx context.Context, source string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE source = ?", source); err != nil {
		return storeError(ctx, "delete source", err)
	}
	return nil
}

// Clear removes all records.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return storeError(ctx, "clear", err)
	}
	return nil
}

// Sources lists the distinct sources in the index.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT source FROM records ORDER BY source")
	if err != nil {
		return nil, storeError(ctx, "list sources", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, storeError(ctx, "scan source", err)
		}
		sources = append(sources, source)
	}
	return sources, storeError(ctx, "list sources", rows.Err())
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
