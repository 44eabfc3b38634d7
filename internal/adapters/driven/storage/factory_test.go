package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestOpenDurableIndex_Memory(t *testing.T) {
	index, err := OpenDurableIndex(context.Background(), domain.DurableSettings{DSN: "memory:"})

	require.NoError(t, err)
	assert.IsType(t, &memory.DurableIndex{}, index)
	assert.NoError(t, index.Close())
}

func TestOpenDurableIndex_SQLite(t *testing.T) {
	tests := []struct {
		name string
		dsn  func(dir string) string
	}{
		{"plain path", func(dir string) string { return filepath.Join(dir, "index.db") }},
		{"sqlite scheme", func(dir string) string { return "sqlite://" + filepath.Join(dir, "index.db") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()

			index, err := OpenDurableIndex(context.Background(), domain.DurableSettings{DSN: tt.dsn(dir)})

			require.NoError(t, err)
			require.IsType(t, &sqlite.Store{}, index)
			assert.Equal(t, filepath.Join(dir, "index.db"), index.(*sqlite.Store).Path())
			assert.NoError(t, index.Close())
		})
	}
}

func TestOpenDurableIndex_SQLiteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := OpenDurableIndex(context.Background(), domain.DurableSettings{DSN: filepath.Join(blocker, "index.db")})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestOpenDurableIndex_PostgresUnreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := OpenDurableIndex(ctx, domain.DurableSettings{DSN: "postgres://nobody@127.0.0.1:1/none?connect_timeout=1"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}
