package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestIndexCmd_Paths(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := runRoot(t, "", "index", "/docs/a.md", "/docs/b.txt")

	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/a.md", "/docs/b.txt"}, ts.ingest.indexed)
	assert.Contains(t, out, "indexed /docs/a.md (1 pages, 2 chunks)")
}

func TestIndexCmd_Manifest(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guide.md"), []byte("# Guide"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("notes"), 0o600))
	manifest := filepath.Join(dir, "corpus.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("documents:\n  - path: .\nexclude:\n  - \"*.yaml\"\n"), 0o600))

	_, err := runRoot(t, "", "index", "--manifest", manifest)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "guide.md"), filepath.Join(dir, "notes.txt")}, ts.ingest.indexed)
}

func TestIndexCmd_BadManifest(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := runRoot(t, "", "index", "--manifest", filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
	assert.Equal(t, ExitInput, exitCode(err))
}

func TestIndexCmd_NothingToIndex(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := runRoot(t, "", "index")

	require.Error(t, err)
	assert.True(t, domain.IsInputError(err))
}

func TestIndexCmd_Error(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingest.err = domain.NewInputError("/docs/a.bin", "unsupported", domain.ErrUnsupportedDocument)

	_, err := runRoot(t, "", "index", "/docs/a.bin")

	require.ErrorIs(t, err, domain.ErrUnsupportedDocument)
}

func TestRemoveCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := runRoot(t, "", "remove", "/docs/a.md")

	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/a.md"}, ts.ingest.removed)
	assert.Contains(t, out, "Removed /docs/a.md")
}

func TestRemoveCmd_RequiresPath(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := runRoot(t, "", "remove")

	require.Error(t, err)
}

func TestIndexCmd_NoService(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	ingestService = nil

	_, err := runRoot(t, "", "index", "/docs/a.md")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest service not configured")
}
