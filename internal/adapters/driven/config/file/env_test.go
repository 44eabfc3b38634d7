package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFiles(t *testing.T) {
	workDir := t.TempDir()
	configDir := t.TempDir()
	t.Chdir(workDir)

	require.NoError(t, os.WriteFile(filepath.Join(workDir, ".env"),
		[]byte("SERCHA_RAG_TEST_LOCAL=work\nSERCHA_RAG_TEST_SHARED=work\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, ".env"),
		[]byte("SERCHA_RAG_TEST_SHARED=config\nSERCHA_RAG_TEST_CONFIG=config\nSERCHA_RAG_TEST_PRESET=config\n"), 0o600))

	t.Setenv("SERCHA_RAG_TEST_PRESET", "env")
	for _, key := range []string{"SERCHA_RAG_TEST_LOCAL", "SERCHA_RAG_TEST_SHARED", "SERCHA_RAG_TEST_CONFIG"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	loaded, err := LoadEnvFiles(configDir)

	require.NoError(t, err)
	assert.Len(t, loaded, 2)
	assert.Equal(t, "work", os.Getenv("SERCHA_RAG_TEST_LOCAL"))
	assert.Equal(t, "work", os.Getenv("SERCHA_RAG_TEST_SHARED"))
	assert.Equal(t, "config", os.Getenv("SERCHA_RAG_TEST_CONFIG"))
	assert.Equal(t, "env", os.Getenv("SERCHA_RAG_TEST_PRESET"))
}

func TestLoadEnvFiles_NoFiles(t *testing.T) {
	t.Chdir(t.TempDir())

	loaded, err := LoadEnvFiles(t.TempDir())

	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadEnvFiles_SameDirectoryLoadedOnce(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SERCHA_RAG_TEST_ONCE=1\n"), 0o600))
	t.Setenv("SERCHA_RAG_TEST_ONCE", "")
	require.NoError(t, os.Unsetenv("SERCHA_RAG_TEST_ONCE"))

	loaded, err := LoadEnvFiles(dir)

	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestLoadEnvFiles_Unreadable(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(t.TempDir())
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".env"), 0o700))

	_, err := LoadEnvFiles(dir)

	assert.Error(t, err)
}
