// Package filesystem gives the core access to local documents and reports
// changes to attached files.
package filesystem

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure FileSystem implements the interface.
var _ driven.FileSystem = (*FileSystem)(nil)

// FileSystem reads documents from the local disk.
type FileSystem struct {
	// baseDir anchors relative references. Empty uses the working directory.
	baseDir string
}

// New creates a FileSystem resolving relative references against baseDir.
func New(baseDir string) *FileSystem {
	return &FileSystem{baseDir: baseDir}
}

// Resolve returns the absolute, symlink-free path of ref.
// The file must exist.
func (f *FileSystem) Resolve(ref string) (string, error) {
	path := NormaliseRef(ref)
	if path == "" {
		return "", fmt.Errorf("%w: empty reference", domain.ErrInvalidInput)
	}

	if !filepath.IsAbs(path) && f.baseDir != "" {
		path = filepath.Join(f.baseDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", ref, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", ref, err)
	}
	return resolved, nil
}

// Stat returns the size and modification time of path.
func (f *FileSystem) Stat(path string) (domain.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.FileInfo{}, err
	}
	return domain.FileInfo{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}, nil
}

// ReadFile returns the contents of path.
func (f *FileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
