package driven

import "github.com/custodia-labs/sercha-rag/internal/core/domain"

// FileSystem gives the core read-only access to attached documents.
type FileSystem interface {
	// Resolve returns the canonical absolute path for a document reference.
	// Two references to the same file resolve to the same path.
	Resolve(ref string) (string, error)

	// Stat returns the current size and modification time of path.
	Stat(path string) (domain.FileInfo, error)

	// ReadFile returns the contents of path.
	ReadFile(path string) ([]byte, error)
}

// ChangeNotifier reports file changes so cached attachments can be
// dropped before their next access.
type ChangeNotifier interface {
	// Watch starts reporting changes to path.
	Watch(path string) error

	// Unwatch stops reporting changes to path.
	Unwatch(path string)
}
