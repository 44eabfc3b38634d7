package filesystem

import (
	"os"
	"path/filepath"
	"strings"
)

// NormaliseRef converts a document reference to a local path.
// Handles file:// URIs, a leading ~ for the home directory, and bare paths.
func NormaliseRef(ref string) string {
	ref = strings.TrimSpace(ref)

	// Strip file:// prefix for local paths
	if strings.HasPrefix(ref, "file://") {
		ref = strings.TrimPrefix(ref, "file://")
	}

	if ref == "~" || strings.HasPrefix(ref, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			ref = filepath.Join(home, strings.TrimPrefix(ref, "~"))
		}
	}
	return ref
}
