package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvFileName is the dotenv file read from the working and config directories.
const EnvFileName = ".env"

// LoadEnvFiles loads KEY=value pairs from .env in the working directory and
// then in configDir into the process environment. Variables that are
// already set win, so the working directory file beats the config
// directory one and the real environment beats both. Missing files are
// skipped. The loaded paths are returned.
func LoadEnvFiles(configDir string) ([]string, error) {
	candidates := []string{EnvFileName}
	if configDir != "" {
		candidates = append(candidates, filepath.Join(configDir, EnvFileName))
	}

	var loaded []string
	seen := make(map[string]bool)
	for _, path := range candidates {
		abs, err := filepath.Abs(path)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true

		if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return loaded, fmt.Errorf("loading %s: %w", abs, err)
		}
		loaded = append(loaded, abs)
	}
	return loaded, nil
}
