package file

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest lists the files to load into the durable index.
//
//	documents:
//	  - path: handbook.pdf
//	  - path: notes/
//	    recursive: true
//	exclude:
//	  - "*.tmp"
//
// Relative paths are resolved against the manifest's directory.
type Manifest struct {
	Documents []ManifestEntry `yaml:"documents"`
	Exclude   []string        `yaml:"exclude"`

	dir string
}

// ManifestEntry is one file or directory in a manifest.
type ManifestEntry struct {
	Path      string `yaml:"path"`
	Recursive bool   `yaml:"recursive"`
}

// LoadManifest reads and validates a YAML manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	for i, entry := range m.Documents {
		if strings.TrimSpace(entry.Path) == "" {
			return nil, fmt.Errorf("manifest %s: document %d has no path", path, i+1)
		}
	}
	for _, pattern := range m.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("manifest %s: bad exclude pattern %q: %w", path, pattern, err)
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	m.dir = filepath.Dir(abs)
	return &m, nil
}

// Files expands the manifest into a sorted, de-duplicated list of file
// paths. Directories contribute their regular files, skipping hidden
// entries; subdirectories are only entered for recursive entries.
func (m *Manifest) Files() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] && !m.excluded(path) {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, entry := range m.Documents {
		path := entry.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.dir, path)
		}
		path = filepath.Clean(path)

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %s: %w", entry.Path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p != path && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if p != path && !entry.Recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("manifest entry %s: %w", entry.Path, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

func (m *Manifest) excluded(path string) bool {
	name := filepath.Base(path)
	for _, pattern := range m.Exclude {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
