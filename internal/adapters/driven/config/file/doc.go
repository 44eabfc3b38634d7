// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - PromptStore: user-editable prompt templates
//   - LoadEnvFiles: .env loading ahead of settings resolution
//   - Manifest: YAML lists of documents to index
package file
