// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EmbeddingService: Converts text to vectors (OpenAI, Ollama)
//   - FileSystem: Resolves, stats and reads attached documents
//   - PageExtractor: Turns file bytes into page-split text
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - DurableIndex: Persistent vector store. Without it only attachments are searched.
//   - ChangeNotifier: Proactive invalidation of cached attachments on file change.
//   - PromptStore: User-editable context templates. Without it defaults are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
