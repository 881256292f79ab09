// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - CorpusSource: Fetches the full help-centre corpus
//   - Canonicaliser: Converts raw articles to canonical markdown documents
//   - ContentStager: Holds canonical content locally for one run
//   - MetadataStore: Document record persistence (SQLite or Supabase)
//   - ContentIndex: Content-indexing store (OpenAI vector store)
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - RunStore: Run history. Without it, `kbsync status` has nothing to show.
//   - RunLock: Cross-process run exclusion. Without it, only in-process exclusion applies.
//   - ConfigStore: Only used by the CLI wiring layer.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
