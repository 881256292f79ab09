// Package domain defines the core business entities for kbsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - DocumentRecord: The persisted state of one document (key, fingerprint, content id)
//   - StagedDocument: One entry of the current run's new-document set
//   - Snapshot / Classification: Inputs and output of the diff
//   - RunSummary: Counts and per-item issues of one reconciliation run
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
