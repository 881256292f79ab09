// Package file persists kbsync settings as TOML.
//
// The file lives at ~/.kbsync/config.toml unless another directory is given.
// Keys are dotted paths in memory ("openai.vector_store_id") and nested
// tables on disk:
//
//	[openai]
//	vector_store_id = "vs_123"
package file
