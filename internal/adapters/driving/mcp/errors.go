// Package mcp provides an MCP (Model Context Protocol) server adapter for kbsync.
// It lets AI assistants retrieve passages from the synchronised knowledge base
// and inspect reconciliation runs.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
