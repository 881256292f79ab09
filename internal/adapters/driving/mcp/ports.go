package mcp

import (
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server exposes.
type Ports struct {
	// Search retrieves passages from the content index.
	Search driving.SearchService

	// Runs exposes recorded reconciliation runs. Optional.
	Runs driving.RunHistory
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
