package driving

import (
	"context"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

// SearchService provides retrieval over the synchronised knowledge base.
type SearchService interface {
	// Search returns passages matching query.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
