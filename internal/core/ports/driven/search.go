package driven

import (
	"context"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

// ContentSearcher queries the content index.
type ContentSearcher interface {
	// Search returns up to limit passages matching query, best first.
	Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)
}
