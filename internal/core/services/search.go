package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// Search result limits.
const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 50
)

// SearchService answers retrieval queries against the content index.
type SearchService struct {
	searcher driven.ContentSearcher
}

// NewSearchService creates a new search service.
func NewSearchService(searcher driven.ContentSearcher) *SearchService {
	return &SearchService{searcher: searcher}
}

// Search returns passages matching query. An empty query returns no results.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	if s.searcher == nil {
		return nil, errors.New("search: no content index configured")
	}

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	logger.Debug("Searching for %q (limit %d)", query, limit)
	results, err := s.searcher.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	logger.Debug("Search returned %d results", len(results))
	return results, nil
}
