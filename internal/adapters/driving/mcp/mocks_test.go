package mcp

import (
	"context"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.SearchResult
	err     error
	opts    domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	_ string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.opts = opts
	return m.results, m.err
}

// mockRunHistory is a mock implementation of driving.RunHistory.
type mockRunHistory struct {
	runs []domain.RunSummary
	err  error
}

func (m *mockRunHistory) Last(_ context.Context) (*domain.RunSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.runs) == 0 {
		return nil, domain.ErrNotFound
	}
	return &m.runs[0], nil
}

func (m *mockRunHistory) List(_ context.Context, limit int) ([]domain.RunSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit > 0 && limit < len(m.runs) {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}
