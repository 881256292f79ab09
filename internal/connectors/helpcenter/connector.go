package helpcenter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.CorpusSource = (*Source)(nil)

// Source fetches every article of a help centre.
type Source struct {
	cfg    Config
	client *client
}

// New creates a help centre source. A nil httpClient uses http.DefaultClient.
func New(cfg Config, httpClient *http.Client) *Source {
	cfg.applyDefaults()
	return &Source{
		cfg:    cfg,
		client: newClient(httpClient, cfg),
	}
}

// FetchAll walks every page of the articles endpoint.
func (s *Source) FetchAll(ctx context.Context) ([]domain.RawArticle, error) {
	next, err := s.cfg.firstPageURL()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCorpusUnavailable, err)
	}

	var articles []domain.RawArticle
	seen := make(map[string]bool)
	drafts := 0

	for pageNum := 1; next != ""; pageNum++ {
		if pageNum > s.cfg.MaxPages {
			return nil, fmt.Errorf("%w: %w: more than %d pages", domain.ErrCorpusUnavailable, ErrTooManyPages, s.cfg.MaxPages)
		}
		if seen[next] {
			return nil, fmt.Errorf("%w: %w at %s", domain.ErrCorpusUnavailable, ErrPaginationLoop, next)
		}
		seen[next] = true

		page, err := s.client.getPage(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", domain.ErrCorpusUnavailable, pageNum, err)
		}
		logger.Debug("Fetched page %d: %d articles", pageNum, len(page.Articles))

		for _, a := range page.Articles {
			if a.Draft && !s.cfg.IncludeDrafts {
				drafts++
				continue
			}
			articles = append(articles, toRaw(a))
		}

		next, err = resolveNext(next, page.NextPage)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", domain.ErrCorpusUnavailable, pageNum, err)
		}
	}

	if drafts > 0 {
		logger.Debug("Skipped %d draft articles", drafts)
	}
	return articles, nil
}

// resolveNext returns the absolute next page URL, or "" on the last page.
func resolveNext(current string, next *string) (string, error) {
	if next == nil || *next == "" {
		return "", nil
	}
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(*next)
	if err != nil {
		return "", fmt.Errorf("invalid next_page %q: %w", *next, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func toRaw(a apiArticle) domain.RawArticle {
	raw := domain.RawArticle{
		ID:      a.ID,
		HTMLURL: a.HTMLURL,
		Title:   a.Title,
		Body:    a.Body,
		Locale:  a.Locale,
		Draft:   a.Draft,
	}
	if t, err := time.Parse(time.RFC3339, a.UpdatedAt); err == nil {
		raw.UpdatedAt = t.UTC()
	}
	return raw
}
