package driven

import (
	"context"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

// CorpusSource fetches the complete source corpus.
// Pagination is handled by the implementation; an unreachable page
// fails the whole fetch so a partial corpus is never reconciled.
type CorpusSource interface {
	// FetchAll returns every published article in the corpus.
	FetchAll(ctx context.Context) ([]domain.RawArticle, error)
}

// Canonicaliser converts a raw article into its canonical document.
// Key derivation must depend on the article's identity only and content
// must not embed identifiers, so fingerprints track content changes alone.
type Canonicaliser interface {
	// Canonicalise returns the canonical form of raw.
	Canonicalise(ctx context.Context, raw *domain.RawArticle) (*domain.CanonicalDocument, error)
}
