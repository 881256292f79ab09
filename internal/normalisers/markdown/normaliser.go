package markdown

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Ensure Canonicaliser implements the interface.
var _ driven.Canonicaliser = (*Canonicaliser)(nil)

// Canonicaliser renders help centre articles as markdown documents.
type Canonicaliser struct{}

// New creates a new markdown canonicaliser.
func New() *Canonicaliser {
	return &Canonicaliser{}
}

// Canonicalise returns "# <title>\n\n<markdown body>\n". The key is the
// article id; the name is the URL slug with a .md extension.
func (c *Canonicaliser) Canonicalise(_ context.Context, raw *domain.RawArticle) (*domain.CanonicalDocument, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	key, err := DeriveKey(raw.ID, raw.HTMLURL)
	if err != nil {
		return nil, err
	}

	body, err := ToMarkdown(raw.Body)
	if err != nil {
		return nil, fmt.Errorf("article %s: %w", key, err)
	}

	title := strings.TrimSpace(raw.Title)

	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(title)
	b.WriteString("\n\n")
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}

	slug := Slug(raw.HTMLURL)
	if slug == "" {
		slug = key.String()
	}

	return &domain.CanonicalDocument{
		Key:       key,
		Name:      slug + ".md",
		Title:     title,
		SourceURL: raw.HTMLURL,
		Content:   []byte(b.String()),
	}, nil
}

// DeriveKey returns the stable key of an article: its numeric id, or the
// URL slug for articles without one. It never depends on content.
func DeriveKey(id int64, htmlURL string) (domain.DocumentKey, error) {
	if id > 0 {
		return domain.DocumentKey(strconv.FormatInt(id, 10)), nil
	}
	if slug := Slug(htmlURL); slug != "" {
		return domain.DocumentKey("slug:" + slug), nil
	}
	return "", fmt.Errorf("%w: article has neither id nor URL", domain.ErrInvalidInput)
}

// Slug returns the last path segment of htmlURL with hyphens replaced by
// underscores, e.g. ".../articles/360-How-To" becomes "360_How_To".
func Slug(htmlURL string) string {
	if htmlURL == "" {
		return ""
	}
	u, err := url.Parse(htmlURL)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(u.Path, "/")
	seg := path[strings.LastIndex(path, "/")+1:]
	return strings.ReplaceAll(seg, "-", "_")
}
