package domain

import "time"

// RawArticle is a single article as returned by the corpus source,
// before canonicalisation.
type RawArticle struct {
	// ID is the corpus' stable identifier for the article.
	ID int64

	// HTMLURL is the public URL of the article.
	HTMLURL string

	// Title is the article title.
	Title string

	// Body is the raw HTML body.
	Body string

	// Locale is the article locale, when reported.
	Locale string

	// UpdatedAt is the corpus' last-modified timestamp.
	UpdatedAt time.Time

	// Draft marks unpublished articles.
	Draft bool
}
