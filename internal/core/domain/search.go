package domain

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of results.
	Limit int
}

// SearchResult is one passage matched in the content index.
type SearchResult struct {
	// ContentID is the indexed content the passage came from.
	ContentID string `json:"content_id"`

	// Name is the staged document name, e.g. "getting_started.md".
	Name string `json:"name"`

	// Score is the relevance score reported by the index.
	Score float64 `json:"score"`

	// Text is the matched passage.
	Text string `json:"text"`
}
