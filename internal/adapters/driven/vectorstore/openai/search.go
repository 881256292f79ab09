package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Ensure ContentIndex implements the search port.
var _ driven.ContentSearcher = (*ContentIndex)(nil)

// DefaultSearchResults is the number of results Search returns by default.
const DefaultSearchResults = 5

type searchRequest struct {
	Query         string `json:"query"`
	MaxNumResults int    `json:"max_num_results"`
}

type searchResponse struct {
	Data []struct {
		FileID   string  `json:"file_id"`
		Filename string  `json:"filename"`
		Score    float64 `json:"score"`
		Content  []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// Search queries the vector store and returns up to topK matches.
func (c *ContentIndex) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = DefaultSearchResults
	}

	jsonBody, err := json.Marshal(searchRequest{Query: query, MaxNumResults: topK})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	path := "/vector_stores/" + url.PathEscape(c.vectorStoreID) + "/search"
	resp, body, err := c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	if err := checkStatus("search", resp, body); err != nil {
		return nil, err
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", domain.ErrContentIndex, err)
	}

	results := make([]domain.SearchResult, 0, len(sr.Data))
	for _, d := range sr.Data {
		var parts []string
		for _, c := range d.Content {
			if c.Type == "text" {
				parts = append(parts, c.Text)
			}
		}
		results = append(results, domain.SearchResult{
			ContentID: d.FileID,
			Name:      d.Filename,
			Score:     d.Score,
			Text:      strings.Join(parts, "\n"),
		})
	}
	return results, nil
}
