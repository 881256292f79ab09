package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchResult_JSON(t *testing.T) {
	r := SearchResult{ContentID: "file-1", Name: "1-intro.md", Score: 0.5, Text: "hello"}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	assert.JSONEq(t, `{"content_id":"file-1","name":"1-intro.md","score":0.5,"text":"hello"}`, string(data))
}

func TestSearchOptions_ZeroLimit(t *testing.T) {
	assert.Zero(t, SearchOptions{}.Limit)
}
