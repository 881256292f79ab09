package driven

import (
	"context"
	"io"
)

// ContentIndex is the retrieval index that holds document content.
// Backed by an OpenAI vector store in production.
type ContentIndex interface {
	// Push uploads content under name and attaches it to the index.
	// Returns the new content id.
	Push(ctx context.Context, name string, content io.Reader) (string, error)

	// Remove deletes the content id. Removing an id that no longer
	// exists is treated as success.
	Remove(ctx context.Context, contentID string) error
}
