package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Ensure ContentIndex implements the interface.
var _ driven.ContentIndex = (*ContentIndex)(nil)

// ContentIndex is an in-memory implementation of driven.ContentIndex.
// Content ids mimic OpenAI file ids.
type ContentIndex struct {
	mu      sync.RWMutex
	content map[string][]byte
	names   map[string]string
}

// NewContentIndex creates a new in-memory content index.
func NewContentIndex() *ContentIndex {
	return &ContentIndex{
		content: make(map[string][]byte),
		names:   make(map[string]string),
	}
}

// Push stores content and returns a fresh content id.
func (i *ContentIndex) Push(_ context.Context, name string, content io.Reader) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	id := "file-" + uuid.NewString()

	i.mu.Lock()
	defer i.mu.Unlock()
	i.content[id] = data
	i.names[id] = name
	return id, nil
}

// Remove deletes a content id. Unknown ids are ignored.
func (i *ContentIndex) Remove(_ context.Context, contentID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.content, contentID)
	delete(i.names, contentID)
	return nil
}

// Live reports whether contentID is present.
func (i *ContentIndex) Live(contentID string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.content[contentID]
	return ok
}

// Content returns the stored bytes for contentID.
func (i *ContentIndex) Content(contentID string) ([]byte, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	data, ok := i.content[contentID]
	return data, ok
}

// Name returns the name content was pushed under.
func (i *ContentIndex) Name(contentID string) string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.names[contentID]
}

// Len returns the number of live content ids.
func (i *ContentIndex) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.content)
}
