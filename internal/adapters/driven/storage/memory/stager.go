package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Ensure Stager implements the interface.
var _ driven.ContentStager = (*Stager)(nil)

// Stager is an in-memory implementation of driven.ContentStager.
// Handles are document keys.
type Stager struct {
	mu       sync.RWMutex
	content  map[string][]byte
	released int
}

// NewStager creates a new in-memory stager.
func NewStager() *Stager {
	return &Stager{content: make(map[string][]byte)}
}

// Stage keeps a copy of the document content.
func (s *Stager) Stage(_ context.Context, doc *domain.CanonicalDocument) (string, error) {
	if doc == nil || doc.Key == "" {
		return "", domain.ErrInvalidInput
	}
	handle := doc.Key.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[handle] = bytes.Clone(doc.Content)
	return handle, nil
}

// Open returns a reader over staged content.
func (s *Stager) Open(handle string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.content[handle]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Release drops all staged content.
func (s *Stager) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = make(map[string][]byte)
	s.released++
	return nil
}

// Staged returns the number of staged documents.
func (s *Stager) Staged() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.content)
}

// Releases returns how many times Release was called.
func (s *Stager) Releases() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.released
}
