package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Ensure MetadataStore implements the interface.
var _ driven.MetadataStore = (*MetadataStore)(nil)

// MetadataStore is an in-memory implementation of driven.MetadataStore.
type MetadataStore struct {
	mu      sync.RWMutex
	records map[domain.DocumentKey]domain.DocumentRecord
}

// NewMetadataStore creates a new in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		records: make(map[domain.DocumentKey]domain.DocumentRecord),
	}
}

// ListAll returns every record ordered by key.
func (s *MetadataStore) ListAll(_ context.Context) ([]domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.DocumentRecord, 0, len(s.records))
	for key := range s.records {
		result = append(result, s.records[key])
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Get retrieves the record for key.
func (s *MetadataStore) Get(_ context.Context, key domain.DocumentKey) (*domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

// Insert creates a new record.
func (s *MetadataStore) Insert(_ context.Context, rec domain.DocumentRecord) error {
	if rec.Key == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.Key]; ok {
		return domain.ErrAlreadyExists
	}
	s.records[rec.Key] = rec
	return nil
}

// Update overwrites the record for rec.Key.
func (s *MetadataStore) Update(_ context.Context, rec domain.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.Key]; !ok {
		return domain.ErrNotFound
	}
	s.records[rec.Key] = rec
	return nil
}

// Delete removes and returns the record for key.
func (s *MetadataStore) Delete(_ context.Context, key domain.DocumentKey) (*domain.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(s.records, key)
	return &rec, nil
}

// Len returns the number of records.
func (s *MetadataStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
