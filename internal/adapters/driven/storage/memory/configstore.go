package memory

import (
	"maps"
	"slices"
	"sync"

	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in a map. Nothing is persisted.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore creates an empty store.
func NewConfigStore() *ConfigStore {
	return NewConfigStoreWith(nil)
}

// NewConfigStoreWith creates a store seeded with a copy of values.
func NewConfigStoreWith(values map[string]any) *ConfigStore {
	s := &ConfigStore{values: make(map[string]any, len(values))}
	maps.Copy(s.values, values)
	return s
}

func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

func (s *ConfigStore) GetString(key string) string {
	return typed[string](s, key)
}

func (s *ConfigStore) GetBool(key string) bool {
	return typed[bool](s, key)
}

// GetInt truncates floating-point values.
func (s *ConfigStore) GetInt(key string) int {
	n, _ := s.number(key)
	return int(n)
}

func (s *ConfigStore) GetFloat(key string) float64 {
	n, _ := s.number(key)
	return n
}

func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *ConfigStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.values))
}

// Load is a no-op.
func (s *ConfigStore) Load() error {
	return nil
}

// Path is always empty.
func (s *ConfigStore) Path() string {
	return ""
}

func (s *ConfigStore) number(key string) (float64, bool) {
	val, _ := s.Get(key)
	switch v := val.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func typed[T any](s *ConfigStore, key string) T {
	val, _ := s.Get(key)
	v, _ := val.(T)
	return v
}
