package record

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store for tests and the "memory" driver.
type MemoryStore struct {
	mu     sync.RWMutex
	fields map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{fields: make(map[string]string)}
}

// ReadField returns the stored value for one record field.
func (s *MemoryStore) ReadField(_ context.Context, recordID int, name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.fields[fieldKey(recordID, name)]
	return value, ok, nil
}

// WriteField sets one record field.
func (s *MemoryStore) WriteField(_ context.Context, recordID int, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[fieldKey(recordID, name)] = value
	return nil
}

func fieldKey(recordID int, name string) string {
	return fmt.Sprintf("%d:%s", recordID, name)
}
