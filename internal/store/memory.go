package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"learnloop-backend/internal/models"
)

// MemoryStore implements the same merge semantics as the real backends, for
// tests and local development. Now is injectable so tests control updated_at.
// Setting GetErr or MergeErr makes the corresponding operation fail, which is
// how tests exercise the store-unavailable paths.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]map[string]json.RawMessage

	Now        func() time.Time
	GetErr     error
	MergeErr   error
	MergeCalls int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]map[string]json.RawMessage),
		Now:  time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*models.DailyActivityAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GetErr != nil {
		return nil, s.GetErr
	}

	doc, ok := s.docs[key]
	if !ok {
		return nil, ErrNotFound
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	var agg models.DailyActivityAggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &agg, nil
}

func (s *MemoryStore) Merge(ctx context.Context, key string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.MergeCalls++
	if s.MergeErr != nil {
		return s.MergeErr
	}
	if err := validatePatch(patch); err != nil {
		return err
	}

	doc, ok := s.docs[key]
	if !ok {
		doc = make(map[string]json.RawMessage)
		s.docs[key] = doc
	}

	for field, value := range patch {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode patch field %q: %w", field, err)
		}
		doc[field] = encoded
	}

	updated, _ := json.Marshal(s.Now().UTC())
	doc["updated_at"] = updated
	return nil
}

// Len reports how many documents exist, for tests.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}
