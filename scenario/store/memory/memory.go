// Package memory keeps scenario records in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spektr-org/spektr-olap/scenario/store"
)

var _ store.Store = (*Store)(nil)

// Store holds encoded records, so callers never share state with it.
type Store struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func New() *Store {
	return &Store{records: make(map[string][]byte)}
}

func (s *Store) Put(_ context.Context, r store.Record) error {
	b, err := store.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode scenario %s: %w", r.ID, err)
	}
	s.mu.Lock()
	s.records[r.ID] = b
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(_ context.Context, id string) (store.Record, error) {
	s.mu.RLock()
	b, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return store.Record{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return store.Unmarshal(b)
}

func (s *Store) List(context.Context) ([]string, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	delete(s.records, id)
	return nil
}

func (s *Store) Close() error { return nil }
