// Package memory keeps season results in memory. It backs storage.dry_run runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/appearances-scraper/internal/roster"
)

// Store records every saved result.
type Store struct {
	mu      sync.RWMutex
	results []roster.SeasonResult
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{}
}

// SaveSeason appends the result.
func (s *Store) SaveSeason(_ context.Context, result roster.SeasonResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

// Results returns the saved results in save order.
func (s *Store) Results() []roster.SeasonResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]roster.SeasonResult, len(s.results))
	copy(out, s.results)
	return out
}

// Get returns the most recent result saved for the club-season key.
func (s *Store) Get(key string) (roster.SeasonResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.results) - 1; i >= 0; i-- {
		if s.results[i].Key() == key {
			return s.results[i], true
		}
	}
	return roster.SeasonResult{}, false
}

// Name identifies the store in logs.
func (*Store) Name() string { return "memory" }
