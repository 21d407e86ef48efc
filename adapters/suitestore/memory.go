// Package suitestore provides SuiteStore implementations: in-memory (tests
// and ephemeral sessions), JSON files, bbolt, and postgres.
package suitestore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tablecheck/domain/core"
	"tablecheck/domain/expectation"
	"tablecheck/domain/validation"
	"tablecheck/ports"
)

// MemoryStore keeps suites and results in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	suites  map[core.SuiteName][]byte
	results map[core.RunID]*validation.SuiteResult
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		suites:  make(map[core.SuiteName][]byte),
		results: make(map[core.RunID]*validation.SuiteResult),
	}
}

var _ ports.SuiteStore = (*MemoryStore)(nil)

func (s *MemoryStore) SaveSuite(_ context.Context, suite *expectation.Suite) error {
	data, err := suite.ToPersistable()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suites[suite.Name] = data
	return nil
}

func (s *MemoryStore) GetSuite(_ context.Context, name core.SuiteName) (*expectation.Suite, error) {
	s.mu.RLock()
	data, ok := s.suites[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSuiteNotFound, name)
	}
	return expectation.FromPersistable(data)
}

func (s *MemoryStore) ListSuites(_ context.Context) ([]core.SuiteName, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]core.SuiteName, 0, len(s.suites))
	for name := range s.suites {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names, nil
}

func (s *MemoryStore) DeleteSuite(_ context.Context, name core.SuiteName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.suites[name]; !ok {
		return fmt.Errorf("%w: %s", core.ErrSuiteNotFound, name)
	}
	delete(s.suites, name)
	return nil
}

func (s *MemoryStore) SaveResult(_ context.Context, result *validation.SuiteResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.RunID] = result
	return nil
}

func (s *MemoryStore) GetResult(_ context.Context, runID core.RunID) (*validation.SuiteResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[runID]
	if !ok {
		return nil, fmt.Errorf("%w: validation result %s", core.ErrNotFound, runID)
	}
	return result, nil
}
