package suitestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"tablecheck/domain/core"
	"tablecheck/domain/expectation"
	"tablecheck/domain/validation"
	"tablecheck/ports"
)

// JSONFileStore persists suites as <dir>/suites/<name>.json and results as
// <dir>/results/<run_id>.json. Mutations are serialized per suite name so
// concurrent interactive sessions cannot lose updates.
type JSONFileStore struct {
	dir string

	mu    sync.Mutex
	locks map[core.SuiteName]*sync.Mutex
}

// NewJSONFileStore creates the store, making its directories if needed
func NewJSONFileStore(dir string) (*JSONFileStore, error) {
	for _, sub := range []string{"suites", "results"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return &JSONFileStore{dir: dir, locks: make(map[core.SuiteName]*sync.Mutex)}, nil
}

var _ ports.SuiteStore = (*JSONFileStore)(nil)

// suiteLock returns the per-name mutex, creating it on first use
func (s *JSONFileStore) suiteLock(name core.SuiteName) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	return lock
}

func (s *JSONFileStore) suitePath(name core.SuiteName) string {
	return filepath.Join(s.dir, "suites", sanitize(string(name))+".json")
}

func (s *JSONFileStore) SaveSuite(_ context.Context, suite *expectation.Suite) error {
	lock := s.suiteLock(suite.Name)
	lock.Lock()
	defer lock.Unlock()

	data, err := suite.ToPersistable()
	if err != nil {
		return err
	}
	// Write-then-rename so a crashed save never truncates the suite.
	tmp := s.suitePath(suite.Name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write suite %s: %w", suite.Name, err)
	}
	return os.Rename(tmp, s.suitePath(suite.Name))
}

func (s *JSONFileStore) GetSuite(_ context.Context, name core.SuiteName) (*expectation.Suite, error) {
	data, err := os.ReadFile(s.suitePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrSuiteNotFound, name)
		}
		return nil, fmt.Errorf("failed to read suite %s: %w", name, err)
	}
	return expectation.FromPersistable(data)
}

func (s *JSONFileStore) ListSuites(_ context.Context) ([]core.SuiteName, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "suites"))
	if err != nil {
		return nil, fmt.Errorf("failed to list suites: %w", err)
	}
	var names []core.SuiteName
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, core.SuiteName(strings.TrimSuffix(entry.Name(), ".json")))
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names, nil
}

func (s *JSONFileStore) DeleteSuite(_ context.Context, name core.SuiteName) error {
	lock := s.suiteLock(name)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.suitePath(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", core.ErrSuiteNotFound, name)
		}
		return fmt.Errorf("failed to delete suite %s: %w", name, err)
	}
	return nil
}

func (s *JSONFileStore) SaveResult(_ context.Context, result *validation.SuiteResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result %s: %w", result.RunID, err)
	}
	path := filepath.Join(s.dir, "results", sanitize(result.RunID.String())+".json")
	return os.WriteFile(path, data, 0o644)
}

func (s *JSONFileStore) GetResult(_ context.Context, runID core.RunID) (*validation.SuiteResult, error) {
	path := filepath.Join(s.dir, "results", sanitize(runID.String())+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: validation result %s", core.ErrNotFound, runID)
		}
		return nil, fmt.Errorf("failed to read result %s: %w", runID, err)
	}
	var result validation.SuiteResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse result %s: %w", runID, err)
	}
	return &result, nil
}

// sanitize keeps file names flat regardless of suite naming conventions
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, name)
}
