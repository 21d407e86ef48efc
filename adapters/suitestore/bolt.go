package suitestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"tablecheck/domain/core"
	"tablecheck/domain/expectation"
	"tablecheck/domain/validation"
	"tablecheck/ports"

	bolt "go.etcd.io/bbolt"
)

const (
	bucketSuites  = "suites"
	bucketResults = "results"
)

// BoltStore is a bbolt-backed SuiteStore. Bolt's single-writer transactions
// give exclusive access per mutation, so suite saves are lost-update safe.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database file and its buckets
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{bucketSuites, bucketResults} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

var _ ports.SuiteStore = (*BoltStore)(nil)

// Close releases the database file
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) SaveSuite(_ context.Context, suite *expectation.Suite) error {
	data, err := suite.ToPersistable()
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSuites)).Put([]byte(suite.Name), data)
	})
}

func (s *BoltStore) GetSuite(_ context.Context, name core.SuiteName) (*expectation.Suite, error) {
	var suite *expectation.Suite
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketSuites)).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %s", core.ErrSuiteNotFound, name)
		}
		var err error
		suite, err = expectation.FromPersistable(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return suite, nil
}

func (s *BoltStore) ListSuites(_ context.Context) ([]core.SuiteName, error) {
	var names []core.SuiteName
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSuites)).ForEach(func(k, _ []byte) error {
			names = append(names, core.SuiteName(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names, nil
}

func (s *BoltStore) DeleteSuite(_ context.Context, name core.SuiteName) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketSuites))
		if bucket.Get([]byte(name)) == nil {
			return fmt.Errorf("%w: %s", core.ErrSuiteNotFound, name)
		}
		return bucket.Delete([]byte(name))
	})
}

func (s *BoltStore) SaveResult(_ context.Context, result *validation.SuiteResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize result %s: %w", result.RunID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketResults)).Put([]byte(result.RunID), data)
	})
}

func (s *BoltStore) GetResult(_ context.Context, runID core.RunID) (*validation.SuiteResult, error) {
	var result validation.SuiteResult
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketResults)).Get([]byte(runID))
		if data == nil {
			return fmt.Errorf("%w: validation result %s", core.ErrNotFound, runID)
		}
		return json.Unmarshal(data, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
