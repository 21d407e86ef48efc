package suitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tablecheck/domain/core"
	"tablecheck/domain/expectation"
	"tablecheck/domain/validation"
	"tablecheck/ports"

	"github.com/jmoiron/sqlx"
)

// PostgresStore persists suites and results in postgres. Upserts are
// atomic per suite name, which gives the exclusive-access guarantee
// without application-level locks.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates the store and its tables if needed
func NewPostgresStore(db *sqlx.DB) (*PostgresStore, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS expectation_suites (
		name TEXT PRIMARY KEY,
		document JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS validation_results (
		run_id TEXT PRIMARY KEY,
		suite_name TEXT NOT NULL,
		document JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create suite store schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

var _ ports.SuiteStore = (*PostgresStore)(nil)

func (s *PostgresStore) SaveSuite(ctx context.Context, suite *expectation.Suite) error {
	data, err := suite.ToPersistable()
	if err != nil {
		return err
	}
	query := `INSERT INTO expectation_suites (name, document, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET document = $2, updated_at = $3`
	if _, err := s.db.ExecContext(ctx, query, suite.Name, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save suite %s: %w", suite.Name, err)
	}
	return nil
}

func (s *PostgresStore) GetSuite(ctx context.Context, name core.SuiteName) (*expectation.Suite, error) {
	var document []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM expectation_suites WHERE name = $1`, name).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrSuiteNotFound, name)
		}
		return nil, fmt.Errorf("failed to get suite %s: %w", name, err)
	}
	return expectation.FromPersistable(document)
}

func (s *PostgresStore) ListSuites(ctx context.Context) ([]core.SuiteName, error) {
	var names []core.SuiteName
	err := s.db.SelectContext(ctx, &names,
		`SELECT name FROM expectation_suites ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list suites: %w", err)
	}
	return names, nil
}

func (s *PostgresStore) DeleteSuite(ctx context.Context, name core.SuiteName) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM expectation_suites WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete suite %s: %w", name, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrSuiteNotFound, name)
	}
	return nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, result *validation.SuiteResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize result %s: %w", result.RunID, err)
	}
	query := `INSERT INTO validation_results (run_id, suite_name, document, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, query, result.RunID, result.SuiteName, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save result %s: %w", result.RunID, err)
	}
	return nil
}

func (s *PostgresStore) GetResult(ctx context.Context, runID core.RunID) (*validation.SuiteResult, error) {
	var document []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM validation_results WHERE run_id = $1`, runID).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: validation result %s", core.ErrNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get result %s: %w", runID, err)
	}
	var result validation.SuiteResult
	if err := json.Unmarshal(document, &result); err != nil {
		return nil, fmt.Errorf("failed to parse result %s: %w", runID, err)
	}
	return &result, nil
}
