package ports

import (
	"context"

	"tablecheck/domain/core"
	"tablecheck/domain/expectation"
	"tablecheck/domain/validation"
)

// SuiteStore persists expectation suites and validation results. Suites are
// the only state that outlives a run; implementations must serialize
// mutations per suite name so concurrent sessions cannot lose updates.
type SuiteStore interface {
	SaveSuite(ctx context.Context, suite *expectation.Suite) error
	GetSuite(ctx context.Context, name core.SuiteName) (*expectation.Suite, error)
	ListSuites(ctx context.Context) ([]core.SuiteName, error)
	DeleteSuite(ctx context.Context, name core.SuiteName) error

	SaveResult(ctx context.Context, result *validation.SuiteResult) error
	GetResult(ctx context.Context, runID core.RunID) (*validation.SuiteResult, error)
}
