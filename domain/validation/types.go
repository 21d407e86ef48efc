package validation

import (
	"tablecheck/domain/core"
	"tablecheck/domain/expectation"
)

// ExceptionInfo records an evaluation error attached to a single
// expectation's result. A failed assertion is not an exception; only
// malformed configuration or metric resolution failures are.
type ExceptionInfo struct {
	Raised  bool   `json:"raised_exception"`
	Message string `json:"exception_message,omitempty"`
}

// ExpectationResult is the outcome of evaluating one configuration
type ExpectationResult struct {
	Config        expectation.Config     `json:"expectation_config"`
	Success       bool                   `json:"success"`
	Result        map[string]interface{} `json:"result,omitempty"`
	ExceptionInfo *ExceptionInfo         `json:"exception_info,omitempty"`
}

// Errored reports whether evaluation raised rather than failed
func (r ExpectationResult) Errored() bool {
	return r.ExceptionInfo != nil && r.ExceptionInfo.Raised
}

// Statistics aggregates per-expectation outcomes for one run
type Statistics struct {
	EvaluatedExpectations    int     `json:"evaluated_expectations"`
	SuccessfulExpectations   int     `json:"successful_expectations"`
	UnsuccessfulExpectations int     `json:"unsuccessful_expectations"`
	SuccessPercent           float64 `json:"success_percent"`
}

// SuiteResult is the suite-level outcome: every expectation's result in the
// suite's declared order, plus the aggregate. Overall success is the logical
// AND of all expectation successes.
type SuiteResult struct {
	RunID      core.RunID          `json:"run_id"`
	SuiteName  core.SuiteName      `json:"suite_name"`
	Success    bool                `json:"success"`
	Results    []ExpectationResult `json:"results"`
	Statistics Statistics          `json:"statistics"`
	RanAt      core.Timestamp      `json:"ran_at"`
}

// NewSuiteResult assembles the suite-level result from ordered
// per-expectation results.
func NewSuiteResult(runID core.RunID, name core.SuiteName, results []ExpectationResult) *SuiteResult {
	success := true
	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		} else {
			success = false
		}
	}

	stats := Statistics{
		EvaluatedExpectations:    len(results),
		SuccessfulExpectations:   successful,
		UnsuccessfulExpectations: len(results) - successful,
	}
	if len(results) > 0 {
		stats.SuccessPercent = 100 * float64(successful) / float64(len(results))
	}

	return &SuiteResult{
		RunID:      runID,
		SuiteName:  name,
		Success:    success,
		Results:    results,
		Statistics: stats,
		RanAt:      core.Now(),
	}
}
