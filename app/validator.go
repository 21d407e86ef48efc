// Package app wires the engines together: the validator binds batches to a
// suite and runs it; the checkpoint runner executes persisted run configs.
package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"tablecheck/domain/batch"
	"tablecheck/domain/core"
	"tablecheck/domain/expectation"
	"tablecheck/domain/validation"
	"tablecheck/internal/estimate"
	"tablecheck/internal/expectations"
	"tablecheck/internal/metrics"
	"tablecheck/ports"

	"golang.org/x/sync/semaphore"
)

// State is the validator lifecycle: unbound -> bound -> evaluating -> bound.
type State string

const (
	StateUnbound    State = "unbound"
	StateBound      State = "bound"
	StateEvaluating State = "evaluating"
)

// Validator binds batches to an expectation suite and evaluates it.
// Expectations run in parallel under a bounded semaphore, but results are
// reassembled in the suite's declared order and an error local to one
// expectation never aborts its siblings.
type Validator struct {
	mu      sync.Mutex
	state   State
	suite   *expectation.Suite
	batches []*batch.Batch

	engine    *metrics.Engine
	registry  *expectations.Registry
	estimator *estimate.Estimator
	store     ports.SuiteStore

	sem    *semaphore.Weighted
	policy estimate.Policy
}

// ValidatorOption configures a Validator
type ValidatorOption func(*Validator)

// WithParallelism bounds concurrent expectation evaluation
func WithParallelism(n int64) ValidatorOption {
	return func(v *Validator) { v.sem = semaphore.NewWeighted(n) }
}

// WithEstimationPolicy sets the policy used for auto expectations
func WithEstimationPolicy(p estimate.Policy) ValidatorOption {
	return func(v *Validator) { v.policy = p }
}

// NewValidator creates an unbound validator for the suite
func NewValidator(suite *expectation.Suite, engine *metrics.Engine, registry *expectations.Registry, store ports.SuiteStore, opts ...ValidatorOption) *Validator {
	v := &Validator{
		state:     StateUnbound,
		suite:     suite,
		engine:    engine,
		registry:  registry,
		estimator: estimate.NewEstimator(engine, registry),
		store:     store,
		sem:       semaphore.NewWeighted(4),
		policy:    estimate.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// State returns the current lifecycle state
func (v *Validator) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Suite returns the bound suite
func (v *Validator) Suite() *expectation.Suite {
	return v.suite
}

// BindBatches attaches resolved batches. Validation runs against the last
// batch (the most recent); estimation for auto expectations uses them all.
func (v *Validator) BindBatches(batches []*batch.Batch) error {
	if len(batches) == 0 {
		return fmt.Errorf("%w: validator needs at least one batch", core.ErrBatchNotFound)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateEvaluating {
		return fmt.Errorf("cannot rebind batches while evaluating")
	}
	v.batches = batches
	v.state = StateBound
	return nil
}

// AddExpectation inserts or overwrites a configuration on the in-memory suite
func (v *Validator) AddExpectation(cfg expectation.Config) error {
	if _, err := v.registry.Lookup(cfg.Type); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	_, err := v.suite.Add(cfg)
	return err
}

// RunValidation evaluates every configuration in the suite against the
// bound batches and assembles the suite-level result.
func (v *Validator) RunValidation(ctx context.Context) (*validation.SuiteResult, error) {
	v.mu.Lock()
	if v.state == StateUnbound {
		v.mu.Unlock()
		return nil, fmt.Errorf("%w: validator has no batches bound", core.ErrBatchNotFound)
	}
	if v.state == StateEvaluating {
		v.mu.Unlock()
		return nil, fmt.Errorf("validation already in progress")
	}
	v.state = StateEvaluating
	configs := v.suite.List()
	batches := v.batches
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		v.state = StateBound
		v.mu.Unlock()
	}()

	results := make([]validation.ExpectationResult, len(configs))
	var wg sync.WaitGroup
	for i, cfg := range configs {
		if err := v.sem.Acquire(ctx, 1); err != nil {
			results[i] = exceptionResult(cfg, err)
			continue
		}
		wg.Add(1)
		go func(i int, cfg expectation.Config) {
			defer wg.Done()
			defer v.sem.Release(1)
			results[i] = v.evaluateOne(ctx, cfg, batches)
		}(i, cfg)
	}
	wg.Wait()

	runID := core.NewRunID()
	result := validation.NewSuiteResult(runID, v.suite.Name, results)
	log.Printf("[Validator] run %s: %d/%d expectations passed",
		runID, result.Statistics.SuccessfulExpectations, result.Statistics.EvaluatedExpectations)
	return result, nil
}

// SaveSuite persists the in-memory suite through the store. This is a side
// effect on the suite, not a validator state transition.
func (v *Validator) SaveSuite(ctx context.Context) error {
	v.mu.Lock()
	suite := v.suite
	v.mu.Unlock()
	return v.store.SaveSuite(ctx, suite)
}

func (v *Validator) evaluateOne(ctx context.Context, cfg expectation.Config, batches []*batch.Batch) validation.ExpectationResult {
	work := cfg
	if cfg.IsAuto() {
		estimable, err := v.estimator.IsEstimable(cfg.Type)
		if err != nil {
			return exceptionResult(cfg, err)
		}
		if !estimable {
			return exceptionResult(cfg, fmt.Errorf("%w: %s", core.ErrNotEstimable, cfg.Type))
		}
		report, err := v.estimator.Estimate(ctx, cfg, batches, v.policy)
		if err != nil {
			return exceptionResult(cfg, err)
		}
		work = report.Config
	}

	variant, err := v.registry.Lookup(work.Type)
	if err != nil {
		return exceptionResult(work, err)
	}

	required, err := variant.RequiredMetrics(work)
	if err != nil {
		return exceptionResult(work, err)
	}

	active := batches[len(batches)-1]
	values := make(expectations.MetricValues, len(required))
	for _, m := range required {
		value, err := v.engine.Resolve(ctx, active, m)
		if err != nil {
			return exceptionResult(work, err)
		}
		values[m.Key()] = value
	}

	result, err := variant.Validate(work, values)
	if err != nil {
		return exceptionResult(work, err)
	}
	return result
}

// exceptionResult packages an evaluation error as that expectation's
// failed result so the suite-level outcome still enumerates it.
func exceptionResult(cfg expectation.Config, err error) validation.ExpectationResult {
	return validation.ExpectationResult{
		Config:  cfg,
		Success: false,
		ExceptionInfo: &validation.ExceptionInfo{
			Raised:  true,
			Message: err.Error(),
		},
	}
}
