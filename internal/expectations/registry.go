// Package expectations holds the expectation type registry. Each variant
// implements a fixed capability interface; the validator and estimator
// dispatch through the registry and never reference concrete types, so new
// variants register here without touching either.
package expectations

import (
	"fmt"
	"sort"
	"sync"

	"tablecheck/domain/core"
	"tablecheck/domain/expectation"
	"tablecheck/domain/metric"
	"tablecheck/domain/validation"
)

// MetricValues carries resolved metric values into Validate, keyed by
// metric.Metric.Key().
type MetricValues map[string]interface{}

// Get returns the resolved value for a metric
func (mv MetricValues) Get(m metric.Metric) interface{} {
	return mv[m.Key()]
}

// Expectation is the capability interface every variant implements
type Expectation interface {
	Type() string
	RequiredMetrics(cfg expectation.Config) ([]metric.Metric, error)
	Validate(cfg expectation.Config, values MetricValues) (validation.ExpectationResult, error)
	SupportsEstimation() bool
}

// Estimable is implemented by variants whose bounds can be fitted from
// data. BaseMetric names the per-batch statistic the estimator collects.
type Estimable interface {
	Expectation
	BaseMetric(cfg expectation.Config) (metric.Metric, error)
}

// Registry is an open, concurrency-safe map of expectation types
type Registry struct {
	mu       sync.RWMutex
	variants map[string]Expectation
}

// NewRegistry creates a registry with all built-in variants registered
func NewRegistry() *Registry {
	r := &Registry{variants: make(map[string]Expectation)}
	for _, e := range builtinVariants() {
		r.Register(e)
	}
	return r
}

// Register adds a variant; later registrations win
func (r *Registry) Register(e Expectation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[e.Type()] = e
}

// Lookup returns the variant for an expectation type name
func (r *Registry) Lookup(expectationType string) (Expectation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.variants[expectationType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownExpectation, expectationType)
	}
	return e, nil
}

// IsEstimable reports, without touching any data, whether the type's
// parameters can be estimated.
func (r *Registry) IsEstimable(expectationType string) (bool, error) {
	e, err := r.Lookup(expectationType)
	if err != nil {
		return false, err
	}
	return e.SupportsEstimation(), nil
}

// Types lists registered type names in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.variants))
	for name := range r.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
