// Package estimate implements auto-initializing parameter estimation: it
// collects an expectation's base metric across batches and aggregates the
// per-batch values into resolved interval bounds.
package estimate

import (
	"context"
	"fmt"
	"log"
	"math"

	"tablecheck/domain/batch"
	"tablecheck/domain/core"
	"tablecheck/domain/expectation"
	"tablecheck/internal/expectations"
	"tablecheck/internal/metrics"
)

// Policy controls aggregation and formatting of estimated bounds.
type Policy struct {
	// Precision is the number of decimal places kept on estimated bounds,
	// rounded half-to-even. Negative means no rounding beyond the metric's
	// native precision (the default).
	Precision int
}

// DefaultPolicy keeps the metric's native precision
func DefaultPolicy() Policy {
	return Policy{Precision: -1}
}

// Observation is one batch's contribution to the estimate
type Observation struct {
	BatchID     core.BatchID      `json:"batch_id"`
	Identifiers map[string]string `json:"identifiers"`
	Value       float64           `json:"value"`
}

// SkippedBatch records a batch whose metric computation failed
type SkippedBatch struct {
	BatchID     core.BatchID      `json:"batch_id"`
	Identifiers map[string]string `json:"identifiers"`
	Reason      string            `json:"reason"`
}

// Report is the estimation outcome: the resolved configuration plus the
// evidence it was fitted from. The report is per-run state; only the
// resolved configuration survives it.
type Report struct {
	Config        expectation.Config `json:"expectation_config"`
	Observations  []Observation      `json:"observations"`
	Skipped       []SkippedBatch     `json:"skipped,omitempty"`
	LowConfidence bool               `json:"low_confidence"`
}

// Estimator drives multi-batch metric collection through the metric engine
type Estimator struct {
	engine   *metrics.Engine
	registry *expectations.Registry
}

// NewEstimator creates an estimator backed by the given engine and registry
func NewEstimator(engine *metrics.Engine, registry *expectations.Registry) *Estimator {
	return &Estimator{engine: engine, registry: registry}
}

// IsEstimable reports whether the expectation type supports estimation,
// without computing any metric.
func (e *Estimator) IsEstimable(expectationType string) (bool, error) {
	return e.registry.IsEstimable(expectationType)
}

// Estimate produces a fully resolved configuration for cfg by computing its
// base metric per batch (in resolver order) and aggregating:
// min_value = min of observed values, max_value = max, closed interval.
// Batches that fail metric computation are skipped with a reason; if every
// batch fails, estimation fails.
func (e *Estimator) Estimate(ctx context.Context, cfg expectation.Config, batches []*batch.Batch, policy Policy) (*Report, error) {
	variant, err := e.registry.Lookup(cfg.Type)
	if err != nil {
		return nil, err
	}
	estimable, ok := variant.(expectations.Estimable)
	if !ok || !variant.SupportsEstimation() {
		return nil, fmt.Errorf("%w: %s", core.ErrNotEstimable, cfg.Type)
	}

	baseMetric, err := estimable.BaseMetric(cfg)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, fmt.Errorf("%w: no batches provided", core.ErrEstimationData)
	}

	report := &Report{}
	for _, b := range batches {
		value, err := e.engine.Resolve(ctx, b, baseMetric)
		if err != nil {
			report.Skipped = append(report.Skipped, SkippedBatch{
				BatchID:     b.ID,
				Identifiers: b.Identifiers,
				Reason:      err.Error(),
			})
			continue
		}
		f, ok := value.(float64)
		if !ok {
			report.Skipped = append(report.Skipped, SkippedBatch{
				BatchID:     b.ID,
				Identifiers: b.Identifiers,
				Reason:      fmt.Sprintf("metric %s produced no numeric value", baseMetric.Key()),
			})
			continue
		}
		report.Observations = append(report.Observations, Observation{
			BatchID:     b.ID,
			Identifiers: b.Identifiers,
			Value:       f,
		})
	}

	if len(report.Observations) == 0 {
		return nil, fmt.Errorf("%w: all %d batches failed metric %s",
			core.ErrEstimationData, len(batches), baseMetric.Key())
	}

	minV := report.Observations[0].Value
	maxV := minV
	for _, obs := range report.Observations[1:] {
		minV = math.Min(minV, obs.Value)
		maxV = math.Max(maxV, obs.Value)
	}
	minV = policy.round(minV)
	maxV = policy.round(maxV)

	resolved := cfg.Clone()
	resolved.Kwargs[expectation.KwargMinValue] = minV
	resolved.Kwargs[expectation.KwargMaxValue] = maxV
	resolved.Kwargs[expectation.KwargStrictMin] = false
	resolved.Kwargs[expectation.KwargStrictMax] = false
	report.Config = resolved

	if len(report.Observations) == 1 {
		report.LowConfidence = true
		log.Printf("[Estimator] %s estimated from a single batch (min=max=%v); bounds carry no cross-batch variance",
			cfg.Type, minV)
	}

	return report, nil
}

// round applies the precision policy using round-half-to-even, so boundary
// batches round the same way on every run.
func (p Policy) round(v float64) float64 {
	if p.Precision < 0 {
		return v
	}
	scale := math.Pow(10, float64(p.Precision))
	return math.RoundToEven(v*scale) / scale
}
