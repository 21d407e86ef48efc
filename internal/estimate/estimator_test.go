package estimate

import (
	"context"
	"sync/atomic"
	"testing"

	"tablecheck/domain/batch"
	"tablecheck/domain/core"
	"tablecheck/domain/expectation"
	"tablecheck/domain/metric"
	"tablecheck/internal/expectations"
	"tablecheck/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchWithMean(id string, mean float64) *batch.Batch {
	// A single-row batch whose column mean is exactly the given value.
	return batch.New(map[string]string{"run_id": id}, batch.Table{
		Columns: []string{"trip_distance"},
		Rows:    [][]interface{}{{mean}},
	})
}

func meanAutoConfig() expectation.Config {
	return expectation.Config{
		Type:   "expect_column_mean_to_be_between",
		Kwargs: expectation.Kwargs{expectation.KwargColumn: "trip_distance"},
		Meta:   map[string]interface{}{expectation.MetaAuto: true},
	}
}

func TestEstimateTwelveBatchMeans(t *testing.T) {
	means := []float64{2.83, 2.9, 2.93, 2.95, 2.98, 3.0, 3.01, 3.02, 3.03, 3.04, 3.05, 3.06}
	batches := make([]*batch.Batch, len(means))
	for i, m := range means {
		batches[i] = batchWithMean(string(rune('a'+i)), m)
	}

	engine := metrics.NewEngine()
	registry := expectations.NewRegistry()
	estimator := NewEstimator(engine, registry)

	report, err := estimator.Estimate(context.Background(), meanAutoConfig(), batches, DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 2.83, report.Config.Kwargs[expectation.KwargMinValue])
	assert.Equal(t, 3.06, report.Config.Kwargs[expectation.KwargMaxValue])
	assert.Equal(t, false, report.Config.Kwargs[expectation.KwargStrictMin])
	assert.Equal(t, false, report.Config.Kwargs[expectation.KwargStrictMax])
	assert.False(t, report.LowConfidence)
	assert.Len(t, report.Observations, 12)

	// Round-trip: every training batch passes the resolved configuration.
	variant, err := registry.Lookup(report.Config.Type)
	require.NoError(t, err)
	for _, b := range batches {
		required, err := variant.RequiredMetrics(report.Config)
		require.NoError(t, err)
		values := make(expectations.MetricValues, len(required))
		for _, m := range required {
			v, err := engine.Resolve(context.Background(), b, m)
			require.NoError(t, err)
			values[m.Key()] = v
		}
		result, err := variant.Validate(report.Config, values)
		require.NoError(t, err)
		assert.True(t, result.Success, "batch %s", batch.IdentifierKey(b.Identifiers))
	}
}

func TestEstimateSingleBatchIsLowConfidence(t *testing.T) {
	engine := metrics.NewEngine()
	registry := expectations.NewRegistry()
	estimator := NewEstimator(engine, registry)

	report, err := estimator.Estimate(context.Background(), meanAutoConfig(),
		[]*batch.Batch{batchWithMean("only", 2.5)}, DefaultPolicy())
	require.NoError(t, err)

	assert.True(t, report.LowConfidence)
	assert.Equal(t, 2.5, report.Config.Kwargs[expectation.KwargMinValue])
	assert.Equal(t, 2.5, report.Config.Kwargs[expectation.KwargMaxValue])
}

// probeComputer counts computations so tests can assert no data was touched
type probeComputer struct {
	calls int32
}

func (p *probeComputer) Name() string                               { return metrics.MetricMean }
func (p *probeComputer) Dependencies(metric.Metric) []metric.Metric { return nil }
func (p *probeComputer) Compute(context.Context, *batch.Batch, metric.Metric, map[string]interface{}) (interface{}, error) {
	atomic.AddInt32(&p.calls, 1)
	return 0.0, nil
}

func TestEstimateNotEstimableFailsBeforeData(t *testing.T) {
	engine := metrics.NewEngine()
	probe := &probeComputer{}
	engine.Register(probe)
	registry := expectations.NewRegistry()
	estimator := NewEstimator(engine, registry)

	estimable, err := estimator.IsEstimable("expect_column_to_exist")
	require.NoError(t, err)
	assert.False(t, estimable)

	cfg := expectation.Config{
		Type:   "expect_column_to_exist",
		Kwargs: expectation.Kwargs{expectation.KwargColumn: "x"},
	}
	_, err = estimator.Estimate(context.Background(), cfg,
		[]*batch.Batch{batchWithMean("a", 1.0)}, DefaultPolicy())
	assert.ErrorIs(t, err, core.ErrNotEstimable)
	assert.Equal(t, int32(0), atomic.LoadInt32(&probe.calls))
}

func TestEstimateSkipsFailingBatches(t *testing.T) {
	engine := metrics.NewEngine()
	registry := expectations.NewRegistry()
	estimator := NewEstimator(engine, registry)

	good := batchWithMean("good", 3.0)
	// This batch lacks the target column, so its metric computation fails.
	bad := batch.New(map[string]string{"run_id": "bad"}, batch.Table{
		Columns: []string{"other"},
		Rows:    [][]interface{}{{1.0}},
	})

	report, err := estimator.Estimate(context.Background(), meanAutoConfig(),
		[]*batch.Batch{bad, good}, DefaultPolicy())
	require.NoError(t, err)

	require.Len(t, report.Skipped, 1)
	assert.Equal(t, map[string]string{"run_id": "bad"}, report.Skipped[0].Identifiers)
	assert.NotEmpty(t, report.Skipped[0].Reason)
	assert.Equal(t, 3.0, report.Config.Kwargs[expectation.KwargMinValue])
	assert.Equal(t, 3.0, report.Config.Kwargs[expectation.KwargMaxValue])
}

func TestEstimateAllBatchesFail(t *testing.T) {
	engine := metrics.NewEngine()
	registry := expectations.NewRegistry()
	estimator := NewEstimator(engine, registry)

	bad := batch.New(map[string]string{"run_id": "bad"}, batch.Table{
		Columns: []string{"other"},
		Rows:    [][]interface{}{{1.0}},
	})

	_, err := estimator.Estimate(context.Background(), meanAutoConfig(),
		[]*batch.Batch{bad}, DefaultPolicy())
	assert.ErrorIs(t, err, core.ErrEstimationData)
}

func TestEstimateNoBatches(t *testing.T) {
	estimator := NewEstimator(metrics.NewEngine(), expectations.NewRegistry())
	_, err := estimator.Estimate(context.Background(), meanAutoConfig(), nil, DefaultPolicy())
	assert.ErrorIs(t, err, core.ErrEstimationData)
}

func TestPolicyRounding(t *testing.T) {
	engine := metrics.NewEngine()
	registry := expectations.NewRegistry()
	estimator := NewEstimator(engine, registry)

	batches := []*batch.Batch{
		batchWithMean("a", 2.8349),
		batchWithMean("b", 3.0651),
	}
	report, err := estimator.Estimate(context.Background(), meanAutoConfig(), batches, Policy{Precision: 2})
	require.NoError(t, err)

	assert.Equal(t, 2.83, report.Config.Kwargs[expectation.KwargMinValue])
	assert.Equal(t, 3.07, report.Config.Kwargs[expectation.KwargMaxValue])

	// Negative precision keeps native values.
	report, err = estimator.Estimate(context.Background(), meanAutoConfig(), batches, DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, 2.8349, report.Config.Kwargs[expectation.KwargMinValue])
}
