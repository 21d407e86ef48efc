package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"tablecheck/adapters/source"
	"tablecheck/adapters/suitestore"
	"tablecheck/domain/batch"
	"tablecheck/domain/metric"
	"tablecheck/domain/validation"
	"tablecheck/internal/expectations"
	"tablecheck/internal/metrics"
	"tablecheck/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	resolver := source.NewResolver([]ports.BatchSource{source.NewInlineSource()})
	server := NewServer(resolver, suitestore.NewMemoryStore(), metrics.NewEngine(), expectations.NewRegistry())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, payload string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(payload))
	require.NoError(t, err)
	return resp
}

func TestAPISuiteLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/suites", `{"expectation_suite_name": "taxi.demo", "expectations": []}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/suites/taxi.demo/expectations", `{
		"expectation_type": "expect_column_mean_to_be_between",
		"kwargs": {"column": "trip_distance", "min_value": 2.83, "max_value": 3.06}
	}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/suites/taxi.demo")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var suite map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&suite))
	assert.Equal(t, "taxi.demo", suite["expectation_suite_name"])
}

func TestAPIGetMissingSuite(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/suites/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIValidateInlineBatch(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/suites", `{"expectation_suite_name": "demo", "expectations": [
		{"expectation_type": "expect_column_mean_to_be_between",
		 "kwargs": {"column": "x", "min_value": 1.0, "max_value": 3.0}}
	]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/suites/demo/validate", `{
		"batch_request": {
			"source": "inline",
			"data": {"columns": ["x"], "rows": [[1.5], [2.5]]},
			"batch_identifiers": {"run_id": "t"}
		}
	}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result validation.SuiteResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Success)
	require.Len(t, result.Results, 1)
	assert.Equal(t, 2.0, result.Results[0].Result["observed_value"])

	// The result is retrievable by run id.
	getResp, err := http.Get(ts.URL + "/results/" + result.RunID.String())
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestAPIEstimate(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/estimate", `{
		"expectation_config": {
			"expectation_type": "expect_column_mean_to_be_between",
			"kwargs": {"column": "x"}
		},
		"batch_request": {
			"source": "inline",
			"data": {"columns": ["x"], "rows": [[2.83], [3.06]]}
		}
	}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	cfg := report["expectation_config"].(map[string]interface{})
	kwargs := cfg["kwargs"].(map[string]interface{})
	assert.InDelta(t, 2.945, kwargs["min_value"].(float64), 1e-9)
	assert.InDelta(t, 2.945, kwargs["max_value"].(float64), 1e-9)
}

// countingMeanComputer replaces column.mean and records actual computations
type countingMeanComputer struct {
	calls int32
}

func (c *countingMeanComputer) Name() string                               { return "column.mean" }
func (c *countingMeanComputer) Dependencies(metric.Metric) []metric.Metric { return nil }
func (c *countingMeanComputer) Compute(context.Context, *batch.Batch, metric.Metric, map[string]interface{}) (interface{}, error) {
	atomic.AddInt32(&c.calls, 1)
	return 2.0, nil
}

func TestAPIValidationRunsDoNotShareMetricValues(t *testing.T) {
	engine := metrics.NewEngine()
	counter := &countingMeanComputer{}
	engine.Register(counter)

	resolver := source.NewResolver([]ports.BatchSource{source.NewInlineSource()})
	server := NewServer(resolver, suitestore.NewMemoryStore(), engine, expectations.NewRegistry())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	resp := postJSON(t, ts.URL+"/suites", `{"expectation_suite_name": "demo", "expectations": [
		{"expectation_type": "expect_column_mean_to_be_between",
		 "kwargs": {"column": "x", "min_value": 1.0, "max_value": 3.0}}
	]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Two independent runs over an identical batch (same fingerprint).
	// Each run must compute its own metrics, not inherit the other's.
	body := `{"batch_request": {"source": "inline", "data": {"columns": ["x"], "rows": [[2.0]]}}}`
	for i := 0; i < 2; i++ {
		resp = postJSON(t, ts.URL+"/suites/demo/validate", body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&counter.calls))
}

func TestAPIEstimateNotEstimable(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/estimate", `{
		"expectation_config": {
			"expectation_type": "expect_column_to_exist",
			"kwargs": {"column": "x"}
		},
		"batch_request": {
			"source": "inline",
			"data": {"columns": ["x"], "rows": [[1.0]]}
		}
	}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
