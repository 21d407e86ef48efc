package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"tablecheck/adapters/source"
	"tablecheck/adapters/suitestore"
	"tablecheck/domain/expectation"
	"tablecheck/internal/expectations"
	"tablecheck/internal/metrics"
	"tablecheck/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCheckpoint(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "nightly.yaml", `
name: nightly
suite: taxi.demo
batch_requests:
  - source: path
    path: data/*.csv
    batch_identifiers:
      pipeline: nightly
`)

	cp, err := LoadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, "nightly", cp.Name)
	assert.Equal(t, "taxi.demo", cp.Suite)
	require.Len(t, cp.BatchRequests, 1)

	reqs := cp.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "data/*.csv", reqs[0].Path)
	assert.Equal(t, "nightly", reqs[0].BatchIdentifiers["pipeline"])
}

func TestLoadCheckpointValidation(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"missing name": `
suite: s
batch_requests: [{source: path, path: x.csv}]`,
		"missing suite": `
name: n
batch_requests: [{source: path, path: x.csv}]`,
		"no requests": `
name: n
suite: s
batch_requests: []`,
		"path without path": `
name: n
suite: s
batch_requests: [{source: path}]`,
		"query without query": `
name: n
suite: s
batch_requests: [{source: query}]`,
		"inline not allowed": `
name: n
suite: s
batch_requests: [{source: inline}]`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, "cp.yaml", content)
			_, err := LoadCheckpoint(path)
			assert.Error(t, err)
		})
	}
}

func TestCheckpointRunnerEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2019-01.csv", "trip_distance\n2.83\n")
	writeFile(t, dir, "2019-02.csv", "trip_distance\n3.06\n")

	store := suitestore.NewMemoryStore()
	suite := expectation.NewSuite("taxi.demo")
	_, err := suite.Add(expectation.Config{
		Type:   "expect_column_mean_to_be_between",
		Kwargs: expectation.Kwargs{expectation.KwargColumn: "trip_distance"},
		Meta:   map[string]interface{}{expectation.MetaAuto: true},
	})
	require.NoError(t, err)
	require.NoError(t, store.SaveSuite(context.Background(), suite))

	cpPath := writeFile(t, dir, "cp.yaml", `
name: nightly
suite: taxi.demo
batch_requests:
  - source: path
    path: `+filepath.Join(dir, "*.csv")+`
`)
	cp, err := LoadCheckpoint(cpPath)
	require.NoError(t, err)

	resolver := source.NewResolver([]ports.BatchSource{source.NewFileSource()})
	runner := NewCheckpointRunner(resolver, store, metrics.NewEngine(), expectations.NewRegistry())

	result, err := runner.Run(context.Background(), cp)
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Results, 1)
	assert.Equal(t, 2.83, result.Results[0].Config.Kwargs[expectation.KwargMinValue])
	assert.Equal(t, 3.06, result.Results[0].Config.Kwargs[expectation.KwargMaxValue])

	// The run was persisted.
	stored, err := store.GetResult(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, stored.RunID)
}
