package suitestore

import (
	"context"
	"path/filepath"
	"testing"

	"tablecheck/domain/core"
	"tablecheck/domain/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltStoreSuiteRoundTrip(t *testing.T) {
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "suites.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	suite := demoSuite("taxi.demo")
	require.NoError(t, store.SaveSuite(ctx, suite))

	loaded, err := store.GetSuite(ctx, "taxi.demo")
	require.NoError(t, err)
	require.Equal(t, suite.Len(), loaded.Len())
	for i, cfg := range suite.List() {
		assert.Equal(t, cfg.Signature(), loaded.List()[i].Signature())
	}

	names, err := store.ListSuites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.SuiteName{"taxi.demo"}, names)

	require.NoError(t, store.DeleteSuite(ctx, "taxi.demo"))
	_, err = store.GetSuite(ctx, "taxi.demo")
	assert.ErrorIs(t, err, core.ErrSuiteNotFound)
}

func TestBoltStoreResults(t *testing.T) {
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "suites.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	result := validation.NewSuiteResult(core.NewRunID(), "taxi.demo", nil)
	require.NoError(t, store.SaveResult(ctx, result))

	loaded, err := store.GetResult(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, result.SuiteName, loaded.SuiteName)

	_, err = store.GetResult(ctx, core.NewRunID())
	assert.ErrorIs(t, err, core.ErrNotFound)
}
