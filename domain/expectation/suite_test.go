package expectation

import (
	"testing"

	"tablecheck/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meanBetween(column string, min, max float64) Config {
	return Config{
		Type: "expect_column_mean_to_be_between",
		Kwargs: Kwargs{
			KwargColumn:   column,
			KwargMinValue: min,
			KwargMaxValue: max,
		},
	}
}

func TestSuiteAddOverwritesInPlace(t *testing.T) {
	suite := NewSuite("demo")

	_, err := suite.Add(meanBetween("a", 1, 2))
	require.NoError(t, err)
	_, err = suite.Add(meanBetween("b", 1, 2))
	require.NoError(t, err)

	// Same type+column with different bounds is the same identity.
	overwritten, err := suite.Add(meanBetween("a", 5, 9))
	require.NoError(t, err)
	assert.True(t, overwritten)

	require.Equal(t, 2, suite.Len())
	configs := suite.List()
	assert.Equal(t, "a", configs[0].Column())
	assert.Equal(t, 5.0, configs[0].Kwargs[KwargMinValue])
	assert.Equal(t, "b", configs[1].Column())
}

func TestSuiteSignatureIgnoresEstimatedBounds(t *testing.T) {
	a := meanBetween("x", 1, 2)
	b := meanBetween("x", 3, 4)
	b.Kwargs[KwargStrictMin] = true

	assert.Equal(t, a.Signature(), b.Signature())

	c := meanBetween("y", 1, 2)
	assert.NotEqual(t, a.Signature(), c.Signature())

	d := a.Clone()
	d.Type = "expect_column_median_to_be_between"
	assert.NotEqual(t, a.Signature(), d.Signature())
}

func TestSuiteRemove(t *testing.T) {
	suite := NewSuite("demo")
	cfg := meanBetween("a", 1, 2)
	_, err := suite.Add(cfg)
	require.NoError(t, err)

	require.NoError(t, suite.Remove(cfg.Signature()))
	assert.Equal(t, 0, suite.Len())

	err = suite.Remove(cfg.Signature())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSuitePersistableRoundTrip(t *testing.T) {
	suite := NewSuite("taxi.demo")
	suite.Meta["created_by"] = "onboarding"

	first := meanBetween("trip_distance", 2.83, 3.06)
	first.Meta = map[string]interface{}{"notes": "fitted from 12 batches"}
	_, err := suite.Add(first)
	require.NoError(t, err)
	_, err = suite.Add(Config{
		Type:   "expect_column_to_exist",
		Kwargs: Kwargs{KwargColumn: "passenger_count"},
	})
	require.NoError(t, err)

	data, err := suite.ToPersistable()
	require.NoError(t, err)

	loaded, err := FromPersistable(data)
	require.NoError(t, err)

	assert.Equal(t, suite.Name, loaded.Name)
	require.Equal(t, suite.Len(), loaded.Len())
	for i, cfg := range suite.List() {
		got := loaded.List()[i]
		assert.Equal(t, cfg.Type, got.Type)
		assert.Equal(t, cfg.Signature(), got.Signature())
	}
	assert.Equal(t, "fitted from 12 batches", loaded.List()[0].Meta["notes"])
}

func TestConfigValidateRejectsInvertedBounds(t *testing.T) {
	cfg := meanBetween("a", 9, 1)
	err := cfg.Validate()
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestConfigFloatCoercions(t *testing.T) {
	k := Kwargs{"min_value": 3, "max_value": nil, "bad": "nope"}

	min, err := k.Float("min_value")
	require.NoError(t, err)
	require.NotNil(t, min)
	assert.Equal(t, 3.0, *min)

	max, err := k.Float("max_value")
	require.NoError(t, err)
	assert.Nil(t, max)

	missing, err := k.Float("absent")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = k.Float("bad")
	assert.Error(t, err)
}
