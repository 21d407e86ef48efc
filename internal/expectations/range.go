package expectations

import (
	"tablecheck/domain/core"
	"tablecheck/domain/expectation"
	"tablecheck/domain/metric"
	"tablecheck/domain/validation"
	"tablecheck/internal/metrics"
)

// rangeExpectation is the shared implementation of the *_to_be_between
// family: one observed statistic checked against an optional closed or
// open interval. A nil bound is vacuously satisfied on that side.
type rangeExpectation struct {
	typeName   string
	metricName string
	tableLevel bool
}

func builtinRangeVariants() []Expectation {
	return []Expectation{
		rangeExpectation{"expect_column_mean_to_be_between", metrics.MetricMean, false},
		rangeExpectation{"expect_column_min_to_be_between", metrics.MetricMin, false},
		rangeExpectation{"expect_column_max_to_be_between", metrics.MetricMax, false},
		rangeExpectation{"expect_column_sum_to_be_between", metrics.MetricSum, false},
		rangeExpectation{"expect_column_median_to_be_between", metrics.MetricMedian, false},
		rangeExpectation{"expect_column_stdev_to_be_between", metrics.MetricStdev, false},
		rangeExpectation{"expect_column_distinct_count_to_be_between", metrics.MetricDistinctCount, false},
		rangeExpectation{"expect_table_row_count_to_be_between", metrics.MetricRowCount, true},
	}
}

func (e rangeExpectation) Type() string             { return e.typeName }
func (e rangeExpectation) SupportsEstimation() bool { return true }

func (e rangeExpectation) baseMetric(cfg expectation.Config) (metric.Metric, error) {
	if e.tableLevel {
		return metric.TableMetric(e.metricName), nil
	}
	column := cfg.Column()
	if column == "" {
		return metric.Metric{}, core.NewConfigError(e.typeName, "kwarg column is required")
	}
	return metric.ColumnMetric(e.metricName, column), nil
}

// BaseMetric is the per-batch statistic collected during estimation
func (e rangeExpectation) BaseMetric(cfg expectation.Config) (metric.Metric, error) {
	return e.baseMetric(cfg)
}

func (e rangeExpectation) RequiredMetrics(cfg expectation.Config) ([]metric.Metric, error) {
	m, err := e.baseMetric(cfg)
	if err != nil {
		return nil, err
	}
	return []metric.Metric{m}, nil
}

func (e rangeExpectation) Validate(cfg expectation.Config, values MetricValues) (validation.ExpectationResult, error) {
	if err := cfg.Validate(); err != nil {
		return validation.ExpectationResult{}, err
	}
	m, err := e.baseMetric(cfg)
	if err != nil {
		return validation.ExpectationResult{}, err
	}

	observed := values.Get(m)
	if observed == nil {
		// Batch had no usable values for this column: a failure with an
		// explicit observation, not an error.
		return validation.ExpectationResult{
			Config:  cfg,
			Success: false,
			Result: map[string]interface{}{
				"observed_value": nil,
				"details":        "no non-null values in batch",
			},
		}, nil
	}

	value, ok := observed.(float64)
	if !ok {
		return validation.ExpectationResult{}, core.NewMetricResolutionError(m.Name, "observed value is not numeric")
	}

	success, err := InBounds(value, cfg.Kwargs)
	if err != nil {
		return validation.ExpectationResult{}, err
	}

	return validation.ExpectationResult{
		Config:  cfg,
		Success: success,
		Result:  map[string]interface{}{"observed_value": value},
	}, nil
}

// InBounds applies the interval check shared by the range family:
// nil bounds pass vacuously, strict flags open the interval on that side.
func InBounds(value float64, kwargs expectation.Kwargs) (bool, error) {
	min, err := kwargs.Float(expectation.KwargMinValue)
	if err != nil {
		return false, core.NewConfigError("range", err.Error())
	}
	max, err := kwargs.Float(expectation.KwargMaxValue)
	if err != nil {
		return false, core.NewConfigError("range", err.Error())
	}

	if min != nil {
		if kwargs.Bool(expectation.KwargStrictMin) {
			if value <= *min {
				return false, nil
			}
		} else if value < *min {
			return false, nil
		}
	}
	if max != nil {
		if kwargs.Bool(expectation.KwargStrictMax) {
			if value >= *max {
				return false, nil
			}
		} else if value > *max {
			return false, nil
		}
	}
	return true, nil
}
