package expectations

import (
	"fmt"

	"tablecheck/domain/core"
	"tablecheck/domain/expectation"
	"tablecheck/domain/metric"
	"tablecheck/domain/validation"
	"tablecheck/internal/metrics"
)

func builtinVariants() []Expectation {
	variants := builtinRangeVariants()
	variants = append(variants,
		columnToExist{},
		valuesNotNull{},
	)
	return variants
}

// columnToExist asserts the column is declared by the batch. There is no
// continuous parameter to fit, so estimation is unsupported.
type columnToExist struct{}

func (columnToExist) Type() string             { return "expect_column_to_exist" }
func (columnToExist) SupportsEstimation() bool { return false }

func (e columnToExist) RequiredMetrics(cfg expectation.Config) ([]metric.Metric, error) {
	if cfg.Column() == "" {
		return nil, core.NewConfigError(e.Type(), "kwarg column is required")
	}
	return []metric.Metric{metric.ColumnMetric(metrics.MetricColumnExists, cfg.Column())}, nil
}

func (e columnToExist) Validate(cfg expectation.Config, values MetricValues) (validation.ExpectationResult, error) {
	if cfg.Column() == "" {
		return validation.ExpectationResult{}, core.NewConfigError(e.Type(), "kwarg column is required")
	}
	exists, _ := values.Get(metric.ColumnMetric(metrics.MetricColumnExists, cfg.Column())).(bool)
	return validation.ExpectationResult{
		Config:  cfg,
		Success: exists,
		Result:  map[string]interface{}{"observed_value": exists},
	}, nil
}

// valuesNotNull asserts at least a `mostly` fraction (default 1.0) of the
// column's cells are non-null.
type valuesNotNull struct{}

func (valuesNotNull) Type() string             { return "expect_column_values_to_not_be_null" }
func (valuesNotNull) SupportsEstimation() bool { return false }

func (e valuesNotNull) RequiredMetrics(cfg expectation.Config) ([]metric.Metric, error) {
	if cfg.Column() == "" {
		return nil, core.NewConfigError(e.Type(), "kwarg column is required")
	}
	return []metric.Metric{
		metric.TableMetric(metrics.MetricRowCount),
		metric.ColumnMetric(metrics.MetricNonNullCount, cfg.Column()),
	}, nil
}

func (e valuesNotNull) Validate(cfg expectation.Config, values MetricValues) (validation.ExpectationResult, error) {
	if cfg.Column() == "" {
		return validation.ExpectationResult{}, core.NewConfigError(e.Type(), "kwarg column is required")
	}

	mostly := 1.0
	if m, err := cfg.Kwargs.Float(expectation.KwargMostly); err != nil {
		return validation.ExpectationResult{}, core.NewConfigError(e.Type(), err.Error())
	} else if m != nil {
		if *m < 0 || *m > 1 {
			return validation.ExpectationResult{}, core.NewConfigError(e.Type(),
				fmt.Sprintf("mostly must be in [0,1], got %v", *m))
		}
		mostly = *m
	}

	total, _ := values.Get(metric.TableMetric(metrics.MetricRowCount)).(float64)
	nonNull, _ := values.Get(metric.ColumnMetric(metrics.MetricNonNullCount, cfg.Column())).(float64)

	if total == 0 {
		return validation.ExpectationResult{
			Config:  cfg,
			Success: false,
			Result: map[string]interface{}{
				"observed_value": nil,
				"details":        "no rows in batch",
			},
		}, nil
	}

	ratio := nonNull / total
	return validation.ExpectationResult{
		Config:  cfg,
		Success: ratio >= mostly,
		Result: map[string]interface{}{
			"observed_value":   ratio,
			"element_count":    total,
			"unexpected_count": total - nonNull,
		},
	}, nil
}
