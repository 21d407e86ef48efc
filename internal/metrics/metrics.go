// Package metrics implements the metric engine: named, parameterized, pure
// computations over a single batch, with per-run memoization.
//
// Built-in metric names:
//
//	table.row_count            table.columns
//	column.exists              column.distinct_count
//	column.values.nonnull      column.values.numeric
//	column.values.nonnull_count  column.values.null_count
//	column.mean  column.min  column.max  column.sum
//	column.median  column.stdev  column.quantile (param q)
//
// Numeric aggregates return nil when the column has no usable values;
// expectations turn that into a "no data" failure rather than an error.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tablecheck/domain/batch"
	"tablecheck/domain/core"
	"tablecheck/domain/metric"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// Built-in metric names
const (
	MetricRowCount      = "table.row_count"
	MetricTableColumns  = "table.columns"
	MetricColumnExists  = "column.exists"
	MetricDistinctCount = "column.distinct_count"
	MetricNonNullValues = "column.values.nonnull"
	MetricNumericValues = "column.values.numeric"
	MetricNonNullCount  = "column.values.nonnull_count"
	MetricNullCount     = "column.values.null_count"
	MetricMean          = "column.mean"
	MetricMin           = "column.min"
	MetricMax           = "column.max"
	MetricSum           = "column.sum"
	MetricMedian        = "column.median"
	MetricStdev         = "column.stdev"
	MetricQuantile      = "column.quantile"
)

func builtinComputers() []Computer {
	computers := []Computer{
		rowCountComputer{},
		tableColumnsComputer{},
		columnExistsComputer{},
		nonNullValuesComputer{},
		numericValuesComputer{},
		nonNullCountComputer{},
		nullCountComputer{},
		distinctCountComputer{},
		quantileComputer{},
	}
	for name, fn := range aggregates {
		computers = append(computers, aggregateComputer{name: name, fn: fn})
	}
	return computers
}

// aggregates maps metric names onto montanaflynn/stats reducers
var aggregates = map[string]func(stats.Float64Data) (float64, error){
	MetricMean:   stats.Mean,
	MetricMin:    stats.Min,
	MetricMax:    stats.Max,
	MetricSum:    stats.Sum,
	MetricMedian: stats.Median,
	MetricStdev:  stats.StandardDeviationSample,
}

type rowCountComputer struct{}

func (rowCountComputer) Name() string                                 { return MetricRowCount }
func (rowCountComputer) Dependencies(metric.Metric) []metric.Metric   { return nil }
func (rowCountComputer) Compute(_ context.Context, b *batch.Batch, _ metric.Metric, _ map[string]interface{}) (interface{}, error) {
	return float64(b.Table.RowCount()), nil
}

type tableColumnsComputer struct{}

func (tableColumnsComputer) Name() string                               { return MetricTableColumns }
func (tableColumnsComputer) Dependencies(metric.Metric) []metric.Metric { return nil }
func (tableColumnsComputer) Compute(_ context.Context, b *batch.Batch, _ metric.Metric, _ map[string]interface{}) (interface{}, error) {
	columns := make([]string, len(b.Table.Columns))
	copy(columns, b.Table.Columns)
	return columns, nil
}

type columnExistsComputer struct{}

func (columnExistsComputer) Name() string { return MetricColumnExists }
func (columnExistsComputer) Dependencies(metric.Metric) []metric.Metric {
	return []metric.Metric{metric.TableMetric(MetricTableColumns)}
}
func (columnExistsComputer) Compute(_ context.Context, _ *batch.Batch, m metric.Metric, deps map[string]interface{}) (interface{}, error) {
	column, ok := m.Column()
	if !ok {
		return nil, core.NewMetricResolutionError(m.Name, "missing column parameter")
	}
	columns, _ := deps[metric.TableMetric(MetricTableColumns).Key()].([]string)
	for _, c := range columns {
		if c == column {
			return true, nil
		}
	}
	return false, nil
}

type nonNullValuesComputer struct{}

func (nonNullValuesComputer) Name() string                               { return MetricNonNullValues }
func (nonNullValuesComputer) Dependencies(metric.Metric) []metric.Metric { return nil }
func (nonNullValuesComputer) Compute(_ context.Context, b *batch.Batch, m metric.Metric, _ map[string]interface{}) (interface{}, error) {
	column, ok := m.Column()
	if !ok {
		return nil, core.NewMetricResolutionError(m.Name, "missing column parameter")
	}
	cells, err := b.Table.ColumnValues(column)
	if err != nil {
		return nil, core.NewMetricResolutionError(m.Name, err.Error())
	}
	values := make([]interface{}, 0, len(cells))
	for _, cell := range cells {
		if cell == nil {
			continue
		}
		if s, isStr := cell.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		values = append(values, cell)
	}
	return values, nil
}

type numericValuesComputer struct{}

func (numericValuesComputer) Name() string { return MetricNumericValues }
func (numericValuesComputer) Dependencies(m metric.Metric) []metric.Metric {
	return []metric.Metric{{Name: MetricNonNullValues, Params: m.Params}}
}
func (numericValuesComputer) Compute(_ context.Context, _ *batch.Batch, m metric.Metric, deps map[string]interface{}) (interface{}, error) {
	raw, _ := deps[metric.Metric{Name: MetricNonNullValues, Params: m.Params}.Key()].([]interface{})
	values := make([]float64, 0, len(raw))
	for _, cell := range raw {
		f, ok := coerceFloat(cell)
		if !ok {
			return nil, core.NewMetricResolutionError(m.Name,
				fmt.Sprintf("non-numeric value %v in column", cell))
		}
		values = append(values, f)
	}
	return values, nil
}

type nonNullCountComputer struct{}

func (nonNullCountComputer) Name() string { return MetricNonNullCount }
func (nonNullCountComputer) Dependencies(m metric.Metric) []metric.Metric {
	return []metric.Metric{{Name: MetricNonNullValues, Params: m.Params}}
}
func (nonNullCountComputer) Compute(_ context.Context, _ *batch.Batch, m metric.Metric, deps map[string]interface{}) (interface{}, error) {
	raw, _ := deps[metric.Metric{Name: MetricNonNullValues, Params: m.Params}.Key()].([]interface{})
	return float64(len(raw)), nil
}

type nullCountComputer struct{}

func (nullCountComputer) Name() string { return MetricNullCount }
func (nullCountComputer) Dependencies(m metric.Metric) []metric.Metric {
	return []metric.Metric{
		metric.TableMetric(MetricRowCount),
		{Name: MetricNonNullCount, Params: m.Params},
	}
}
func (nullCountComputer) Compute(_ context.Context, _ *batch.Batch, m metric.Metric, deps map[string]interface{}) (interface{}, error) {
	total, _ := deps[metric.TableMetric(MetricRowCount).Key()].(float64)
	nonNull, _ := deps[metric.Metric{Name: MetricNonNullCount, Params: m.Params}.Key()].(float64)
	return total - nonNull, nil
}

type distinctCountComputer struct{}

func (distinctCountComputer) Name() string { return MetricDistinctCount }
func (distinctCountComputer) Dependencies(m metric.Metric) []metric.Metric {
	return []metric.Metric{{Name: MetricNonNullValues, Params: m.Params}}
}
func (distinctCountComputer) Compute(_ context.Context, _ *batch.Batch, m metric.Metric, deps map[string]interface{}) (interface{}, error) {
	raw, _ := deps[metric.Metric{Name: MetricNonNullValues, Params: m.Params}.Key()].([]interface{})
	seen := make(map[string]struct{}, len(raw))
	for _, cell := range raw {
		seen[fmt.Sprintf("%v", cell)] = struct{}{}
	}
	return float64(len(seen)), nil
}

// aggregateComputer adapts a montanaflynn/stats reducer to the Computer
// interface. Returns nil (not an error) when the column has no usable
// values so expectations can report "no data" instead of raising.
type aggregateComputer struct {
	name string
	fn   func(stats.Float64Data) (float64, error)
}

func (c aggregateComputer) Name() string { return c.name }
func (c aggregateComputer) Dependencies(m metric.Metric) []metric.Metric {
	return []metric.Metric{{Name: MetricNumericValues, Params: m.Params}}
}
func (c aggregateComputer) Compute(_ context.Context, _ *batch.Batch, m metric.Metric, deps map[string]interface{}) (interface{}, error) {
	values, _ := deps[metric.Metric{Name: MetricNumericValues, Params: m.Params}.Key()].([]float64)
	if len(values) == 0 {
		return nil, nil
	}
	v, err := c.fn(stats.Float64Data(values))
	if err != nil {
		return nil, core.NewMetricResolutionError(c.name, err.Error())
	}
	return v, nil
}

type quantileComputer struct{}

func (quantileComputer) Name() string { return MetricQuantile }
func (quantileComputer) Dependencies(m metric.Metric) []metric.Metric {
	return []metric.Metric{{Name: MetricNumericValues, Params: columnOnlyParams(m)}}
}
func (quantileComputer) Compute(_ context.Context, _ *batch.Batch, m metric.Metric, deps map[string]interface{}) (interface{}, error) {
	q, ok := coerceFloat(m.Params["q"])
	if !ok || q < 0 || q > 1 {
		return nil, core.NewMetricResolutionError(m.Name, "parameter q must be in [0,1]")
	}
	values, _ := deps[metric.Metric{Name: MetricNumericValues, Params: columnOnlyParams(m)}.Key()].([]float64)
	if len(values) == 0 {
		return nil, nil
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stat.Quantile(q, stat.Empirical, sorted, nil), nil
}

func columnOnlyParams(m metric.Metric) map[string]interface{} {
	column, _ := m.Column()
	return map[string]interface{}{"column": column}
}

func coerceFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
