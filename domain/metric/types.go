package metric

import (
	"fmt"
	"sort"
	"strings"

	"tablecheck/domain/core"
)

// Metric identifies one computable statistic over one batch: a name plus
// parameters (e.g. the target column). Computation is pure given
// (batch, parameters); dependencies are declared by the computer, not here.
type Metric struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// ColumnMetric is shorthand for a metric parameterized only by a column name
func ColumnMetric(name, column string) Metric {
	return Metric{Name: name, Params: map[string]interface{}{"column": column}}
}

// TableMetric is shorthand for a metric with no parameters
func TableMetric(name string) Metric {
	return Metric{Name: name}
}

// Column returns the "column" parameter, if present
func (m Metric) Column() (string, bool) {
	v, ok := m.Params["column"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Key renders a deterministic identity for the metric (sorted params)
func (m Metric) Key() string {
	if len(m.Params) == 0 {
		return m.Name
	}
	keys := make([]string, 0, len(m.Params))
	for k := range m.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m.Params[k]))
	}
	return m.Name + "(" + strings.Join(parts, ",") + ")"
}

// CacheKey scopes the metric identity to one batch. Memoization uses this
// so values computed for one batch can never leak into another.
func (m Metric) CacheKey(fp core.BatchFingerprint) string {
	return fp.String() + "/" + m.Key()
}
