package expectation

import (
	"fmt"
	"strings"

	"tablecheck/domain/core"
)

// Kwargs holds an expectation's parameters (column, bounds, flags, ...)
type Kwargs map[string]interface{}

// Config is one expectation configuration: type + kwargs + meta.
// The persisted form and the in-memory form are the same shape, so a
// configuration produced by the estimator is indistinguishable from one
// written by hand.
type Config struct {
	Type   string                 `json:"expectation_type"`
	Kwargs Kwargs                 `json:"kwargs"`
	Meta   map[string]interface{} `json:"meta,omitempty"`
}

// Kwarg keys shared by the range-style expectation family.
const (
	KwargColumn    = "column"
	KwargMinValue  = "min_value"
	KwargMaxValue  = "max_value"
	KwargStrictMin = "strict_min"
	KwargStrictMax = "strict_max"
	KwargMostly    = "mostly"
)

// MetaAuto marks a configuration whose bounds should be estimated from
// data before validation.
const MetaAuto = "auto"

// Column returns the "column" kwarg, or "" when absent
func (c Config) Column() string {
	s, _ := c.Kwargs[KwargColumn].(string)
	return s
}

// Float reads an optional numeric kwarg. A missing or nil kwarg returns
// (nil, nil): the caller treats it as an unconstrained bound.
func (k Kwargs) Float(key string) (*float64, error) {
	raw, ok := k[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case float64:
		return &v, nil
	case float32:
		f := float64(v)
		return &f, nil
	case int:
		f := float64(v)
		return &f, nil
	case int64:
		f := float64(v)
		return &f, nil
	default:
		return nil, fmt.Errorf("kwarg %q must be numeric, got %T", key, raw)
	}
}

// Bool reads an optional boolean kwarg, defaulting to false
func (k Kwargs) Bool(key string) bool {
	v, _ := k[key].(bool)
	return v
}

// IsAuto reports whether this configuration requests parameter estimation
func (c Config) IsAuto() bool {
	if c.Meta == nil {
		return false
	}
	v, _ := c.Meta[MetaAuto].(bool)
	return v
}

// Clone returns a deep-enough copy: kwargs and meta maps are copied so the
// estimator can resolve bounds without mutating the caller's configuration.
func (c Config) Clone() Config {
	out := Config{Type: c.Type, Kwargs: make(Kwargs, len(c.Kwargs))}
	for k, v := range c.Kwargs {
		out.Kwargs[k] = v
	}
	if c.Meta != nil {
		out.Meta = make(map[string]interface{}, len(c.Meta))
		for k, v := range c.Meta {
			out.Meta[k] = v
		}
	}
	return out
}

// estimatedKwargs are excluded from configuration identity: re-estimating
// bounds must overwrite the existing suite entry, not append a new one.
var estimatedKwargs = map[string]struct{}{
	KwargMinValue:  {},
	KwargMaxValue:  {},
	KwargStrictMin: {},
	KwargStrictMax: {},
}

// Signature computes the configuration's identity within a suite:
// type + kwargs, excluding estimated bound kwargs and meta.
func (c Config) Signature() core.ConfigSignature {
	identity := map[string]interface{}{"expectation_type": c.Type}
	for k, v := range c.Kwargs {
		if _, skip := estimatedKwargs[k]; skip {
			continue
		}
		identity[k] = v
	}
	return core.ConfigSignature(core.ComputeMapHash(identity))
}

// Validate rejects structurally malformed configurations
func (c Config) Validate() error {
	if strings.TrimSpace(c.Type) == "" {
		return core.NewConfigError("(empty)", "expectation_type is required")
	}
	min, err := c.Kwargs.Float(KwargMinValue)
	if err != nil {
		return core.NewConfigError(c.Type, err.Error())
	}
	max, err := c.Kwargs.Float(KwargMaxValue)
	if err != nil {
		return core.NewConfigError(c.Type, err.Error())
	}
	if min != nil && max != nil && *min > *max {
		return core.NewConfigError(c.Type, fmt.Sprintf("min_value %v > max_value %v", *min, *max))
	}
	return nil
}
