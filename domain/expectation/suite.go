package expectation

import (
	"encoding/json"
	"fmt"

	"tablecheck/domain/core"
)

// Suite is a named, ordered, deduplicated collection of expectation
// configurations. Identity is the configuration signature (type + non-bound
// kwargs); adding an existing identity overwrites in place, preserving both
// position and count.
type Suite struct {
	Name    core.SuiteName         `json:"expectation_suite_name"`
	Configs []Config               `json:"expectations"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// NewSuite creates an empty suite
func NewSuite(name core.SuiteName) *Suite {
	return &Suite{Name: name, Meta: map[string]interface{}{}}
}

// Add inserts the configuration, or overwrites an existing entry with the
// same identity in place. Returns true when an entry was overwritten.
func (s *Suite) Add(cfg Config) (bool, error) {
	if err := cfg.Validate(); err != nil {
		return false, err
	}
	sig := cfg.Signature()
	for i, existing := range s.Configs {
		if existing.Signature() == sig {
			s.Configs[i] = cfg
			return true, nil
		}
	}
	s.Configs = append(s.Configs, cfg)
	return false, nil
}

// Remove deletes the configuration with the given identity
func (s *Suite) Remove(sig core.ConfigSignature) error {
	for i, existing := range s.Configs {
		if existing.Signature() == sig {
			s.Configs = append(s.Configs[:i], s.Configs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: no expectation with signature %s", core.ErrNotFound, sig)
}

// List returns the configurations in insertion order
func (s *Suite) List() []Config {
	out := make([]Config, len(s.Configs))
	copy(out, s.Configs)
	return out
}

// Len returns the number of configurations
func (s *Suite) Len() int {
	return len(s.Configs)
}

// ToPersistable serializes the suite. Order and meta survive the round-trip.
func (s *Suite) ToPersistable() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize suite %s: %w", s.Name, err)
	}
	return data, nil
}

// FromPersistable deserializes a suite produced by ToPersistable
func FromPersistable(data []byte) (*Suite, error) {
	var s Suite
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse suite document: %w", err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("suite document missing expectation_suite_name")
	}
	return &s, nil
}
