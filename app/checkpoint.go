package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"tablecheck/domain/batch"
	"tablecheck/domain/core"
	"tablecheck/domain/validation"
	"tablecheck/internal/expectations"
	"tablecheck/internal/metrics"
	"tablecheck/ports"

	"gopkg.in/yaml.v3"
)

// CheckpointRequest is one batch request in a checkpoint file
type CheckpointRequest struct {
	Source           string            `yaml:"source"`
	Path             string            `yaml:"path,omitempty"`
	Query            string            `yaml:"query,omitempty"`
	BatchIdentifiers map[string]string `yaml:"batch_identifiers,omitempty"`
}

// Checkpoint is a named, persisted run configuration: a suite plus the
// batch requests to validate it against.
type Checkpoint struct {
	Name          string              `yaml:"name"`
	Suite         string              `yaml:"suite"`
	BatchRequests []CheckpointRequest `yaml:"batch_requests"`
}

// LoadCheckpoint reads and validates a checkpoint YAML file
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}
	var cp Checkpoint
	if err := yaml.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", path, err)
	}
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Validate rejects structurally incomplete checkpoints
func (c *Checkpoint) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("checkpoint.name is required")
	}
	if strings.TrimSpace(c.Suite) == "" {
		return fmt.Errorf("checkpoint.suite is required")
	}
	if len(c.BatchRequests) == 0 {
		return fmt.Errorf("checkpoint.batch_requests must be non-empty")
	}
	for i, req := range c.BatchRequests {
		kind := batch.SourceKind(strings.TrimSpace(req.Source))
		switch kind {
		case batch.SourcePath:
			if strings.TrimSpace(req.Path) == "" {
				return fmt.Errorf("checkpoint.batch_requests[%d] path source requires path", i)
			}
		case batch.SourceQuery:
			if strings.TrimSpace(req.Query) == "" {
				return fmt.Errorf("checkpoint.batch_requests[%d] query source requires query", i)
			}
		case "":
			return fmt.Errorf("checkpoint.batch_requests[%d].source is required", i)
		default:
			return fmt.Errorf("checkpoint.batch_requests[%d].source %q is not supported in checkpoints", i, req.Source)
		}
	}
	return nil
}

// Requests converts the checkpoint's YAML requests into batch requests
func (c *Checkpoint) Requests() []batch.Request {
	out := make([]batch.Request, 0, len(c.BatchRequests))
	for _, req := range c.BatchRequests {
		out = append(out, batch.Request{
			Source:           batch.SourceKind(req.Source),
			Path:             req.Path,
			Query:            req.Query,
			BatchIdentifiers: req.BatchIdentifiers,
		})
	}
	return out
}

// CheckpointRunner executes checkpoints: resolve every request, bind the
// batches, run the suite, persist the result.
type CheckpointRunner struct {
	resolver ports.BatchResolver
	store    ports.SuiteStore
	engine   *metrics.Engine
	registry *expectations.Registry
}

// NewCheckpointRunner creates a checkpoint runner
func NewCheckpointRunner(resolver ports.BatchResolver, store ports.SuiteStore, engine *metrics.Engine, registry *expectations.Registry) *CheckpointRunner {
	return &CheckpointRunner{resolver: resolver, store: store, engine: engine, registry: registry}
}

// Run executes the checkpoint and saves the validation result
func (r *CheckpointRunner) Run(ctx context.Context, cp *Checkpoint) (*validation.SuiteResult, error) {
	suiteName, err := core.ParseSuiteName(cp.Suite)
	if err != nil {
		return nil, err
	}
	suite, err := r.store.GetSuite(ctx, suiteName)
	if err != nil {
		return nil, err
	}

	var batches []*batch.Batch
	for _, req := range cp.Requests() {
		resolved, err := r.resolver.Resolve(ctx, req)
		if err != nil {
			return nil, err
		}
		batches = append(batches, resolved...)
	}

	validator := NewValidator(suite, r.engine, r.registry, r.store)
	if err := validator.BindBatches(batches); err != nil {
		return nil, err
	}
	result, err := validator.RunValidation(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.store.SaveResult(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}
