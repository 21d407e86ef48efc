package source

import (
	"context"

	"tablecheck/domain/batch"
	"tablecheck/domain/core"
	"tablecheck/ports"
)

// InlineSource serves in-memory payloads carried on the request itself.
// Required identifier keys are declared by the caller at construction time
// (the data connector collaborator decides them, not the core).
type InlineSource struct {
	requiredIdentifiers []string
}

// NewInlineSource creates an inline source requiring the given identifier keys
func NewInlineSource(requiredIdentifiers ...string) *InlineSource {
	return &InlineSource{requiredIdentifiers: requiredIdentifiers}
}

func (s *InlineSource) Kind() batch.SourceKind { return batch.SourceInline }

func (s *InlineSource) RequiredIdentifiers() []string { return s.requiredIdentifiers }

func (s *InlineSource) Read(_ context.Context, req batch.Request) ([]ports.ResolvedData, error) {
	if req.Data == nil {
		return nil, core.NewBatchSpecError("inline request carries no data payload")
	}
	return []ports.ResolvedData{{Table: *req.Data}}, nil
}
