package ports

import (
	"context"

	"tablecheck/domain/batch"
)

// ResolvedData is one table read from a backend, before it becomes a Batch.
// Identifiers carry the request identifiers plus any source-added keys
// (e.g. filename for multi-file path sources).
type ResolvedData struct {
	Table       batch.Table
	Identifiers map[string]string
}

// BatchSource reads tabular data for one request source kind. The resolver
// owns identifier validation and batch construction; sources only declare
// which identifier keys they require and read data.
type BatchSource interface {
	Kind() batch.SourceKind
	RequiredIdentifiers() []string
	Read(ctx context.Context, req batch.Request) ([]ResolvedData, error)
}
