package ports

import (
	"context"

	"tablecheck/domain/batch"
)

// BatchResolver turns a batch request into ordered, immutable batches
type BatchResolver interface {
	Resolve(ctx context.Context, req batch.Request) ([]*batch.Batch, error)
}
