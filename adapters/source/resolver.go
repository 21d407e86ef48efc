// Package source implements the batch resolver: it turns batch requests
// into ordered, immutable batches via pluggable per-kind sources.
package source

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tablecheck/domain/batch"
	"tablecheck/domain/core"
	"tablecheck/ports"
)

// Resolver validates requests, dispatches to the source for the request's
// kind, and returns batches in a stable order (sorted by identifier values).
type Resolver struct {
	sources map[batch.SourceKind]ports.BatchSource
	timeout time.Duration
}

// Option configures a Resolver
type Option func(*Resolver)

// WithTimeout bounds each resolution; an exceeded deadline surfaces as
// ErrTimeout instead of hanging the run.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// NewResolver creates a resolver over the given sources
func NewResolver(sources []ports.BatchSource, opts ...Option) *Resolver {
	r := &Resolver{sources: make(map[batch.SourceKind]ports.BatchSource)}
	for _, s := range sources {
		r.sources[s.Kind()] = s
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve turns a request into one or more batches. Missing required
// identifiers fail with ErrBatchSpec before any data is read; unreadable
// or empty sources fail with ErrDataUnavailable.
func (r *Resolver) Resolve(ctx context.Context, req batch.Request) ([]*batch.Batch, error) {
	src, ok := r.sources[req.Source]
	if !ok {
		return nil, core.NewBatchSpecError(fmt.Sprintf("unknown source kind %q", req.Source))
	}

	for _, key := range src.RequiredIdentifiers() {
		if _, present := req.BatchIdentifiers[key]; !present {
			return nil, core.NewBatchSpecError(fmt.Sprintf("missing required batch identifier %q", key))
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resolved, err := src.Read(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: resolving %s source", core.ErrTimeout, req.Source)
		}
		return nil, err
	}

	batches := make([]*batch.Batch, 0, len(resolved))
	totalRows := 0
	for _, data := range resolved {
		identifiers := make(map[string]string, len(req.BatchIdentifiers)+len(data.Identifiers))
		for k, v := range req.BatchIdentifiers {
			identifiers[k] = v
		}
		for k, v := range data.Identifiers {
			identifiers[k] = v
		}
		totalRows += data.Table.RowCount()
		batches = append(batches, batch.New(identifiers, data.Table))
	}

	if len(batches) == 0 || totalRows == 0 {
		return nil, core.NewDataUnavailableError(string(req.Source), fmt.Errorf("source yielded no rows"))
	}

	batch.SortBatches(batches)
	log.Printf("[Resolver] resolved %d batch(es) from %s source (%d rows)", len(batches), req.Source, totalRows)
	return batches, nil
}
