package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tablecheck/domain/batch"
	"tablecheck/domain/core"
	"tablecheck/domain/metric"

	"golang.org/x/sync/singleflight"
)

// Computer computes one named metric over a batch. Dependencies are
// declared per invocation so parameterized metrics (column, quantile) can
// depend on equally parameterized upstream metrics.
type Computer interface {
	Name() string
	Dependencies(m metric.Metric) []metric.Metric
	Compute(ctx context.Context, b *batch.Batch, m metric.Metric, deps map[string]interface{}) (interface{}, error)
}

// Engine resolves metric dependency graphs and memoizes results within a
// run. The cache is keyed by (batch fingerprint, metric identity) so values
// from one batch can never answer for another, and a singleflight group
// guarantees at-most-one computation per key under concurrent access.
type Engine struct {
	mu        sync.RWMutex
	computers map[string]Computer

	cacheMu sync.RWMutex
	cache   map[string]interface{}
	group   singleflight.Group
}

// NewEngine creates an engine with the built-in metric computers registered
func NewEngine() *Engine {
	e := &Engine{
		computers: make(map[string]Computer),
		cache:     make(map[string]interface{}),
	}
	for _, c := range builtinComputers() {
		e.Register(c)
	}
	return e
}

// Register adds a computer; later registrations win
func (e *Engine) Register(c Computer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.computers[c.Name()] = c
}

// Scoped returns an engine sharing this engine's computers but with an
// empty cache. Long-lived callers hand one scoped engine to each
// validation run so memoized values never survive the run that computed
// them.
func (e *Engine) Scoped() *Engine {
	e.mu.RLock()
	defer e.mu.RUnlock()
	scoped := &Engine{
		computers: make(map[string]Computer, len(e.computers)),
		cache:     make(map[string]interface{}),
	}
	for name, c := range e.computers {
		scoped.computers[name] = c
	}
	return scoped
}

// Resolve computes the metric for the batch, resolving dependencies first.
// Identical (batch, metric, params) requests within this engine's lifetime
// are answered from cache.
func (e *Engine) Resolve(ctx context.Context, b *batch.Batch, m metric.Metric) (interface{}, error) {
	return e.resolve(ctx, b, m, map[string]bool{})
}

func (e *Engine) resolve(ctx context.Context, b *batch.Batch, m metric.Metric, path map[string]bool) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapCtxErr(m, err)
	}

	if path[m.Key()] {
		return nil, core.NewMetricResolutionError(m.Name, "dependency cycle detected at "+m.Key())
	}
	path[m.Key()] = true
	defer delete(path, m.Key())

	key := m.CacheKey(b.Fingerprint)
	if v, ok := e.cached(key); ok {
		return v, nil
	}

	e.mu.RLock()
	computer, ok := e.computers[m.Name]
	e.mu.RUnlock()
	if !ok {
		return nil, core.NewMetricResolutionError(m.Name, "unsupported metric for this backend")
	}

	depValues := make(map[string]interface{})
	for _, dep := range computer.Dependencies(m) {
		v, err := e.resolve(ctx, b, dep, path)
		if err != nil {
			return nil, err
		}
		depValues[dep.Key()] = v
	}

	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		if cached, ok := e.cached(key); ok {
			return cached, nil
		}
		value, err := computer.Compute(ctx, b, m, depValues)
		if err != nil {
			return nil, err
		}
		e.cacheMu.Lock()
		e.cache[key] = value
		e.cacheMu.Unlock()
		return value, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, wrapCtxErr(m, ctxErr)
		}
		return nil, err
	}
	return v, nil
}

func (e *Engine) cached(key string) (interface{}, bool) {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()
	v, ok := e.cache[key]
	return v, ok
}

func wrapCtxErr(m metric.Metric, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: metric %s", core.ErrTimeout, m.Key())
	}
	return fmt.Errorf("metric %s canceled: %w", m.Key(), err)
}
