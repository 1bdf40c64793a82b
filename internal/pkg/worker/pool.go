// Package worker provides goroutine pool management.
//
// Coding standard: naked goroutines are forbidden. All background work goes
// through a pool with context propagation and panic recovery.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"heartlink.io/trustengine/internal/pkg/logger"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool *ants.Pool
	name string
}

// Pools is the worker pool collection.
//
// Audit is a dedicated pool for fire-and-forget audit writes so a burst of
// lifecycle work can never starve the audit trail. Lifecycle carries export
// collection and deletion purges, which run longer than request-path tasks.
type Pools struct {
	Audit     *Pool
	Lifecycle *Pool

	// serviceCtx is the service lifecycle context for detached tasks.
	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// PoolConfig contains worker pool sizing.
type PoolConfig struct {
	AuditPoolSize     int
	LifecyclePoolSize int
}

// DefaultPoolConfig returns default configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		AuditPoolSize:     50,
		LifecyclePoolSize: 10,
	}
}

// NewPools creates the worker pool collection.
func NewPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	serviceCtx, serviceCancel := context.WithCancel(ctx)

	panicHandler := func(p interface{}) {
		logger.Error("worker panic recovered",
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	auditAnts, err := ants.NewPool(cfg.AuditPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		serviceCancel()
		return nil, err
	}

	lifecycleAnts, err := ants.NewPool(cfg.LifecyclePoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(60*time.Second), // purges and exports run longer
	)
	if err != nil {
		auditAnts.Release()
		serviceCancel()
		return nil, err
	}

	return &Pools{
		Audit:         &Pool{pool: auditAnts, name: "audit"},
		Lifecycle:     &Pool{pool: lifecycleAnts, name: "lifecycle"},
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}, nil
}

// Submit submits a context-aware task.
// If the context is already cancelled, returns ctx.Err() without submitting.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return p.pool.Submit(func() {
		// Context may have been cancelled while the task was queued.
		select {
		case <-ctx.Done():
			logger.Debug("task skipped: context cancelled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			return
		default:
		}
		task(ctx)
	})
}

// SubmitDetached submits a background task bound to the service lifecycle
// context instead of a request context. Use for work that must survive the
// triggering request but still respect graceful shutdown — audit writes and
// export processing in particular.
func (p *Pools) SubmitDetached(pool *Pool, task Task) error {
	if pool == nil {
		pool = p.Audit
	}
	return pool.pool.Submit(func() {
		select {
		case <-p.serviceCtx.Done():
			logger.Debug("detached task skipped: service shutting down",
				zap.String("pool", pool.name),
			)
			return
		default:
		}
		task(p.serviceCtx)
	})
}

// Shutdown gracefully shuts down all pools.
// Cancels the service context first, then waits for running tasks.
func (p *Pools) Shutdown() {
	p.serviceCancel()

	const shutdownTimeout = 30 * time.Second
	if err := p.Audit.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("audit pool shutdown timeout", zap.Error(err))
	}
	if err := p.Lifecycle.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("lifecycle pool shutdown timeout", zap.Error(err))
	}
}

// Metrics returns pool occupancy for the health endpoint.
func (p *Pools) Metrics() map[string]interface{} {
	return map[string]interface{}{
		"audit": map[string]int{
			"running": p.Audit.pool.Running(),
			"free":    p.Audit.pool.Free(),
			"cap":     p.Audit.pool.Cap(),
		},
		"lifecycle": map[string]int{
			"running": p.Lifecycle.pool.Running(),
			"free":    p.Lifecycle.pool.Free(),
			"cap":     p.Lifecycle.pool.Cap(),
		},
	}
}
