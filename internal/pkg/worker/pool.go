// Package worker provides goroutine pool management.
//
// Naked goroutines are forbidden in this codebase: all concurrency goes
// through a Pool with context propagation, so shutdown and panic recovery
// are uniform. Each brand queue owns one Pool sized to the vendor's
// concurrency cap.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
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

// NewPool creates a bounded pool. Submissions beyond size block until a
// worker frees up.
func NewPool(name string, size int) (*Pool, error) {
	panicHandler := func(p interface{}) {
		logger.Error("Worker panic recovered",
			zap.String("pool", name),
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	antsPool, err := ants.NewPool(size,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Pool{pool: antsPool, name: name}, nil
}

// Submit submits a context-aware task. The task receives the caller's context
// and SHOULD check ctx.Done() at blocking points. If the context is already
// cancelled, the task is not submitted at all.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := p.pool.Submit(func() {
		// Check again inside the worker: the job may have queued for a while.
		select {
		case <-ctx.Done():
			logger.Debug("Task skipped: context cancelled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			return
		default:
		}
		task(ctx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Running returns the number of busy workers.
func (p *Pool) Running() int { return p.pool.Running() }

// Cap returns the pool size.
func (p *Pool) Cap() int { return p.pool.Cap() }

// Free returns the number of idle worker slots.
func (p *Pool) Free() int { return p.pool.Free() }

// Shutdown waits for running tasks up to timeout, then releases the pool.
func (p *Pool) Shutdown(timeout time.Duration) {
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		logger.Warn("Worker pool shutdown timeout",
			zap.String("pool", p.name),
			zap.Error(err),
		)
	}
}
