// Package queue implements the per-brand work queues.
//
// Each BrandQueue owns a bounded worker pool sized to the vendor's concurrency
// cap, a sliding-window rate limiter for job starts, deterministic ticket
// deduplication, and the retry policy. One plant failing never affects the
// rest of the queue.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/adapter"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/clock"
	apperrors "github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/errors"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/metrics"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/worker"
)

const (
	// ticketTTL bounds a registry claim so a crashed process frees the id.
	ticketTTL = 30 * time.Minute

	// queueDepth bounds how many tickets may wait behind the worker pool.
	queueDepth = 1024

	successRetention = 100
	failureRetention = 50
)

// Executor runs one ticket to completion. The returned error (classified via
// the taxonomy) drives the retry decision; nil means terminal success.
type Executor interface {
	Execute(ctx context.Context, ticket domain.JobTicket) error
}

// TicketResult is a retained terminal ticket, kept for observability.
type TicketResult struct {
	Ticket     domain.JobTicket
	Err        error
	FinishedAt time.Time
}

// BrandQueue is the bounded work queue for one brand.
type BrandQueue struct {
	brand    domain.Brand
	caps     adapter.Capabilities
	pool     *worker.Pool
	limiter  *slidingWindow
	executor Executor
	registry TicketRegistry // nil disables the cross-process mirror
	clk      clock.Clock
	backoff  func(retry int, retryAfter time.Duration) time.Duration

	mu        sync.Mutex
	pending   map[string]struct{} // queued or running ticket ids
	successes []TicketResult
	failures  []TicketResult

	tasks chan queuedTicket
	stop  chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup
}

// queuedTicket pairs a ticket with the context it was submitted under.
type queuedTicket struct {
	ctx    context.Context
	ticket domain.JobTicket
}

// New creates a BrandQueue sized from the adapter capabilities.
func New(caps adapter.Capabilities, executor Executor, registry TicketRegistry, clk clock.Clock) (*BrandQueue, error) {
	pool, err := worker.NewPool("queue-"+string(caps.Brand), caps.MaxConcurrent)
	if err != nil {
		return nil, err
	}
	q := &BrandQueue{
		brand:    caps.Brand,
		caps:     caps,
		pool:     pool,
		limiter:  newSlidingWindow(caps.MaxPerMinute, time.Minute, clk),
		executor: executor,
		registry: registry,
		clk:      clk,
		backoff:  retryBackoff,
		pending:  make(map[string]struct{}),
		tasks:    make(chan queuedTicket, queueDepth),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go q.dispatch() // queue dispatcher, joined by Shutdown
	return q, nil
}

// Brand returns the queue's brand.
func (q *BrandQueue) Brand() domain.Brand { return q.brand }

// Submit enqueues a ticket. A ticket whose deterministic id matches one that
// is already queued or running is dropped silently: that is the primary
// deduplication mechanism, not an error.
func (q *BrandQueue) Submit(ctx context.Context, ticket domain.JobTicket) error {
	q.mu.Lock()
	if _, dup := q.pending[ticket.ID]; dup {
		q.mu.Unlock()
		metrics.TicketsDeduplicated.WithLabelValues(string(q.brand)).Inc()
		logger.Debug("Duplicate ticket dropped",
			zap.String("ticket_id", ticket.ID),
			zap.String("brand", string(q.brand)),
		)
		return nil
	}
	q.pending[ticket.ID] = struct{}{}
	depth := len(q.pending)
	q.mu.Unlock()
	metrics.QueueDepth.WithLabelValues(string(q.brand)).Set(float64(depth))

	if q.registry != nil {
		claimed, err := q.registry.Register(ctx, ticket.ID, ticketTTL)
		if err != nil {
			// Registry trouble must not stop polling; fall back to the
			// in-process dedup alone.
			logger.Warn("Ticket registry unavailable",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err),
			)
		} else if !claimed {
			q.forget(ticket.ID)
			metrics.TicketsDeduplicated.WithLabelValues(string(q.brand)).Inc()
			return nil
		}
	}

	ticket.EnqueuedAt = q.clk.Now()
	q.wg.Add(1)
	select {
	case q.tasks <- queuedTicket{ctx: ctx, ticket: ticket}:
		return nil
	default:
		// A full buffer means the brand is hopelessly behind; dropping the
		// ticket is safe because the next scheduler tick resubmits it.
		q.wg.Done()
		q.release(ctx, ticket.ID)
		return fmt.Errorf("queue for brand %s is full", q.brand)
	}
}

// dispatch feeds queued tickets into the bounded worker pool. The pool submit
// blocks while every worker is busy, which is what keeps the concurrency cap;
// only this goroutine ever waits on it, so Submit never blocks a caller.
func (q *BrandQueue) dispatch() {
	defer close(q.done)
	for {
		select {
		case item := <-q.tasks:
			// The pool gets a background context so a cancelled job is still
			// executed far enough to reach finish(); run() observes the real
			// submission context itself and winds down cleanly.
			err := q.pool.Submit(context.Background(), func(context.Context) {
				q.run(item.ctx, item.ticket)
			})
			if err != nil {
				q.finish(item.ticket, err)
				q.wg.Done()
			}
		case <-q.stop:
			return
		}
	}
}

// run drives a ticket through attempts until a terminal outcome.
func (q *BrandQueue) run(ctx context.Context, ticket domain.JobTicket) {
	defer q.wg.Done()

	attempt := 1
	for {
		ticket.Attempt = attempt
		if err := q.waitForRateSlot(ctx); err != nil {
			q.finish(ticket, err)
			return
		}

		err := q.executor.Execute(ctx, ticket)
		if err == nil {
			q.finish(ticket, nil)
			return
		}

		kind := apperrors.KindOf(err)
		retry := attempt // upcoming retry index, 1-based
		if !apperrors.Retryable(kind) || retry > maxRetries {
			q.finish(ticket, err)
			return
		}

		var retryAfter time.Duration
		if ae, ok := apperrors.AsAdapterError(err); ok {
			retryAfter = ae.RetryAfter
		}
		wait := q.backoff(retry, retryAfter)
		logger.Info("Retrying ticket",
			zap.String("ticket_id", ticket.ID),
			zap.String("brand", string(q.brand)),
			zap.Int("attempt", attempt),
			zap.String("error_kind", string(kind)),
			zap.Duration("backoff", wait),
		)
		if err := sleepCtx(ctx, wait); err != nil {
			q.finish(ticket, err)
			return
		}
		attempt++
	}
}

// waitForRateSlot blocks until the sliding window admits a job start.
func (q *BrandQueue) waitForRateSlot(ctx context.Context) error {
	for {
		if q.limiter.Allow() {
			return nil
		}
		metrics.RateLimitWaits.WithLabelValues(string(q.brand)).Inc()
		wait := q.limiter.NextFree()
		if wait <= 0 {
			wait = 50 * time.Millisecond
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

// finish records a terminal outcome and releases the ticket id.
func (q *BrandQueue) finish(ticket domain.JobTicket, err error) {
	result := TicketResult{Ticket: ticket, Err: err, FinishedAt: q.clk.Now()}

	q.mu.Lock()
	if err == nil {
		q.successes = append(q.successes, result)
		if len(q.successes) > successRetention {
			q.successes = q.successes[len(q.successes)-successRetention:]
		}
	} else {
		q.failures = append(q.failures, result)
		if len(q.failures) > failureRetention {
			q.failures = q.failures[len(q.failures)-failureRetention:]
		}
	}
	q.mu.Unlock()

	// Release with a background context: terminal bookkeeping must happen
	// even when the job's context is already cancelled.
	q.release(context.Background(), ticket.ID)
}

func (q *BrandQueue) release(ctx context.Context, id string) {
	q.forget(id)
	if q.registry != nil {
		if err := q.registry.Unregister(ctx, id); err != nil {
			logger.Warn("Ticket unregister failed", zap.String("ticket_id", id), zap.Error(err))
		}
	}
}

func (q *BrandQueue) forget(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	depth := len(q.pending)
	q.mu.Unlock()
	metrics.QueueDepth.WithLabelValues(string(q.brand)).Set(float64(depth))
}

// Pending returns the number of queued-or-running tickets.
func (q *BrandQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Recent returns copies of the retained terminal tickets.
func (q *BrandQueue) Recent() (successes, failures []TicketResult) {
	q.mu.Lock()
	defer q.mu.Unlock()
	successes = append([]TicketResult(nil), q.successes...)
	failures = append([]TicketResult(nil), q.failures...)
	return successes, failures
}

// Drain waits for in-flight tickets up to the deadline. Returns false when
// the deadline passed with work still running.
func (q *BrandQueue) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() { // bounded by wg; exits as soon as the queue empties
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Shutdown stops the dispatcher and releases the worker pool.
func (q *BrandQueue) Shutdown(timeout time.Duration) {
	close(q.stop)
	q.pool.Shutdown(timeout)
	<-q.done
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
