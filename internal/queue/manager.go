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
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
)

// Manager routes tickets to the BrandQueue for their brand and coordinates
// drain/shutdown across all queues.
type Manager struct {
	queues map[domain.Brand]*BrandQueue
}

// NewManager builds one BrandQueue per registered brand, sized from each
// adapter's capabilities.
func NewManager(registry *adapter.Registry, executor Executor, tickets TicketRegistry, clk clock.Clock) (*Manager, error) {
	queues := make(map[domain.Brand]*BrandQueue)
	for _, brand := range registry.Brands() {
		a, _ := registry.Lookup(brand)
		q, err := New(a.Capabilities(), executor, tickets, clk)
		if err != nil {
			return nil, fmt.Errorf("brand queue for %s: %w", brand, err)
		}
		queues[brand] = q
	}
	return &Manager{queues: queues}, nil
}

// Submit routes a ticket to its brand queue.
func (m *Manager) Submit(ctx context.Context, ticket domain.JobTicket) error {
	q, ok := m.queues[ticket.Brand]
	if !ok {
		return fmt.Errorf("no queue for brand %s", ticket.Brand)
	}
	return q.Submit(ctx, ticket)
}

// Queue returns the queue for a brand, when one exists.
func (m *Manager) Queue(brand domain.Brand) (*BrandQueue, bool) {
	q, ok := m.queues[brand]
	return q, ok
}

// Pending sums queued-or-running tickets across brands.
func (m *Manager) Pending() int {
	total := 0
	for _, q := range m.queues {
		total += q.Pending()
	}
	return total
}

// Drain waits for every queue to empty, sharing one deadline.
func (m *Manager) Drain(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	var wg sync.WaitGroup
	results := make(chan bool, len(m.queues))
	for brand, q := range m.queues {
		wg.Add(1)
		go func(brand domain.Brand, q *BrandQueue) { // joined below
			defer wg.Done()
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			ok := q.Drain(remaining)
			if !ok {
				logger.Warn("Brand queue did not drain before deadline",
					zap.String("brand", string(brand)),
					zap.Int("pending", q.Pending()),
				)
			}
			results <- ok
		}(brand, q)
	}
	wg.Wait()
	close(results)

	drained := true
	for ok := range results {
		drained = drained && ok
	}
	return drained
}

// Shutdown releases every queue's worker pool.
func (m *Manager) Shutdown(timeout time.Duration) {
	for _, q := range m.queues {
		q.Shutdown(timeout)
	}
}
