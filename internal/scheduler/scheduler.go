// Package scheduler emits poll tickets for every active plant on a fixed
// cadence.
//
// The scheduler never tracks in-flight work: deterministic ticket ids make
// duplicate submissions collapse inside the brand queues, so a tick that
// overlaps a still-running poll is harmless by construction.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/store"
)

// firstTickDelay bounds how long after Start the first enumeration fires.
const firstTickDelay = 2 * time.Second

// Submitter accepts tickets; the queue manager implements it.
type Submitter interface {
	Submit(ctx context.Context, ticket domain.JobTicket) error
}

// Scheduler periodically enumerates active plants and submits one poll ticket
// per plant to its brand queue.
type Scheduler struct {
	plants     store.Plants
	queues     Submitter
	interval   time.Duration
	firstDelay time.Duration

	stop chan struct{}
	done chan struct{}
}

// New creates a Scheduler with period interval.
func New(plants store.Plants, queues Submitter, interval time.Duration) *Scheduler {
	return &Scheduler{
		plants:     plants,
		queues:     queues,
		interval:   interval,
		firstDelay: firstTickDelay,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the scheduling loop. The first tick fires within 2s;
// subsequent ticks follow wall-clock at the configured interval. No attempt
// is made to align polls across plants.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx) // service loop, joined by Stop
	logger.Info("Scheduler started", zap.Duration("interval", s.interval))
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	first := time.NewTimer(s.firstDelay)
	defer first.Stop()
	select {
	case <-first.C:
		s.tick(ctx)
	case <-s.stop:
		return
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick submits one ticket per active plant. A failure on one plant never
// stops the sweep.
func (s *Scheduler) tick(ctx context.Context) {
	plants, err := s.plants.ListActive(ctx)
	if err != nil {
		logger.Error("Scheduler could not enumerate plants", zap.Error(err))
		return
	}

	submitted := 0
	for _, p := range plants {
		ticket := domain.JobTicket{
			ID:      domain.PollTicketID(p.ID),
			PlantID: p.ID,
			Brand:   p.Brand,
			JobType: domain.JobPoll,
		}
		if err := s.queues.Submit(ctx, ticket); err != nil {
			logger.Warn("Ticket submission failed",
				zap.String("plant_id", p.ID),
				zap.String("brand", string(p.Brand)),
				zap.Error(err),
			)
			continue
		}
		submitted++
	}
	logger.Debug("Scheduler tick",
		zap.Int("active_plants", len(plants)),
		zap.Int("submitted", submitted),
	)
}

// Stop halts ticket emission and waits for the loop to exit. Draining the
// queues afterwards is the caller's job.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
	logger.Info("Scheduler stopped")
}
