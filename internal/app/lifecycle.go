package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
)

// Start launches the background services.
func (a *Application) Start(ctx context.Context) {
	a.Scheduler.Start(ctx)
}

// Shutdown stops the engine in reverse order: the scheduler stops emitting
// first, then the queues drain with a deadline, then pools and connections go.
// In-flight jobs see cancellation through the process context and release
// their locks on the way out.
func (a *Application) Shutdown() {
	a.Scheduler.Stop()

	drainTimeout := a.Config.Poll.DrainTimeout()
	if drained := a.Queues.Drain(drainTimeout); !drained {
		logger.Warn("Queues did not drain before deadline",
			zap.Duration("timeout", drainTimeout),
			zap.Int("pending", a.Queues.Pending()),
		)
	}
	a.Queues.Shutdown(10 * time.Second)

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Warn("Redis close failed", zap.Error(err))
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
	logger.Info("Engine stopped")
}
