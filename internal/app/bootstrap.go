// Package app is the composition root: it wires every dependency by hand and
// owns the startup/shutdown order. Nothing here contains business logic.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/adapter"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/api/handlers"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/audit"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/config"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/executor"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/infrastructure"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/lock"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/monitor"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/clock"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/queue"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/scheduler"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/store"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/vault"
)

// Application holds the composed dependencies.
type Application struct {
	Config    *config.Config
	Router    *gin.Engine
	DB        *infrastructure.DatabaseClients
	Redis     *redis.Client
	Queues    *queue.Manager
	Scheduler *scheduler.Scheduler
}

// Bootstrap validates the environment and builds the engine, in the startup
// order the configuration contract promises: config is already validated,
// then vault self-test, then Store probe, then LockService probe, then
// adapter registry, then brand queues, then scheduler.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	clk := clock.System{}

	// Vault first: a corrupt master key must abort before anything dials out.
	v, err := vault.New(cfg.Vault.MasterKeyCurrent, cfg.Vault.MasterKeyPrevious)
	if err != nil {
		return nil, fmt.Errorf("init vault: %w", err)
	}

	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	rdb, err := infrastructure.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	var registry *adapter.Registry
	if cfg.Integration.MockMode {
		registry, err = adapter.NewMockRegistry(cfg.Integration.FixtureDir)
	} else {
		registry, err = adapter.NewLiveRegistry(false, cfg.Poll.AdapterRequestTimeoutSeconds)
	}
	if err != nil {
		rdb.Close()
		db.Close()
		return nil, fmt.Errorf("init adapter registry: %w", err)
	}

	stores := store.New(db.DB)
	locks := lock.NewService(rdb)
	reconciler := monitor.NewReconciler(stores.Alerts, clk)
	auditLogger := audit.NewLogger(stores.PollLogs)

	exec := executor.New(stores, v, locks, registry, reconciler, auditLogger, clk, executor.Config{
		JobTimeout:     cfg.Poll.JobTimeout(),
		AdapterTimeout: cfg.Poll.AdapterRequestTimeout(),
		LockTTL:        cfg.Poll.LockTTL(),
	})

	queues, err := queue.NewManager(registry, exec, queue.NewRedisTicketRegistry(rdb), clk)
	if err != nil {
		rdb.Close()
		db.Close()
		return nil, fmt.Errorf("init brand queues: %w", err)
	}

	sched := scheduler.New(stores.Plants, queues, cfg.Poll.Interval())
	opsServer := handlers.NewServer(db, rdb, queues)

	return &Application{
		Config:    cfg,
		Router:    opsServer.Router(),
		DB:        db,
		Redis:     rdb,
		Queues:    queues,
		Scheduler: sched,
	}, nil
}
