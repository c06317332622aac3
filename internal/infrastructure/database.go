// Package infrastructure provides database and Redis connection setup.
//
// A single pgxpool backs the whole process; repositories use the *sql.DB
// wrapper created from it so one pool serves every store operation.
package infrastructure

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/config"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
)

// DatabaseClients contains the shared database handles.
type DatabaseClients struct {
	// Pool is the shared pgx connection pool.
	Pool *pgxpool.Pool

	// DB is the *sql.DB wrapper around Pool, created via
	// stdlib.OpenDBFromPool so it reuses the pool's connections.
	DB *sql.DB
}

// NewDatabaseClients creates the shared connection pool and verifies it.
func NewDatabaseClients(ctx context.Context, cfg config.DatabaseConfig) (*DatabaseClients, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = time.Minute

	// Snapshot dates are computed in plant-local zones by the application;
	// the session itself always speaks UTC.
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET timezone = 'UTC'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)

	logger.Info("Database connection pool created",
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Int32("min_conns", cfg.MinConns),
	)

	return &DatabaseClients{Pool: pool, DB: db}, nil
}

// Close closes the connection pool gracefully.
func (c *DatabaseClients) Close() {
	if c.DB != nil {
		c.DB.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
