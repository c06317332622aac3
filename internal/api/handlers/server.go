// Package handlers exposes the operational HTTP surface: health, metrics and
// runtime log level. There is no business API here; dashboards and user-facing
// endpoints live in another service.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/infrastructure"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/queue"
)

// Server bundles the dependencies the ops endpoints probe.
type Server struct {
	db     *infrastructure.DatabaseClients
	rdb    *redis.Client
	queues *queue.Manager
}

// NewServer creates the ops server.
func NewServer(db *infrastructure.DatabaseClients, rdb *redis.Client, queues *queue.Manager) *Server {
	return &Server{db: db, rdb: rdb, queues: queues}
}

// Router builds the gin engine with the ops routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Any("/log/level", gin.WrapH(logger.HTTPHandler()))
	return r
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok"}

	if err := s.db.Pool.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = err.Error()
	} else {
		body["database"] = "ok"
	}

	if err := s.rdb.Ping(ctx).Err(); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["redis"] = err.Error()
	} else {
		body["redis"] = "ok"
	}

	body["pending_tickets"] = s.queues.Pending()
	c.JSON(status, body)
}
