// Package audit writes the poll audit trail.
//
// PollLogs are append-only records: exactly one per started job, success or
// failure. Hard-delete is not allowed anywhere in the engine.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/store"
)

// Logger writes audit records to the store.
type Logger struct {
	pollLogs store.PollLogs
}

// NewLogger creates an audit Logger.
func NewLogger(pollLogs store.PollLogs) *Logger {
	return &Logger{pollLogs: pollLogs}
}

// Entry is one job execution outcome.
type Entry struct {
	PlantID          string
	JobType          domain.JobType
	Status           domain.PollStatus
	AdapterErrorType string
	HTTPStatus       *int
	StartedAt        time.Time
	FinishedAt       time.Time
}

// LogPoll appends one PollLog row. Failures are logged and returned; the
// caller decides whether the pipeline outcome already stands.
func (l *Logger) LogPoll(ctx context.Context, e Entry) error {
	row := &domain.PollLog{
		ID:               generateID(),
		PlantID:          e.PlantID,
		JobType:          e.JobType,
		Status:           e.Status,
		DurationMS:       e.FinishedAt.Sub(e.StartedAt).Milliseconds(),
		AdapterErrorType: e.AdapterErrorType,
		HTTPStatus:       e.HTTPStatus,
		StartedAt:        e.StartedAt,
		FinishedAt:       e.FinishedAt,
	}
	if err := l.pollLogs.Insert(ctx, row); err != nil {
		logger.Error("Failed to write poll log",
			zap.String("plant_id", e.PlantID),
			zap.String("status", string(e.Status)),
			zap.Error(err),
		)
		return fmt.Errorf("write poll log: %w", err)
	}
	return nil
}

func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("poll-%s", uuid.New().String())
	}
	return fmt.Sprintf("poll-%s", id.String())
}
