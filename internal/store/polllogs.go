package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
)

// PollLogRepository is the PostgreSQL implementation of PollLogs.
// The table is append-only; nothing in the engine deletes rows.
type PollLogRepository struct {
	db *sql.DB
}

// NewPollLogRepository creates a poll log repository.
func NewPollLogRepository(db *sql.DB) *PollLogRepository {
	return &PollLogRepository{db: db}
}

var _ PollLogs = (*PollLogRepository)(nil)

// Insert appends one audit row.
func (r *PollLogRepository) Insert(ctx context.Context, log *domain.PollLog) error {
	var errType sql.NullString
	if log.AdapterErrorType != "" {
		errType = sql.NullString{String: log.AdapterErrorType, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO poll_logs
			(id, plant_id, job_type, status, duration_ms, adapter_error_type,
			 http_status, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		log.ID, log.PlantID, log.JobType, log.Status, log.DurationMS,
		errType, log.HTTPStatus, log.StartedAt, log.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert poll log %s: %w", log.ID, err)
	}
	return nil
}
