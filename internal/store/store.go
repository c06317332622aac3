// Package store provides typed persistence operations over PostgreSQL.
//
// Repositories speak database/sql against the shared pgx pool. Consumers see
// typed operations, never SQL; all timestamps cross the boundary in UTC.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
)

// Plants is the plant repository contract.
type Plants interface {
	// ListActive returns non-deleted plants with integration_status ACTIVE.
	ListActive(ctx context.Context) ([]*domain.Plant, error)
	// Get loads one plant; soft-deleted plants are not found.
	Get(ctx context.Context, id string) (*domain.Plant, error)
	// GetCredential loads the encrypted credential for a plant+brand pair.
	GetCredential(ctx context.Context, plantID string, brand domain.Brand) (*domain.Credential, error)
	// UpdateStatus writes the derived health status.
	UpdateStatus(ctx context.Context, id string, status domain.PlantStatus) error
	// SetIntegrationStatus flips the integration state (e.g. auth quarantine).
	SetIntegrationStatus(ctx context.Context, id string, status domain.IntegrationStatus) error
}

// Snapshots is the metric snapshot repository contract.
type Snapshots interface {
	// Upsert inserts or overwrites the row for (plant_id, date). On conflict
	// the metric fields are replaced, never summed.
	Upsert(ctx context.Context, snap *domain.MetricSnapshot) error
	// InsertIfAbsent writes a row only when (plant_id, date) does not exist.
	// Used by backfill, which must never overwrite live data.
	InsertIfAbsent(ctx context.Context, snap *domain.MetricSnapshot) (bool, error)
	// ExistingDates reports which of the given local dates already have rows.
	ExistingDates(ctx context.Context, plantID string, dates []string) (map[string]bool, error)
	// HistoryBefore returns up to limit snapshots with date strictly before
	// the given local date, newest first.
	HistoryBefore(ctx context.Context, plantID, beforeDate string, limit int) ([]*domain.MetricSnapshot, error)
}

// Alerts is the alert repository contract.
type Alerts interface {
	// FindActive looks up the single NEW/ACKED alert for a dedup key.
	// Returns pkg/errors.ErrNotFound when none exists.
	FindActive(ctx context.Context, plantID string, typ domain.AlertType, vendorCode, deviceSN string) (*domain.Alert, error)
	// Insert creates a new alert row in state NEW.
	Insert(ctx context.Context, alert *domain.Alert) error
	// TouchActive updates severity/message/last_seen_at/notifiable on an
	// active alert.
	TouchActive(ctx context.Context, id string, severity domain.Severity, message string, lastSeenAt time.Time, notifiable bool) error
	// Resolve transitions an alert to RESOLVED with cleared_at.
	Resolve(ctx context.Context, id string, clearedAt time.Time) error
	// CountActiveCritical counts NEW/ACKED CRITICAL alerts for a plant.
	CountActiveCritical(ctx context.Context, plantID string) (int, error)
}

// PollLogs is the append-only audit repository contract.
type PollLogs interface {
	Insert(ctx context.Context, log *domain.PollLog) error
}

// Stores bundles every repository over one database handle.
type Stores struct {
	Plants    Plants
	Snapshots Snapshots
	Alerts    Alerts
	PollLogs  PollLogs
}

// New builds the repository bundle.
func New(db *sql.DB) *Stores {
	return &Stores{
		Plants:    NewPlantRepository(db),
		Snapshots: NewSnapshotRepository(db),
		Alerts:    NewAlertRepository(db),
		PollLogs:  NewPollLogRepository(db),
	}
}
