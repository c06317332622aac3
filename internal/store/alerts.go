package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	apperrors "github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/errors"
)

// AlertRepository is the PostgreSQL implementation of Alerts.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository creates an alert repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

var _ Alerts = (*AlertRepository)(nil)

const alertColumns = `id, plant_id, type, severity, state, vendor_alarm_code,
	device_sn, message, occurred_at, cleared_at, last_notified_at,
	last_seen_at, notifiable`

// FindActive looks up the single NEW/ACKED alert for a dedup key. Null-vs-empty
// normalization happens before this call: code and sn are always plain strings.
func (r *AlertRepository) FindActive(ctx context.Context, plantID string, typ domain.AlertType, vendorCode, deviceSN string) (*domain.Alert, error) {
	query := fmt.Sprintf(`SELECT %s FROM alerts
		WHERE plant_id = $1 AND type = $2 AND vendor_alarm_code = $3
			AND device_sn = $4 AND state IN ('NEW', 'ACKED')`, alertColumns)

	var a domain.Alert
	err := r.db.QueryRowContext(ctx, query, plantID, typ, vendorCode, deviceSN).Scan(
		&a.ID, &a.PlantID, &a.Type, &a.Severity, &a.State, &a.VendorAlarmCode,
		&a.DeviceSN, &a.Message, &a.OccurredAt, &a.ClearedAt, &a.LastNotifiedAt,
		&a.LastSeenAt, &a.Notifiable,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find active alert for plant %s: %w", plantID, err)
	}
	return &a, nil
}

// Insert creates a new alert row.
func (r *AlertRepository) Insert(ctx context.Context, alert *domain.Alert) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts
			(id, plant_id, type, severity, state, vendor_alarm_code, device_sn,
			 message, occurred_at, last_seen_at, notifiable)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		alert.ID, alert.PlantID, alert.Type, alert.Severity, alert.State,
		alert.VendorAlarmCode, alert.DeviceSN, alert.Message, alert.OccurredAt,
		alert.LastSeenAt, alert.Notifiable,
	)
	if err != nil {
		return fmt.Errorf("insert alert %s: %w", alert.ID, err)
	}
	return nil
}

// TouchActive refreshes an active alert on re-observation.
func (r *AlertRepository) TouchActive(ctx context.Context, id string, severity domain.Severity, message string, lastSeenAt time.Time, notifiable bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET severity = $1, message = $2, last_seen_at = $3,
			notifiable = $4
		 WHERE id = $5 AND state IN ('NEW', 'ACKED')`,
		severity, message, lastSeenAt, notifiable, id,
	)
	if err != nil {
		return fmt.Errorf("touch alert %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Resolve transitions an alert to RESOLVED. RESOLVED is terminal: the row is
// never reopened, a re-occurrence creates a new row.
func (r *AlertRepository) Resolve(ctx context.Context, id string, clearedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET state = 'RESOLVED', cleared_at = $1, notifiable = FALSE
		 WHERE id = $2 AND state IN ('NEW', 'ACKED')`,
		clearedAt, id,
	)
	if err != nil {
		return fmt.Errorf("resolve alert %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// CountActiveCritical counts NEW/ACKED CRITICAL alerts for a plant.
func (r *AlertRepository) CountActiveCritical(ctx context.Context, plantID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts
		 WHERE plant_id = $1 AND severity = 'CRITICAL' AND state IN ('NEW', 'ACKED')`,
		plantID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count critical alerts for plant %s: %w", plantID, err)
	}
	return count, nil
}
