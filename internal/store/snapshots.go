package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
)

// SnapshotRepository is the PostgreSQL implementation of Snapshots.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a snapshot repository.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

var _ Snapshots = (*SnapshotRepository)(nil)

// Upsert inserts or overwrites the row for (plant_id, date). Metric fields are
// replaced on conflict: same local day means same row, units are never summed.
func (r *SnapshotRepository) Upsert(ctx context.Context, snap *domain.MetricSnapshot) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO metric_snapshots
			(plant_id, date, timezone, today_energy_kwh, current_power_w,
			 grid_injection_power_w, total_energy_kwh, last_seen_at,
			 source_sampled_at, updated_at)
		 VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, now())
		 ON CONFLICT (plant_id, date) DO UPDATE SET
			today_energy_kwh = EXCLUDED.today_energy_kwh,
			current_power_w = EXCLUDED.current_power_w,
			grid_injection_power_w = EXCLUDED.grid_injection_power_w,
			total_energy_kwh = EXCLUDED.total_energy_kwh,
			last_seen_at = EXCLUDED.last_seen_at,
			source_sampled_at = EXCLUDED.source_sampled_at,
			updated_at = now()`,
		snap.PlantID, snap.Date, snap.Timezone, snap.TodayEnergyKWh,
		snap.CurrentPowerW, snap.GridInjectionPowerW, snap.TotalEnergyKWh,
		snap.LastSeenAt, snap.SourceSampledAt,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot %s/%s: %w", snap.PlantID, snap.Date, err)
	}
	return nil
}

// InsertIfAbsent writes a row only when (plant_id, date) does not exist yet.
// Returns whether a row was inserted.
func (r *SnapshotRepository) InsertIfAbsent(ctx context.Context, snap *domain.MetricSnapshot) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO metric_snapshots
			(plant_id, date, timezone, today_energy_kwh, current_power_w,
			 grid_injection_power_w, total_energy_kwh, last_seen_at,
			 source_sampled_at, updated_at)
		 VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, now())
		 ON CONFLICT (plant_id, date) DO NOTHING`,
		snap.PlantID, snap.Date, snap.Timezone, snap.TodayEnergyKWh,
		snap.CurrentPowerW, snap.GridInjectionPowerW, snap.TotalEnergyKWh,
		snap.LastSeenAt, snap.SourceSampledAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert snapshot %s/%s: %w", snap.PlantID, snap.Date, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert snapshot %s/%s rows affected: %w", snap.PlantID, snap.Date, err)
	}
	return n == 1, nil
}

// ExistingDates reports which of the given local dates already have rows.
func (r *SnapshotRepository) ExistingDates(ctx context.Context, plantID string, dates []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(dates))
	if len(dates) == 0 {
		return existing, nil
	}

	placeholders := make([]string, len(dates))
	args := make([]interface{}, 0, len(dates)+1)
	args = append(args, plantID)
	for i, d := range dates {
		placeholders[i] = fmt.Sprintf("$%d::date", i+2)
		args = append(args, d)
	}

	query := fmt.Sprintf(
		`SELECT date FROM metric_snapshots WHERE plant_id = $1 AND date IN (%s)`,
		strings.Join(placeholders, ", "),
	)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("existing dates for plant %s: %w", plantID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		existing[d.Format("2006-01-02")] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates: %w", err)
	}
	return existing, nil
}

// HistoryBefore returns up to limit snapshots strictly before the given local
// date, newest first.
func (r *SnapshotRepository) HistoryBefore(ctx context.Context, plantID, beforeDate string, limit int) ([]*domain.MetricSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT plant_id, date, timezone, today_energy_kwh, current_power_w,
			grid_injection_power_w, total_energy_kwh, last_seen_at,
			source_sampled_at, updated_at
		 FROM metric_snapshots
		 WHERE plant_id = $1 AND date < $2::date
		 ORDER BY date DESC
		 LIMIT $3`,
		plantID, beforeDate, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history for plant %s: %w", plantID, err)
	}
	defer rows.Close()

	var snaps []*domain.MetricSnapshot
	for rows.Next() {
		var s domain.MetricSnapshot
		var date time.Time
		if err := rows.Scan(
			&s.PlantID, &date, &s.Timezone, &s.TodayEnergyKWh, &s.CurrentPowerW,
			&s.GridInjectionPowerW, &s.TotalEnergyKWh, &s.LastSeenAt,
			&s.SourceSampledAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.Date = date.Format("2006-01-02")
		snaps = append(snaps, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}
