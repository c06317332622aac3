package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/adapter"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	apperrors "github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/errors"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
)

// backfillDays is how many trailing local days the sweep inspects (D-3..D-0).
const backfillDays = 4

// backfill fills gaps in the last backfillDays local dates from one ranged
// daily-series call. Existing snapshots are never overwritten: live polls own
// today's row, backfill only repairs holes.
func (e *Executor) backfill(ctx context.Context, plant *domain.Plant, a adapter.VendorAdapter, ref adapter.PlantRef, creds adapter.Credentials, loc *time.Location, now time.Time) error {
	dates := make([]string, backfillDays)
	for i := 0; i < backfillDays; i++ {
		dates[i] = domain.DaysBefore(now, loc, backfillDays-1-i)
	}

	existing, err := e.stores.Snapshots.ExistingDates(ctx, plant.ID, dates)
	if err != nil {
		return apperrors.Unknown(err, "check snapshot gaps")
	}

	var missing []string
	for _, d := range dates {
		if !existing[d] {
			missing = append(missing, d)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	// One ranged call covering first..last missing, not one call per day.
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
	points, err := a.GetDailyEnergySeries(callCtx, ref, creds, missing[0], missing[len(missing)-1])
	cancel()
	if err != nil {
		return classifyCallError(callCtx, err)
	}

	wanted := make(map[string]bool, len(missing))
	for _, d := range missing {
		wanted[d] = true
	}

	filled := 0
	for _, p := range points {
		if !wanted[p.Date] {
			continue // series may include days that already have rows
		}
		if err := adapter.ValidateDailyPoint(p); err != nil {
			return err
		}
		inserted, err := e.stores.Snapshots.InsertIfAbsent(ctx, &domain.MetricSnapshot{
			PlantID:         plant.ID,
			Date:            p.Date,
			Timezone:        plant.Timezone,
			TodayEnergyKWh:  p.EnergyKWh,
			LastSeenAt:      now,
			SourceSampledAt: now,
		})
		if err != nil {
			return apperrors.Unknown(err, "insert backfill snapshot")
		}
		if inserted {
			filled++
		}
	}
	if filled > 0 {
		logger.Info("Backfilled snapshot gaps",
			zap.String("plant_id", plant.ID),
			zap.Int("missing", len(missing)),
			zap.Int("filled", filled),
		)
	}
	return nil
}
