package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/clock"
	apperrors "github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/errors"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/store"
)

// renotifyAfter is the re-notification throttle: an already-notified alert
// becomes notifiable again only after this much silence.
const renotifyAfter = 6 * time.Hour

// Reconciler merges adapter alarms and derived conditions with stored alerts.
//
// Dedup key: (plant_id, type, vendor_alarm_code, device_sn) with null-vs-empty
// normalized to empty string before anything touches the store. At most one
// alert per key is active (NEW/ACKED); RESOLVED rows never block a new one.
type Reconciler struct {
	alerts store.Alerts
	clk    clock.Clock
}

// NewReconciler creates an alert reconciler.
func NewReconciler(alerts store.Alerts, clk clock.Clock) *Reconciler {
	return &Reconciler{alerts: alerts, clk: clk}
}

// ReconcileVendorAlarms applies the four-case merge to each adapter-reported
// alarm. Vendor alarms map to type FAULT.
func (r *Reconciler) ReconcileVendorAlarms(ctx context.Context, plant *domain.Plant, alarms []domain.NormalizedAlarm) error {
	for _, a := range alarms {
		err := r.apply(ctx, plant, appliedAlarm{
			Type:       domain.AlertFault,
			VendorCode: a.VendorAlarmCode,
			DeviceSN:   a.DeviceSN,
			Message:    a.Message,
			OccurredAt: a.OccurredAt,
			IsActive:   a.IsActive,
			Severity:   a.Severity,
		})
		if err != nil {
			return fmt.Errorf("reconcile alarm %q for plant %s: %w", a.VendorAlarmCode, plant.ID, err)
		}
	}
	return nil
}

// ReconcileDerived applies the same merge to a derived condition (OFFLINE or
// LOW_GEN). Derived alarms carry empty code and device serial; the derived
// condition decides isActive.
func (r *Reconciler) ReconcileDerived(ctx context.Context, plant *domain.Plant, typ domain.AlertType, active bool, severity domain.Severity, message string) error {
	err := r.apply(ctx, plant, appliedAlarm{
		Type:       typ,
		Message:    message,
		OccurredAt: r.clk.Now(),
		IsActive:   active,
		Severity:   severity,
	})
	if err != nil {
		return fmt.Errorf("reconcile derived %s for plant %s: %w", typ, plant.ID, err)
	}
	return nil
}

type appliedAlarm struct {
	Type       domain.AlertType
	VendorCode string
	DeviceSN   string
	Message    string
	OccurredAt time.Time
	IsActive   bool
	Severity   domain.Severity
}

// apply is the four-case merge:
//   - active alarm, existing active alert  → touch (upgrade-only severity)
//   - inactive alarm, existing active alert → resolve
//   - active alarm, no active alert        → insert NEW
//   - inactive alarm, no active alert      → ignore
func (r *Reconciler) apply(ctx context.Context, plant *domain.Plant, a appliedAlarm) error {
	now := r.clk.Now()

	existing, err := r.alerts.FindActive(ctx, plant.ID, a.Type, a.VendorCode, a.DeviceSN)
	switch {
	case err == nil:
		if a.IsActive {
			severity := existing.Severity
			if a.Severity.HigherThan(severity) {
				severity = a.Severity
			}
			message := a.Message
			if message == "" {
				message = existing.Message
			}
			return r.alerts.TouchActive(ctx, existing.ID, severity, message, now,
				r.notifiable(plant, existing.LastNotifiedAt, now))
		}
		logger.Info("Alert resolved",
			zap.String("plant_id", plant.ID),
			zap.String("type", string(a.Type)),
			zap.String("vendor_alarm_code", a.VendorCode),
		)
		return r.alerts.Resolve(ctx, existing.ID, now)

	case errors.Is(err, apperrors.ErrNotFound):
		if !a.IsActive {
			return nil
		}
		occurred := a.OccurredAt
		if occurred.IsZero() {
			occurred = now
		}
		alert := &domain.Alert{
			ID:              newAlertID(),
			PlantID:         plant.ID,
			Type:            a.Type,
			Severity:        a.Severity,
			State:           domain.AlertNew,
			VendorAlarmCode: a.VendorCode,
			DeviceSN:        a.DeviceSN,
			Message:         a.Message,
			OccurredAt:      occurred,
			LastSeenAt:      now,
			Notifiable:      r.notifiable(plant, nil, now),
		}
		logger.Info("Alert raised",
			zap.String("plant_id", plant.ID),
			zap.String("type", string(a.Type)),
			zap.String("vendor_alarm_code", a.VendorCode),
			zap.String("severity", string(a.Severity)),
		)
		return r.alerts.Insert(ctx, alert)

	default:
		return err
	}
}

// notifiable applies the re-notification throttle and the per-plant silence
// window. The notification layer owns last_notified_at; the reconciler only
// sets the flag.
func (r *Reconciler) notifiable(plant *domain.Plant, lastNotifiedAt *time.Time, now time.Time) bool {
	if plant.AlertsSilencedUntil != nil && now.Before(*plant.AlertsSilencedUntil) {
		return false
	}
	if lastNotifiedAt == nil {
		return true
	}
	return now.Sub(*lastNotifiedAt) >= renotifyAfter
}

func newAlertID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
