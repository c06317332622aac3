// Package executor runs the poll pipeline for one plant at a time.
//
// Pipeline order: lock → load plant → decrypt credentials → summary →
// snapshot upsert → alarms → backfill → derivations → status → unlock →
// audit. Every started job writes exactly one PollLog on every exit path,
// and the plant lock is released on every exit path.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/adapter"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/audit"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/lock"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/monitor"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/clock"
	apperrors "github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/errors"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/metrics"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/store"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/vault"
)

// alarmLookback is how far back GetAlarmsSince reaches on every poll.
const alarmLookback = 24 * time.Hour

// Locker is the distributed lock contract the executor needs.
type Locker interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) (bool, error)
}

var _ Locker = (*lock.Service)(nil)

// Config carries the pipeline timing knobs.
type Config struct {
	JobTimeout     time.Duration // total per-job budget
	AdapterTimeout time.Duration // per adapter call
	LockTTL        time.Duration // 2×P
}

// Executor consumes tickets from the brand queues.
type Executor struct {
	stores     *store.Stores
	vault      *vault.Vault
	locks      Locker
	registry   *adapter.Registry
	reconciler *monitor.Reconciler
	audit      *audit.Logger
	clk        clock.Clock
	cfg        Config
}

// New creates a poll executor.
func New(stores *store.Stores, v *vault.Vault, locks Locker, registry *adapter.Registry, reconciler *monitor.Reconciler, auditLogger *audit.Logger, clk clock.Clock, cfg Config) *Executor {
	return &Executor{
		stores:     stores,
		vault:      v,
		locks:      locks,
		registry:   registry,
		reconciler: reconciler,
		audit:      auditLogger,
		clk:        clk,
		cfg:        cfg,
	}
}

// Execute runs the pipeline for one ticket. The returned error is classified
// by the taxonomy and drives the queue's retry decision; nil means terminal
// success (including the expected lock-skip outcome).
func (e *Executor) Execute(ctx context.Context, ticket domain.JobTicket) error {
	startedAt := e.clk.Now()
	brand := string(ticket.Brand)

	jobCtx, cancel := context.WithTimeout(ctx, e.cfg.JobTimeout)
	defer cancel()

	outcome := e.run(jobCtx, ticket)

	finishedAt := e.clk.Now()
	metrics.PollDuration.WithLabelValues(brand).Observe(finishedAt.Sub(startedAt).Seconds())

	entry := audit.Entry{
		PlantID:    ticket.PlantID,
		JobType:    ticket.JobType,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	if outcome.err == nil {
		entry.Status = domain.PollSuccess
		entry.AdapterErrorType = outcome.note // LOCK_SKIPPED or empty
	} else {
		entry.Status = domain.PollError
		kind := classify(jobCtx, outcome.err)
		entry.AdapterErrorType = string(kind)
		if ae, ok := apperrors.AsAdapterError(outcome.err); ok && ae.HTTPStatus != 0 {
			status := ae.HTTPStatus
			entry.HTTPStatus = &status
		}
		metrics.PollErrors.WithLabelValues(brand, string(kind)).Inc()
	}
	metrics.PollsTotal.WithLabelValues(brand, string(entry.Status)).Inc()

	// The audit row is written with the parent context so a job that blew its
	// budget still gets its PollLog.
	if err := e.audit.LogPoll(ctx, entry); err != nil {
		logger.Error("Poll audit write failed", zap.String("plant_id", ticket.PlantID), zap.Error(err))
	}

	if outcome.err != nil {
		return outcome.err
	}
	return nil
}

// result is the internal pipeline outcome. note carries the LOCK_SKIPPED
// marker, which is a success with an annotation, not an error.
type result struct {
	err  error
	note string
}

func (e *Executor) run(ctx context.Context, ticket domain.JobTicket) result {
	vendorAdapter, ok := e.registry.Lookup(ticket.Brand)
	if !ok {
		return result{err: apperrors.New(apperrors.KindUnknown,
			fmt.Sprintf("no adapter registered for brand %s", ticket.Brand))}
	}

	// Exclusion lock: one poll in progress per plant across the whole fleet.
	lockKey := domain.PlantLockKey(ticket.PlantID)
	token := uuid.New().String()
	acquired, err := e.locks.Acquire(ctx, lockKey, token, e.cfg.LockTTL)
	if err != nil {
		return result{err: apperrors.Unknown(err, "lock acquire failed")}
	}
	if !acquired {
		logger.Info("Plant already locked, skipping",
			zap.String("plant_id", ticket.PlantID),
			zap.String("brand", string(ticket.Brand)),
		)
		return result{note: string(apperrors.KindLockSkipped)}
	}
	defer func() {
		// Release with a fresh context: the job context may already be
		// cancelled, and the lock must go on every exit path.
		releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer releaseCancel()
		if _, err := e.locks.Release(releaseCtx, lockKey, token); err != nil {
			logger.Warn("Lock release failed",
				zap.String("plant_id", ticket.PlantID),
				zap.Error(err),
			)
		}
	}()

	plant, err := e.stores.Plants.Get(ctx, ticket.PlantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return result{err: apperrors.PlantNotFound(
				fmt.Sprintf("plant %s not found or deleted", ticket.PlantID))}
		}
		return result{err: apperrors.Unknown(err, "load plant")}
	}

	// Non-active integration: skip the adapter entirely, just enforce GREY.
	if plant.IntegrationStatus != domain.IntegrationActive {
		e.recomputeStatus(ctx, plant, monitor.LowGenNone, time.Time{})
		logger.Info("Plant integration not active, skipping poll",
			zap.String("plant_id", plant.ID),
			zap.String("integration_status", string(plant.IntegrationStatus)),
		)
		return result{}
	}

	if err := e.poll(ctx, plant, vendorAdapter); err != nil {
		if apperrors.KindOf(err) == apperrors.KindAuthFailed {
			e.quarantine(ctx, plant)
		}
		return result{err: err}
	}
	return result{}
}

// poll is steps 6–13: everything that needs credentials.
func (e *Executor) poll(ctx context.Context, plant *domain.Plant, vendorAdapter adapter.VendorAdapter) error {
	credential, err := e.stores.Plants.GetCredential(ctx, plant.ID, plant.Brand)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.AuthFailed(fmt.Sprintf("plant %s has no credential", plant.ID))
		}
		return apperrors.Unknown(err, "load credential")
	}

	plaintext, err := e.vault.Decrypt(credential.EncryptedBlob)
	if err != nil {
		return err // already AUTH_FAILED
	}
	creds := adapter.Credentials(plaintext)
	defer creds.Zero()

	loc, err := plant.Location()
	if err != nil {
		return apperrors.InvalidData(err.Error())
	}

	ref := adapter.PlantRef{PlantID: plant.ID, VendorPlantID: plant.VendorPlantID}
	caps := vendorAdapter.Capabilities()

	// Step 7–8: summary with the per-request timeout, then the contract guard.
	summary, err := e.callSummary(ctx, vendorAdapter, ref, creds)
	if err != nil {
		return err
	}
	if err := adapter.ValidateSummary(summary); err != nil {
		return err
	}

	// Step 9: upsert on (plant, local day of the sample in the plant zone).
	now := e.clk.Now()
	localDay := domain.LocalDate(summary.LastSeenAt, loc)
	snap := &domain.MetricSnapshot{
		PlantID:             plant.ID,
		Date:                localDay,
		Timezone:            plant.Timezone,
		TodayEnergyKWh:      summary.TodayEnergyKWh,
		CurrentPowerW:       summary.CurrentPowerW,
		GridInjectionPowerW: summary.GridInjectionPowerW,
		TotalEnergyKWh:      summary.TotalEnergyKWh,
		LastSeenAt:          summary.LastSeenAt,
		SourceSampledAt:     summary.SourceSampledAt,
	}
	if err := e.stores.Snapshots.Upsert(ctx, snap); err != nil {
		return apperrors.Unknown(err, "upsert snapshot")
	}

	// Step 10: vendor alarms, when the brand has them.
	if caps.SupportsAlarms {
		alarms, err := e.callAlarms(ctx, vendorAdapter, ref, creds, now.Add(-alarmLookback))
		if err != nil {
			return err
		}
		if err := e.reconciler.ReconcileVendorAlarms(ctx, plant, alarms); err != nil {
			return apperrors.Unknown(err, "reconcile vendor alarms")
		}
	}

	// Step 11: backfill the last 4 local days from the daily series.
	if caps.SupportsDailySeries {
		if err := e.backfill(ctx, plant, vendorAdapter, ref, creds, loc, now); err != nil {
			return err
		}
	}

	// Step 12: derivations.
	history, err := e.stores.Snapshots.HistoryBefore(ctx, plant.ID, localDay, monitor.LowGenHistoryLimit)
	if err != nil {
		return apperrors.Unknown(err, "load snapshot history")
	}
	lowGen := monitor.DeriveLowGen(history, summary.TodayEnergyKWh)
	if err := e.reconciler.ReconcileDerived(ctx, plant, domain.AlertLowGen,
		lowGen != monitor.LowGenNone, monitor.LowGenSeverity(lowGen),
		fmt.Sprintf("generation far below the recent median (today %.1f kWh)", summary.TodayEnergyKWh),
	); err != nil {
		return apperrors.Unknown(err, "reconcile low generation")
	}

	offline := monitor.DeriveOffline(now, summary.LastSeenAt)
	if err := e.reconciler.ReconcileDerived(ctx, plant, domain.AlertOffline,
		offline, domain.SeverityCritical, "no data from the plant for more than 24h",
	); err != nil {
		return apperrors.Unknown(err, "reconcile offline")
	}

	// Step 13: status recomputation.
	e.recomputeStatus(ctx, plant, lowGen, summary.LastSeenAt)
	return nil
}

func (e *Executor) callSummary(ctx context.Context, a adapter.VendorAdapter, ref adapter.PlantRef, creds adapter.Credentials) (*domain.NormalizedSummary, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
	defer cancel()
	summary, err := a.GetPlantSummary(callCtx, ref, creds)
	if err != nil {
		return nil, classifyCallError(callCtx, err)
	}
	return summary, nil
}

func (e *Executor) callAlarms(ctx context.Context, a adapter.VendorAdapter, ref adapter.PlantRef, creds adapter.Credentials, since time.Time) ([]domain.NormalizedAlarm, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
	defer cancel()
	alarms, err := a.GetAlarmsSince(callCtx, ref, creds, since)
	if err != nil {
		return nil, classifyCallError(callCtx, err)
	}
	return alarms, nil
}

// recomputeStatus runs the evaluator and writes the status only on change.
func (e *Executor) recomputeStatus(ctx context.Context, plant *domain.Plant, lowGen monitor.LowGenLevel, lastSeenAt time.Time) {
	critical, err := e.stores.Alerts.CountActiveCritical(ctx, plant.ID)
	if err != nil {
		logger.Warn("Critical alert count failed, status unchanged",
			zap.String("plant_id", plant.ID), zap.Error(err))
		return
	}
	next := monitor.EvaluateStatus(monitor.StatusInput{
		IntegrationStatus: plant.IntegrationStatus,
		Now:               e.clk.Now(),
		LastSeenAt:        lastSeenAt,
		ActiveCritical:    critical,
		LowGen:            lowGen,
	})
	if next == plant.Status {
		return
	}
	if err := e.stores.Plants.UpdateStatus(ctx, plant.ID, next); err != nil {
		logger.Warn("Status update failed",
			zap.String("plant_id", plant.ID), zap.Error(err))
		return
	}
	logger.Info("Plant status changed",
		zap.String("plant_id", plant.ID),
		zap.String("plant_name", plant.Name),
		zap.String("from", string(plant.Status)),
		zap.String("to", string(next)),
	)
	plant.Status = next
}

// quarantine pauses a plant after an auth failure and forces GREY.
func (e *Executor) quarantine(ctx context.Context, plant *domain.Plant) {
	if err := e.stores.Plants.SetIntegrationStatus(ctx, plant.ID, domain.IntegrationPausedAuthError); err != nil {
		logger.Error("Failed to pause plant after auth failure",
			zap.String("plant_id", plant.ID), zap.Error(err))
		return
	}
	plant.IntegrationStatus = domain.IntegrationPausedAuthError
	logger.Warn("Plant paused after auth failure",
		zap.String("plant_id", plant.ID),
		zap.String("brand", string(plant.Brand)),
	)
	e.recomputeStatus(ctx, plant, monitor.LowGenNone, time.Time{})
}

// classify maps an error to its taxonomy kind, folding a blown job budget
// into NETWORK_TIMEOUT.
func classify(ctx context.Context, err error) apperrors.Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.KindNetworkTimeout
	}
	return apperrors.KindOf(err)
}

// classifyCallError folds a per-call deadline into NETWORK_TIMEOUT while
// passing structured adapter errors through untouched.
func classifyCallError(callCtx context.Context, err error) error {
	if _, ok := apperrors.AsAdapterError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return apperrors.Wrap(err, apperrors.KindNetworkTimeout, "adapter call timed out")
	}
	return apperrors.Unknown(err, "adapter call failed")
}
