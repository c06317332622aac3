package executor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/adapter"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/audit"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/monitor"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/clock"
	apperrors "github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/errors"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/store"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/vault"
)

func init() {
	_ = logger.Init("error", "json")
}

const masterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type fakePlants struct {
	mu          sync.Mutex
	plants      map[string]*domain.Plant
	credentials map[string]*domain.Credential
}

var _ store.Plants = (*fakePlants)(nil)

func (f *fakePlants) ListActive(context.Context) ([]*domain.Plant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Plant
	for _, p := range f.plants {
		if p.IntegrationStatus == domain.IntegrationActive && p.DeletedAt == nil {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakePlants) Get(_ context.Context, id string) (*domain.Plant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.plants[id]
	if !ok || p.DeletedAt != nil {
		return nil, apperrors.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakePlants) GetCredential(_ context.Context, plantID string, _ domain.Brand) (*domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.credentials[plantID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return c, nil
}

func (f *fakePlants) UpdateStatus(_ context.Context, id string, status domain.PlantStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.plants[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	p.Status = status
	return nil
}

func (f *fakePlants) SetIntegrationStatus(_ context.Context, id string, status domain.IntegrationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.plants[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	p.IntegrationStatus = status
	return nil
}

type fakeSnapshots struct {
	mu   sync.Mutex
	rows map[string]map[string]*domain.MetricSnapshot // plant → date → row
}

var _ store.Snapshots = (*fakeSnapshots)(nil)

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{rows: make(map[string]map[string]*domain.MetricSnapshot)}
}

func (f *fakeSnapshots) plantRows(plantID string) map[string]*domain.MetricSnapshot {
	if f.rows[plantID] == nil {
		f.rows[plantID] = make(map[string]*domain.MetricSnapshot)
	}
	return f.rows[plantID]
}

func (f *fakeSnapshots) Upsert(_ context.Context, snap *domain.MetricSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *snap
	f.plantRows(snap.PlantID)[snap.Date] = &copied
	return nil
}

func (f *fakeSnapshots) InsertIfAbsent(_ context.Context, snap *domain.MetricSnapshot) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.plantRows(snap.PlantID)
	if _, exists := rows[snap.Date]; exists {
		return false, nil
	}
	copied := *snap
	rows[snap.Date] = &copied
	return true, nil
}

func (f *fakeSnapshots) ExistingDates(_ context.Context, plantID string, dates []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool)
	rows := f.plantRows(plantID)
	for _, d := range dates {
		if _, ok := rows[d]; ok {
			out[d] = true
		}
	}
	return out, nil
}

func (f *fakeSnapshots) HistoryBefore(_ context.Context, plantID, beforeDate string, limit int) ([]*domain.MetricSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var dates []string
	for d := range f.plantRows(plantID) {
		if d < beforeDate {
			dates = append(dates, d)
		}
	}
	// Newest first.
	for i := 0; i < len(dates); i++ {
		for j := i + 1; j < len(dates); j++ {
			if dates[j] > dates[i] {
				dates[i], dates[j] = dates[j], dates[i]
			}
		}
	}
	if len(dates) > limit {
		dates = dates[:limit]
	}
	var out []*domain.MetricSnapshot
	for _, d := range dates {
		copied := *f.rows[plantID][d]
		out = append(out, &copied)
	}
	return out, nil
}

type fakeAlerts struct {
	mu   sync.Mutex
	rows map[string]*domain.Alert
}

var _ store.Alerts = (*fakeAlerts)(nil)

func newFakeAlerts() *fakeAlerts { return &fakeAlerts{rows: make(map[string]*domain.Alert)} }

func (f *fakeAlerts) FindActive(_ context.Context, plantID string, typ domain.AlertType, code, sn string) (*domain.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.PlantID == plantID && a.Type == typ && a.VendorAlarmCode == code &&
			a.DeviceSN == sn && (a.State == domain.AlertNew || a.State == domain.AlertAcked) {
			copied := *a
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeAlerts) Insert(_ context.Context, alert *domain.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *alert
	f.rows[alert.ID] = &copied
	return nil
}

func (f *fakeAlerts) TouchActive(_ context.Context, id string, severity domain.Severity, message string, lastSeenAt time.Time, notifiable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	a.Severity, a.Message, a.LastSeenAt, a.Notifiable = severity, message, lastSeenAt, notifiable
	return nil
}

func (f *fakeAlerts) Resolve(_ context.Context, id string, clearedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	a.State = domain.AlertResolved
	a.ClearedAt = &clearedAt
	return nil
}

func (f *fakeAlerts) CountActiveCritical(_ context.Context, plantID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.rows {
		if a.PlantID == plantID && a.Severity == domain.SeverityCritical &&
			(a.State == domain.AlertNew || a.State == domain.AlertAcked) {
			n++
		}
	}
	return n, nil
}

func (f *fakeAlerts) byType(plantID string, typ domain.AlertType) []*domain.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Alert
	for _, a := range f.rows {
		if a.PlantID == plantID && a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

type fakePollLogs struct {
	mu   sync.Mutex
	rows []*domain.PollLog
}

var _ store.PollLogs = (*fakePollLogs)(nil)

func (f *fakePollLogs) Insert(_ context.Context, log *domain.PollLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *log
	f.rows = append(f.rows, &copied)
	return nil
}

func (f *fakePollLogs) all() []*domain.PollLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.PollLog(nil), f.rows...)
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: make(map[string]string)} }

func (f *fakeLocker) Acquire(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, taken := f.held[key]; taken {
		return false, nil
	}
	f.held[key] = token
	return true, nil
}

func (f *fakeLocker) Release(_ context.Context, key, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] != token {
		return false, nil
	}
	delete(f.held, key)
	return true, nil
}

func (f *fakeLocker) lockedKeys() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.held)
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

const fixtureJSON = `{
  "plant_summary": {
    "currentPowerW": 4500,
    "todayEnergyKWh": 28.5,
    "lastSeenAt": "2026-02-18T14:30:00Z",
    "sourceSampledAt": "2026-02-18T14:29:45Z",
    "timezone": "America/Sao_Paulo"
  },
  "daily_series": [
    { "date": "2026-02-15", "energyKWh": 30.1 },
    { "date": "2026-02-16", "energyKWh": 29.7 },
    { "date": "2026-02-17", "energyKWh": 31.2 }
  ],
  "alarms": []
}`

type harness struct {
	exec      *Executor
	plants    *fakePlants
	snapshots *fakeSnapshots
	alerts    *fakeAlerts
	pollLogs  *fakePollLogs
	locker    *fakeLocker
	clk       *clock.Fake
	vault     *vault.Vault
	mock      *adapter.MockAdapter
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()
	for _, brand := range []string{"solis", "huawei", "goodwe", "dele"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, brand+".json"), []byte(fixtureJSON), 0o644))
	}
	registry, err := adapter.NewMockRegistry(dir)
	require.NoError(t, err)
	solis, _ := registry.Lookup(domain.BrandSolis)
	mock := solis.(*adapter.MockAdapter)

	v, err := vault.New(masterKey, "")
	require.NoError(t, err)

	clk := clock.NewFake(time.Date(2026, 2, 18, 14, 35, 0, 0, time.UTC))
	plants := &fakePlants{
		plants:      make(map[string]*domain.Plant),
		credentials: make(map[string]*domain.Credential),
	}
	snapshots := newFakeSnapshots()
	alerts := newFakeAlerts()
	pollLogs := &fakePollLogs{}
	locker := newFakeLocker()

	stores := &store.Stores{
		Plants:    plants,
		Snapshots: snapshots,
		Alerts:    alerts,
		PollLogs:  pollLogs,
	}
	exec := New(stores, v, locker, registry, monitor.NewReconciler(alerts, clk),
		audit.NewLogger(pollLogs), clk, Config{
			JobTimeout:     time.Minute,
			AdapterTimeout: 8 * time.Second,
			LockTTL:        20 * time.Minute,
		})
	return &harness{
		exec: exec, plants: plants, snapshots: snapshots, alerts: alerts,
		pollLogs: pollLogs, locker: locker, clk: clk, vault: v, mock: mock,
	}
}

func (h *harness) addPlant(t *testing.T, id string) *domain.Plant {
	t.Helper()
	p := &domain.Plant{
		ID:                id,
		Name:              "Plant " + id,
		Brand:             domain.BrandSolis,
		Timezone:          "America/Sao_Paulo",
		IntegrationStatus: domain.IntegrationActive,
		Status:            domain.StatusGrey,
		VendorPlantID:     "vnd-" + id,
	}
	h.plants.plants[id] = p

	blob, err := h.vault.Encrypt([]byte(`{"keyId":"k","keySecret":"s"}`))
	require.NoError(t, err)
	h.plants.credentials[id] = &domain.Credential{
		PlantID: id, Brand: domain.BrandSolis, EncryptedBlob: blob, KeyVersion: 1,
	}
	return p
}

func ticket(plantID string) domain.JobTicket {
	return domain.JobTicket{
		ID:      domain.PollTicketID(plantID),
		PlantID: plantID,
		Brand:   domain.BrandSolis,
		JobType: domain.JobPoll,
		Attempt: 1,
	}
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

// Cold start: a GREY plant with no snapshots ends GREEN with one snapshot
// and one SUCCESS PollLog.
func TestExecute_ColdStartToGreen(t *testing.T) {
	h := newHarness(t)
	h.addPlant(t, "p1")

	require.NoError(t, h.exec.Execute(context.Background(), ticket("p1")))

	snap := h.snapshots.rows["p1"]["2026-02-18"]
	require.NotNil(t, snap, "local day in America/Sao_Paulo is 2026-02-18")
	assert.Equal(t, 28.5, snap.TodayEnergyKWh)
	require.NotNil(t, snap.CurrentPowerW)
	assert.Equal(t, 4500.0, *snap.CurrentPowerW)

	assert.Equal(t, domain.StatusGreen, h.plants.plants["p1"].Status)

	logs := h.pollLogs.all()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.PollSuccess, logs[0].Status)
	assert.Empty(t, logs[0].AdapterErrorType)

	assert.Zero(t, h.locker.lockedKeys(), "lock must be released")
}

// Idempotent re-run: same plant, same local day, same summary still yields
// one row with identical values.
func TestExecute_IdempotentUpsert(t *testing.T) {
	h := newHarness(t)
	h.addPlant(t, "p1")
	ctx := context.Background()

	require.NoError(t, h.exec.Execute(ctx, ticket("p1")))
	first := *h.snapshots.rows["p1"]["2026-02-18"]

	h.clk.Advance(10 * time.Minute)
	require.NoError(t, h.exec.Execute(ctx, ticket("p1")))

	require.Len(t, h.snapshots.rows["p1"], 4, "today + 3 backfilled days")
	second := *h.snapshots.rows["p1"]["2026-02-18"]
	assert.Equal(t, first.TodayEnergyKWh, second.TodayEnergyKWh)
	assert.Equal(t, first.LastSeenAt, second.LastSeenAt)
	assert.Len(t, h.pollLogs.all(), 2, "every run audits")
}

// Lock contention: the secondary attempt is a SUCCESS with LOCK_SKIPPED and
// no side effects.
func TestExecute_LockSkipped(t *testing.T) {
	h := newHarness(t)
	h.addPlant(t, "p2")

	// Another executor holds the lock.
	held, err := h.locker.Acquire(context.Background(), domain.PlantLockKey("p2"), "other-job", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	require.NoError(t, h.exec.Execute(context.Background(), ticket("p2")))

	assert.Empty(t, h.snapshots.rows["p2"], "no snapshot on skip")
	assert.Equal(t, domain.StatusGrey, h.plants.plants["p2"].Status, "state unchanged")

	logs := h.pollLogs.all()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.PollSuccess, logs[0].Status)
	assert.Equal(t, string(apperrors.KindLockSkipped), logs[0].AdapterErrorType)
}

// Non-active integration takes the skip branch: GREY enforced, no adapter
// call, SUCCESS PollLog.
func TestExecute_PausedIntegrationSkips(t *testing.T) {
	h := newHarness(t)
	p := h.addPlant(t, "p1")
	p.IntegrationStatus = domain.IntegrationPausedAuthError
	p.Status = domain.StatusGreen // stale

	require.NoError(t, h.exec.Execute(context.Background(), ticket("p1")))

	assert.Equal(t, domain.StatusGrey, h.plants.plants["p1"].Status, "non-active integration forces GREY")
	assert.Empty(t, h.snapshots.rows["p1"])
	logs := h.pollLogs.all()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.PollSuccess, logs[0].Status)
}

// A credential no key can open quarantines the plant.
func TestExecute_AuthFailureQuarantines(t *testing.T) {
	h := newHarness(t)
	h.addPlant(t, "p1")
	h.plants.credentials["p1"].EncryptedBlob = []byte("garbage-blob-no-key-opens")

	err := h.exec.Execute(context.Background(), ticket("p1"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAuthFailed, apperrors.KindOf(err))

	p := h.plants.plants["p1"]
	assert.Equal(t, domain.IntegrationPausedAuthError, p.IntegrationStatus)
	assert.Equal(t, domain.StatusGrey, p.Status)

	logs := h.pollLogs.all()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.PollError, logs[0].Status)
	assert.Equal(t, string(apperrors.KindAuthFailed), logs[0].AdapterErrorType)
	assert.Zero(t, h.locker.lockedKeys(), "lock released on the error path")
}

// Missing plant: PLANT_NOT_FOUND, lock released, audit written.
func TestExecute_PlantNotFound(t *testing.T) {
	h := newHarness(t)

	err := h.exec.Execute(context.Background(), ticket("ghost"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindPlantNotFound, apperrors.KindOf(err))

	logs := h.pollLogs.all()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.PollError, logs[0].Status)
	assert.Zero(t, h.locker.lockedKeys())
}

// A summary violating the contract writes nothing: partial rows never land.
func TestExecute_InvalidDataWritesNoSnapshot(t *testing.T) {
	h := newHarness(t)
	h.addPlant(t, "p1")

	fx := adapter.Fixture{}
	fx.PlantSummary = domain.NormalizedSummary{
		TodayEnergyKWh:  -5, // contract violation
		LastSeenAt:      time.Date(2026, 2, 18, 14, 30, 0, 0, time.UTC),
		SourceSampledAt: time.Date(2026, 2, 18, 14, 30, 0, 0, time.UTC),
		Timezone:        "America/Sao_Paulo",
	}
	h.mock.SetFixture(fx)

	err := h.exec.Execute(context.Background(), ticket("p1"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidData, apperrors.KindOf(err))
	assert.Empty(t, h.snapshots.rows["p1"], "partial pipelines never persist partial rows")
}

// Backfill fills only the missing trailing days and never overwrites.
func TestExecute_BackfillFillsGapsOnly(t *testing.T) {
	h := newHarness(t)
	h.addPlant(t, "p1")

	// 2026-02-16 already has a live row that backfill must not touch.
	existing := &domain.MetricSnapshot{
		PlantID: "p1", Date: "2026-02-16", Timezone: "America/Sao_Paulo",
		TodayEnergyKWh: 99.9,
		LastSeenAt:     time.Date(2026, 2, 16, 20, 0, 0, 0, time.UTC),
	}
	require.NoError(t, h.snapshots.Upsert(context.Background(), existing))

	require.NoError(t, h.exec.Execute(context.Background(), ticket("p1")))

	rows := h.snapshots.rows["p1"]
	require.Len(t, rows, 4, "D-3..D-0 all present")
	assert.Equal(t, 30.1, rows["2026-02-15"].TodayEnergyKWh, "filled from series")
	assert.Equal(t, 99.9, rows["2026-02-16"].TodayEnergyKWh, "existing row untouched")
	assert.Equal(t, 31.2, rows["2026-02-17"].TodayEnergyKWh, "filled from series")
	assert.Equal(t, 28.5, rows["2026-02-18"].TodayEnergyKWh, "today from the summary")
}

// Low generation: median 30.5 over 7 days and today at 2.5 kWh raises
// LOW_GEN CRITICAL and turns the plant RED.
func TestExecute_LowGenerationGoesRed(t *testing.T) {
	h := newHarness(t)
	h.addPlant(t, "p1")
	ctx := context.Background()

	energies := []float64{32.1, 29.7, 30.5, 31.2, 28.9, 30.0, 31.5}
	for i, e := range energies {
		date := time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC).AddDate(0, 0, -i).Format("2006-01-02")
		require.NoError(t, h.snapshots.Upsert(ctx, &domain.MetricSnapshot{
			PlantID: "p1", Date: date, Timezone: "America/Sao_Paulo",
			TodayEnergyKWh: e,
			LastSeenAt:     time.Date(2026, 2, 17, 20, 0, 0, 0, time.UTC),
		}))
	}

	fx := adapter.Fixture{}
	fx.PlantSummary = domain.NormalizedSummary{
		TodayEnergyKWh:  2.5,
		LastSeenAt:      time.Date(2026, 2, 18, 14, 30, 0, 0, time.UTC),
		SourceSampledAt: time.Date(2026, 2, 18, 14, 29, 45, 0, time.UTC),
		Timezone:        "America/Sao_Paulo",
	}
	h.mock.SetFixture(fx)

	require.NoError(t, h.exec.Execute(ctx, ticket("p1")))

	lowGen := h.alerts.byType("p1", domain.AlertLowGen)
	require.Len(t, lowGen, 1)
	assert.Equal(t, domain.SeverityCritical, lowGen[0].Severity)
	assert.Equal(t, domain.AlertNew, lowGen[0].State)
	assert.Equal(t, domain.StatusRed, h.plants.plants["p1"].Status)

	// A normal reading two hours later the same day resolves the alert and
	// the status.
	recovered := adapter.Fixture{}
	recovered.PlantSummary = domain.NormalizedSummary{
		TodayEnergyKWh:  29.0,
		LastSeenAt:      time.Date(2026, 2, 18, 16, 30, 0, 0, time.UTC),
		SourceSampledAt: time.Date(2026, 2, 18, 16, 30, 0, 0, time.UTC),
		Timezone:        "America/Sao_Paulo",
	}
	h.mock.SetFixture(recovered)
	h.clk.Advance(2 * time.Hour)

	require.NoError(t, h.exec.Execute(ctx, ticket("p1")))
	lowGen = h.alerts.byType("p1", domain.AlertLowGen)
	require.Len(t, lowGen, 1)
	assert.Equal(t, domain.AlertResolved, lowGen[0].State)
	assert.Equal(t, domain.StatusGreen, h.plants.plants["p1"].Status)
}

// Vendor alarm flows into an alert row through the full pipeline.
func TestExecute_VendorAlarmRaisesAlert(t *testing.T) {
	h := newHarness(t)
	h.addPlant(t, "p1")

	fx := adapter.Fixture{}
	fx.PlantSummary = domain.NormalizedSummary{
		TodayEnergyKWh:  28.5,
		LastSeenAt:      time.Date(2026, 2, 18, 14, 30, 0, 0, time.UTC),
		SourceSampledAt: time.Date(2026, 2, 18, 14, 30, 0, 0, time.UTC),
		Timezone:        "America/Sao_Paulo",
	}
	fx.Alarms = []domain.NormalizedAlarm{{
		VendorAlarmCode: "GRID_FAULT_001",
		DeviceSN:        "INV-1",
		Message:         "grid fault",
		OccurredAt:      time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC),
		IsActive:        true,
		Severity:        domain.SeverityMedium,
	}}
	h.mock.SetFixture(fx)

	require.NoError(t, h.exec.Execute(context.Background(), ticket("p1")))

	faults := h.alerts.byType("p1", domain.AlertFault)
	require.Len(t, faults, 1)
	assert.Equal(t, "GRID_FAULT_001", faults[0].VendorAlarmCode)
	assert.Equal(t, "INV-1", faults[0].DeviceSN)
}
