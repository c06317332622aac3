package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
)

// Fixture is the brand-specific mock document. Field names are part of the
// fixture contract and must not drift.
type Fixture struct {
	PlantSummary domain.NormalizedSummary  `json:"plant_summary"`
	DailySeries  []domain.DailyEnergyPoint `json:"daily_series"`
	Alarms       []domain.NormalizedAlarm  `json:"alarms"`
}

// MockAdapter serves normalized data from a fixture document. It performs no
// network I/O; in mock mode it is the only adapter kind the registry builds.
type MockAdapter struct {
	brand   domain.Brand
	caps    Capabilities
	mu      sync.RWMutex
	fixture Fixture
}

// NewMockAdapter creates a MockAdapter for a brand from a fixture file.
func NewMockAdapter(brand domain.Brand, fixturePath string) (*MockAdapter, error) {
	raw, err := os.ReadFile(fixturePath)
	if err != nil {
		return nil, fmt.Errorf("read fixture for %s: %w", brand, err)
	}
	var fx Fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture for %s: %w", brand, err)
	}
	if err := ValidateSummary(&fx.PlantSummary); err != nil {
		return nil, fmt.Errorf("fixture for %s: %w", brand, err)
	}
	for i := range fx.Alarms {
		if err := ValidateAlarm(&fx.Alarms[i]); err != nil {
			return nil, fmt.Errorf("fixture for %s alarm %d: %w", brand, i, err)
		}
	}
	for _, p := range fx.DailySeries {
		if err := ValidateDailyPoint(p); err != nil {
			return nil, fmt.Errorf("fixture for %s: %w", brand, err)
		}
	}
	return &MockAdapter{
		brand:   brand,
		caps:    brandCapabilities(brand),
		fixture: fx,
	}, nil
}

// SetFixture replaces the fixture. Test hook.
func (m *MockAdapter) SetFixture(fx Fixture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixture = fx
}

// TestConnection always succeeds in mock mode.
func (m *MockAdapter) TestConnection(_ context.Context, _ Credentials) (*TestResult, error) {
	return &TestResult{OK: true, VendorMsg: "mock"}, nil
}

// GetPlantSummary returns the fixture summary.
func (m *MockAdapter) GetPlantSummary(ctx context.Context, _ PlantRef, _ Credentials) (*domain.NormalizedSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.fixture.PlantSummary
	return &s, nil
}

// GetDailyEnergySeries returns fixture points within [startDate, endDate].
func (m *MockAdapter) GetDailyEnergySeries(ctx context.Context, _ PlantRef, _ Credentials, startDate, endDate string) ([]domain.DailyEnergyPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var points []domain.DailyEnergyPoint
	for _, p := range m.fixture.DailySeries {
		if p.Date >= startDate && p.Date <= endDate {
			points = append(points, p)
		}
	}
	return points, nil
}

// GetAlarmsSince returns fixture alarms at or after since.
func (m *MockAdapter) GetAlarmsSince(ctx context.Context, _ PlantRef, _ Credentials, since time.Time) ([]domain.NormalizedAlarm, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var alarms []domain.NormalizedAlarm
	for _, a := range m.fixture.Alarms {
		if !a.OccurredAt.Before(since) {
			alarms = append(alarms, a)
		}
	}
	return alarms, nil
}

// Capabilities returns the brand's static limits (shared with the live
// adapter so queue sizing does not change between modes).
func (m *MockAdapter) Capabilities() Capabilities {
	return m.caps
}

// brandCapabilities is the static per-brand limits table.
func brandCapabilities(brand domain.Brand) Capabilities {
	switch brand {
	case domain.BrandSolis:
		return Capabilities{
			Brand: brand, MaxConcurrent: 3, MaxPerMinute: 25, MinIntervalSec: 300,
			SupportsDailySeries: true, SupportsAlarms: true, SupportsDeviceList: true,
		}
	case domain.BrandHuawei:
		return Capabilities{
			Brand: brand, MaxConcurrent: 2, MaxPerMinute: 20, MinIntervalSec: 300,
			SupportsDailySeries: true, SupportsAlarms: true, SupportsDeviceList: true,
		}
	case domain.BrandGoodwe:
		return Capabilities{
			Brand: brand, MaxConcurrent: 3, MaxPerMinute: 30, MinIntervalSec: 300,
			SupportsDailySeries: true, SupportsAlarms: true, SupportsDeviceList: false,
		}
	case domain.BrandDele:
		return Capabilities{
			Brand: brand, MaxConcurrent: 1, MaxPerMinute: 10, MinIntervalSec: 600,
			SupportsDailySeries: true, SupportsAlarms: false, SupportsDeviceList: false,
		}
	default:
		return Capabilities{Brand: brand, MaxConcurrent: 1, MaxPerMinute: 10, MinIntervalSec: 600}
	}
}
