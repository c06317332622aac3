package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	apperrors "github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/errors"
)

const deleBaseURL = "https://api.delesolar.com"

// deleCredentials is the decrypted credential document for the Dele cloud.
type deleCredentials struct {
	APIToken string `json:"apiToken"`
}

// DeleAdapter speaks the Dele cloud REST API (bearer token, JSON). Dele has
// no alarm endpoint; SupportsAlarms is false and the executor skips the alarm
// fetch for this brand, relying on derived OFFLINE/LOW_GEN only.
type DeleAdapter struct {
	client *resty.Client
}

// NewDeleAdapter creates the live DELE adapter.
func NewDeleAdapter(timeoutSec int) *DeleAdapter {
	return &DeleAdapter{client: newRestyClient(deleBaseURL, timeoutSec)}
}

var _ VendorAdapter = (*DeleAdapter)(nil)

// Capabilities returns the DELE limits.
func (a *DeleAdapter) Capabilities() Capabilities {
	return brandCapabilities(domain.BrandDele)
}

func (a *DeleAdapter) get(ctx context.Context, creds Credentials, path string, query map[string]string, result interface{}) error {
	var dc deleCredentials
	if err := json.Unmarshal(creds, &dc); err != nil {
		return apperrors.AuthFailed("dele credentials are malformed")
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(dc.APIToken).
		SetQueryParams(query).
		SetResult(result).
		Get(path)
	if mapped := mapTransportError(resp, err); mapped != nil {
		return mapped
	}
	return nil
}

// TestConnection probes the account endpoint.
func (a *DeleAdapter) TestConnection(ctx context.Context, creds Credentials) (*TestResult, error) {
	var out struct {
		Account string `json:"account"`
	}
	if err := a.get(ctx, creds, "/api/v1/account", nil, &out); err != nil {
		return nil, err
	}
	return &TestResult{OK: true, VendorMsg: out.Account}, nil
}

type deleSummary struct {
	CurrentPowerW  *float64 `json:"current_power_w"`
	TodayEnergyWh  *float64 `json:"today_energy_wh"` // Wh, converted below
	TotalEnergyWh  *float64 `json:"total_energy_wh"`
	GridPowerW     *float64 `json:"grid_power_w"` // negative = import
	ReportedAtUnix int64    `json:"reported_at"`
	Timezone       string   `json:"timezone"`
}

// GetPlantSummary fetches the plant summary. Dele reports energies in Wh;
// the adapter converts to the canonical kWh.
func (a *DeleAdapter) GetPlantSummary(ctx context.Context, ref PlantRef, creds Credentials) (*domain.NormalizedSummary, error) {
	var raw deleSummary
	path := fmt.Sprintf("/api/v1/plants/%s/summary", ref.VendorPlantID)
	if err := a.get(ctx, creds, path, nil, &raw); err != nil {
		return nil, err
	}
	if raw.TodayEnergyWh == nil {
		return nil, apperrors.InvalidData("dele summary has no today energy")
	}

	sampled := time.Unix(raw.ReportedAtUnix, 0).UTC()
	summary := &domain.NormalizedSummary{
		CurrentPowerW:       raw.CurrentPowerW,
		TodayEnergyKWh:      *raw.TodayEnergyWh / 1000,
		GridInjectionPowerW: raw.GridPowerW,
		LastSeenAt:          sampled,
		SourceSampledAt:     sampled,
		Timezone:            raw.Timezone,
	}
	if raw.TotalEnergyWh != nil {
		total := *raw.TotalEnergyWh / 1000
		summary.TotalEnergyKWh = &total
	}
	if err := ValidateSummary(summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// GetDailyEnergySeries fetches per-day energy for the range.
func (a *DeleAdapter) GetDailyEnergySeries(ctx context.Context, ref PlantRef, creds Credentials, startDate, endDate string) ([]domain.DailyEnergyPoint, error) {
	var raw struct {
		Days []struct {
			Date     string  `json:"date"`
			EnergyWh float64 `json:"energy_wh"`
		} `json:"days"`
	}
	path := fmt.Sprintf("/api/v1/plants/%s/energy/daily", ref.VendorPlantID)
	query := map[string]string{"from": startDate, "to": endDate}
	if err := a.get(ctx, creds, path, query, &raw); err != nil {
		return nil, err
	}

	points := make([]domain.DailyEnergyPoint, 0, len(raw.Days))
	for _, d := range raw.Days {
		point := domain.DailyEnergyPoint{Date: d.Date, EnergyKWh: d.EnergyWh / 1000}
		if err := ValidateDailyPoint(point); err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	return points, nil
}

// GetAlarmsSince is unsupported: Dele exposes no alarm endpoint. The executor
// consults Capabilities and never calls this for DELE; a direct call reports
// the gap explicitly instead of silently returning nothing.
func (a *DeleAdapter) GetAlarmsSince(_ context.Context, _ PlantRef, _ Credentials, _ time.Time) ([]domain.NormalizedAlarm, error) {
	return nil, apperrors.InvalidData("dele does not expose alarms")
}
