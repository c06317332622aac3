package adapter

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	apperrors "github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/errors"
)

const huaweiBaseURL = "https://intl.fusionsolar.huawei.com/thirdData"

// huaweiCredentials is the decrypted credential document for FusionSolar.
type huaweiCredentials struct {
	UserName   string `json:"userName"`
	SystemCode string `json:"systemCode"`
}

// HuaweiAdapter speaks the FusionSolar northbound API. Sessions are token
// based: login yields an XSRF token reused until the vendor invalidates it.
type HuaweiAdapter struct {
	client *resty.Client

	mu    sync.Mutex
	token string
}

// NewHuaweiAdapter creates the live HUAWEI adapter.
func NewHuaweiAdapter(timeoutSec int) *HuaweiAdapter {
	return &HuaweiAdapter{client: newRestyClient(huaweiBaseURL, timeoutSec)}
}

var _ VendorAdapter = (*HuaweiAdapter)(nil)

// Capabilities returns the HUAWEI limits.
func (a *HuaweiAdapter) Capabilities() Capabilities {
	return brandCapabilities(domain.BrandHuawei)
}

type huaweiEnvelope struct {
	Success  bool            `json:"success"`
	FailCode int             `json:"failCode"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data"`
}

// check maps FusionSolar fail codes to the taxonomy. 305 = session expired,
// 407 = northbound frequency limit.
func (e *huaweiEnvelope) check() error {
	if e.Success {
		return nil
	}
	switch e.FailCode {
	case 305, 401:
		return apperrors.AuthFailed("fusionsolar: " + e.Message)
	case 407:
		return apperrors.RateLimited("fusionsolar frequency limit", 0)
	default:
		return apperrors.New(apperrors.KindUnknown, "fusionsolar: "+e.Message)
	}
}

// login obtains an XSRF token. Called lazily and again after a 305.
func (a *HuaweiAdapter) login(ctx context.Context, creds Credentials) (string, error) {
	var hc huaweiCredentials
	if err := json.Unmarshal(creds, &hc); err != nil {
		return "", apperrors.AuthFailed("huawei credentials are malformed")
	}
	var env huaweiEnvelope
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"userName": hc.UserName, "systemCode": hc.SystemCode}).
		SetResult(&env).
		Post("/login")
	if mapped := mapTransportError(resp, err); mapped != nil {
		return "", mapped
	}
	if !env.Success {
		return "", apperrors.AuthFailed("fusionsolar login rejected")
	}
	token := resp.Header().Get("XSRF-TOKEN")
	if token == "" {
		return "", apperrors.AuthFailed("fusionsolar login returned no token")
	}
	return token, nil
}

// post performs an authenticated call, re-logging-in once on session expiry.
func (a *HuaweiAdapter) post(ctx context.Context, creds Credentials, path string, body interface{}, env *huaweiEnvelope) error {
	a.mu.Lock()
	token := a.token
	a.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		if token == "" {
			fresh, err := a.login(ctx, creds)
			if err != nil {
				return err
			}
			a.mu.Lock()
			a.token = fresh
			a.mu.Unlock()
			token = fresh
		}

		resp, err := a.client.R().
			SetContext(ctx).
			SetHeader("XSRF-TOKEN", token).
			SetBody(body).
			SetResult(env).
			Post(path)
		if mapped := mapTransportError(resp, err); mapped != nil {
			return mapped
		}
		if !env.Success && env.FailCode == 305 && attempt == 0 {
			// Session expired: discard the token and retry once.
			a.mu.Lock()
			a.token = ""
			a.mu.Unlock()
			token = ""
			continue
		}
		return env.check()
	}
	return apperrors.AuthFailed("fusionsolar session could not be established")
}

// TestConnection performs a login.
func (a *HuaweiAdapter) TestConnection(ctx context.Context, creds Credentials) (*TestResult, error) {
	if _, err := a.login(ctx, creds); err != nil {
		return nil, err
	}
	return &TestResult{OK: true}, nil
}

type huaweiStationKpi struct {
	DataItemMap struct {
		DayPower   float64 `json:"day_power"`   // kWh
		TotalPower float64 `json:"total_power"` // kWh
		RealPower  float64 `json:"real_health_state_power"` // kW
	} `json:"dataItemMap"`
}

// GetPlantSummary fetches the station real-time KPI and normalizes it.
// The summary's timezone is the stationTimezone field of the KPI response;
// LastSeenAt and SourceSampledAt are the adapter's own clock at fetch time.
func (a *HuaweiAdapter) GetPlantSummary(ctx context.Context, ref PlantRef, creds Credentials) (*domain.NormalizedSummary, error) {
	var env huaweiEnvelope
	body := map[string]string{"stationCodes": ref.VendorPlantID}
	if err := a.post(ctx, creds, "/getStationRealKpi", body, &env); err != nil {
		return nil, err
	}
	var raw []struct {
		StationCode string `json:"stationCode"`
		Timezone    string `json:"stationTimezone"`
		huaweiStationKpi
	}
	if err := json.Unmarshal(env.Data, &raw); err != nil || len(raw) == 0 {
		return nil, apperrors.InvalidData("fusionsolar station kpi is malformed")
	}
	kpi := raw[0]

	now := time.Now().UTC()
	power := wattsFromKW(kpi.DataItemMap.RealPower)
	total := kpi.DataItemMap.TotalPower
	summary := &domain.NormalizedSummary{
		CurrentPowerW:   &power,
		TodayEnergyKWh:  kpi.DataItemMap.DayPower,
		TotalEnergyKWh:  &total,
		LastSeenAt:      now,
		SourceSampledAt: now,
		Timezone:        kpi.Timezone,
	}
	if err := ValidateSummary(summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// GetDailyEnergySeries fetches per-day station KPIs for the range.
func (a *HuaweiAdapter) GetDailyEnergySeries(ctx context.Context, ref PlantRef, creds Credentials, startDate, endDate string) ([]domain.DailyEnergyPoint, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return nil, apperrors.InvalidData("startDate is not YYYY-MM-DD")
	}
	var env huaweiEnvelope
	body := map[string]interface{}{
		"stationCodes": ref.VendorPlantID,
		"collectTime":  start.UnixMilli(),
	}
	if err := a.post(ctx, creds, "/getKpiStationDay", body, &env); err != nil {
		return nil, err
	}
	var raw []struct {
		CollectTime int64 `json:"collectTime"`
		DataItemMap struct {
			InverterPower float64 `json:"inverter_power"` // kWh
		} `json:"dataItemMap"`
	}
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		return nil, apperrors.InvalidData("fusionsolar day kpi is malformed")
	}

	points := make([]domain.DailyEnergyPoint, 0, len(raw))
	for _, r := range raw {
		date := time.UnixMilli(r.CollectTime).UTC().Format("2006-01-02")
		if date < startDate || date > endDate {
			continue
		}
		point := domain.DailyEnergyPoint{Date: date, EnergyKWh: r.DataItemMap.InverterPower}
		if err := ValidateDailyPoint(point); err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	return points, nil
}

// GetAlarmsSince fetches device alarms for the station.
func (a *HuaweiAdapter) GetAlarmsSince(ctx context.Context, ref PlantRef, creds Credentials, since time.Time) ([]domain.NormalizedAlarm, error) {
	var env huaweiEnvelope
	body := map[string]interface{}{
		"stationCodes": ref.VendorPlantID,
		"beginTime":    since.UnixMilli(),
		"endTime":      time.Now().UTC().UnixMilli(),
		"language":     "en_US",
	}
	if err := a.post(ctx, creds, "/getAlarmList", body, &env); err != nil {
		return nil, err
	}
	var raw []struct {
		AlarmID    string `json:"alarmId"`
		DevSN      string `json:"esnCode"`
		AlarmName  string `json:"alarmName"`
		RaiseTime  int64  `json:"raiseTime"` // epoch millis
		Status     int    `json:"status"`    // 1 active, 4 cleared
		Level      int    `json:"lev"`       // 1 critical .. 4 warning
	}
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		return nil, apperrors.InvalidData("fusionsolar alarm list is malformed")
	}

	alarms := make([]domain.NormalizedAlarm, 0, len(raw))
	for _, r := range raw {
		alarm := domain.NormalizedAlarm{
			VendorAlarmCode: r.AlarmID,
			DeviceSN:        r.DevSN,
			Message:         r.AlarmName,
			OccurredAt:      time.UnixMilli(r.RaiseTime).UTC(),
			IsActive:        r.Status == 1,
			Severity:        huaweiSeverity(r.Level),
		}
		if err := ValidateAlarm(&alarm); err != nil {
			return nil, err
		}
		alarms = append(alarms, alarm)
	}
	return alarms, nil
}

// huaweiSeverity maps the vendor scale (1 = most severe) to the shared scale.
func huaweiSeverity(level int) domain.Severity {
	switch level {
	case 1:
		return domain.SeverityCritical
	case 2:
		return domain.SeverityHigh
	case 3:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
