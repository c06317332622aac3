package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	apperrors "github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/errors"
)

const goodweBaseURL = "https://semsportal.com/api"

// goodweCredentials is the decrypted credential document for SEMS Portal.
type goodweCredentials struct {
	Account  string `json:"account"`
	Password string `json:"password"`
}

// GoodweAdapter speaks the SEMS Portal API. Auth is a cross-login that yields
// a base64 token document passed back in the Token header.
type GoodweAdapter struct {
	client *resty.Client

	mu    sync.Mutex
	token string
}

// NewGoodweAdapter creates the live GOODWE adapter.
func NewGoodweAdapter(timeoutSec int) *GoodweAdapter {
	return &GoodweAdapter{client: newRestyClient(goodweBaseURL, timeoutSec)}
}

var _ VendorAdapter = (*GoodweAdapter)(nil)

// Capabilities returns the GOODWE limits.
func (a *GoodweAdapter) Capabilities() Capabilities {
	return brandCapabilities(domain.BrandGoodwe)
}

type goodweEnvelope struct {
	HasError bool            `json:"hasError"`
	Code     int             `json:"code"`
	Msg      string          `json:"msg"`
	Data     json.RawMessage `json:"data"`
}

func (e *goodweEnvelope) check() error {
	if !e.HasError && e.Code == 0 {
		return nil
	}
	switch e.Code {
	case 100001, 100002:
		return apperrors.AuthFailed("sems: " + e.Msg)
	case 100004:
		return apperrors.PlantNotFound("sems: " + e.Msg)
	default:
		return apperrors.New(apperrors.KindUnknown, "sems: "+e.Msg)
	}
}

func (a *GoodweAdapter) login(ctx context.Context, creds Credentials) (string, error) {
	var gc goodweCredentials
	if err := json.Unmarshal(creds, &gc); err != nil {
		return "", apperrors.AuthFailed("goodwe credentials are malformed")
	}
	var env goodweEnvelope
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Token", `{"version":"v2.1.0","client":"ios","language":"en"}`).
		SetBody(map[string]string{"account": gc.Account, "pwd": gc.Password}).
		SetResult(&env).
		Post("/v2/Common/CrossLogin")
	if mapped := mapTransportError(resp, err); mapped != nil {
		return "", mapped
	}
	if err := env.check(); err != nil {
		return "", err
	}
	// The data document itself becomes the session token.
	token := base64.StdEncoding.EncodeToString(env.Data)
	if len(env.Data) == 0 {
		return "", apperrors.AuthFailed("sems login returned no session")
	}
	return token, nil
}

func (a *GoodweAdapter) post(ctx context.Context, creds Credentials, path string, body interface{}, env *goodweEnvelope) error {
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
			SetHeader("Token", token).
			SetBody(body).
			SetResult(env).
			Post(path)
		if mapped := mapTransportError(resp, err); mapped != nil {
			return mapped
		}
		if env.Code == 100001 && attempt == 0 {
			a.mu.Lock()
			a.token = ""
			a.mu.Unlock()
			token = ""
			continue
		}
		return env.check()
	}
	return apperrors.AuthFailed("sems session could not be established")
}

// TestConnection performs a login.
func (a *GoodweAdapter) TestConnection(ctx context.Context, creds Credentials) (*TestResult, error) {
	if _, err := a.login(ctx, creds); err != nil {
		return nil, err
	}
	return &TestResult{OK: true}, nil
}

type goodweMonitorDetail struct {
	Kpi struct {
		Pac        float64 `json:"pac"`         // W
		PowerToday float64 `json:"power"`       // kWh
		TotalPower float64 `json:"total_power"` // kWh
	} `json:"kpi"`
	Info struct {
		Timezone string `json:"time_zone"` // IANA
		Time     string `json:"time"`      // "2006-01-02 15:04:05" local
	} `json:"info"`
}

// GetPlantSummary fetches the monitor detail. SEMS already reports pac in
// watts; energies are kWh.
func (a *GoodweAdapter) GetPlantSummary(ctx context.Context, ref PlantRef, creds Credentials) (*domain.NormalizedSummary, error) {
	var env goodweEnvelope
	body := map[string]string{"powerStationId": ref.VendorPlantID}
	if err := a.post(ctx, creds, "/v2/PowerStation/GetMonitorDetailByPowerstationId", body, &env); err != nil {
		return nil, err
	}
	var detail goodweMonitorDetail
	if err := json.Unmarshal(env.Data, &detail); err != nil {
		return nil, apperrors.InvalidData("sems monitor detail is malformed")
	}

	if err := ValidateTimezone(detail.Info.Timezone); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(detail.Info.Timezone)
	if err != nil {
		return nil, apperrors.InvalidData("sems timezone could not be loaded")
	}
	sampled, err := time.ParseInLocation("2006-01-02 15:04:05", detail.Info.Time, loc)
	if err != nil {
		return nil, apperrors.InvalidData("sems sample time is malformed")
	}

	power := detail.Kpi.Pac
	total := detail.Kpi.TotalPower
	summary := &domain.NormalizedSummary{
		CurrentPowerW:   &power,
		TodayEnergyKWh:  detail.Kpi.PowerToday,
		TotalEnergyKWh:  &total,
		LastSeenAt:      sampled.UTC(),
		SourceSampledAt: sampled.UTC(),
		Timezone:        detail.Info.Timezone,
	}
	if err := ValidateSummary(summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// GetDailyEnergySeries fetches the generation chart for the range.
func (a *GoodweAdapter) GetDailyEnergySeries(ctx context.Context, ref PlantRef, creds Credentials, startDate, endDate string) ([]domain.DailyEnergyPoint, error) {
	var env goodweEnvelope
	body := map[string]interface{}{
		"id":    ref.VendorPlantID,
		"range": 2, // daily buckets
		"date":  endDate,
	}
	if err := a.post(ctx, creds, "/v2/Charts/GetChartByPlant", body, &env); err != nil {
		return nil, err
	}
	var raw struct {
		Generation []struct {
			Date   string  `json:"x"` // YYYY-MM-DD
			Energy float64 `json:"y"` // kWh
		} `json:"generation"`
	}
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		return nil, apperrors.InvalidData("sems chart is malformed")
	}

	points := make([]domain.DailyEnergyPoint, 0, len(raw.Generation))
	for _, g := range raw.Generation {
		if g.Date < startDate || g.Date > endDate {
			continue
		}
		point := domain.DailyEnergyPoint{Date: g.Date, EnergyKWh: g.Energy}
		if err := ValidateDailyPoint(point); err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	return points, nil
}

// GetAlarmsSince fetches station warnings.
func (a *GoodweAdapter) GetAlarmsSince(ctx context.Context, ref PlantRef, creds Credentials, since time.Time) ([]domain.NormalizedAlarm, error) {
	var env goodweEnvelope
	body := map[string]interface{}{
		"stationid": ref.VendorPlantID,
		"status":    0, // all
	}
	if err := a.post(ctx, creds, "/v1/Warning/PowerstationWarningsQuery", body, &env); err != nil {
		return nil, err
	}
	var raw []struct {
		WarningCode string `json:"warning_code"`
		DeviceSN    string `json:"sn"`
		Message     string `json:"warning_info"`
		HappenTime  string `json:"happen_time"` // "2006-01-02 15:04:05" UTC
		Recovered   bool   `json:"is_recovered"`
		Level       int    `json:"warning_level"` // 1 low .. 3 high
	}
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		return nil, apperrors.InvalidData("sems warnings are malformed")
	}

	alarms := make([]domain.NormalizedAlarm, 0, len(raw))
	for _, w := range raw {
		occurred, err := time.ParseInLocation("2006-01-02 15:04:05", w.HappenTime, time.UTC)
		if err != nil {
			return nil, apperrors.InvalidData("sems warning time is malformed")
		}
		if occurred.Before(since) {
			continue
		}
		alarm := domain.NormalizedAlarm{
			VendorAlarmCode: w.WarningCode,
			DeviceSN:        w.DeviceSN,
			Message:         w.Message,
			OccurredAt:      occurred,
			IsActive:        !w.Recovered,
			Severity:        goodweSeverity(w.Level),
		}
		if err := ValidateAlarm(&alarm); err != nil {
			return nil, err
		}
		alarms = append(alarms, alarm)
	}
	return alarms, nil
}

func goodweSeverity(level int) domain.Severity {
	switch level {
	case 3:
		return domain.SeverityCritical
	case 2:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}
