package adapter

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	apperrors "github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/errors"
)

const solisBaseURL = "https://www.soliscloud.com:13333"

// solisCredentials is the decrypted credential document for SolisCloud.
type solisCredentials struct {
	KeyID     string `json:"keyId"`
	KeySecret string `json:"keySecret"`
}

// SolisAdapter speaks the SolisCloud platform API (HMAC-SHA1 signed requests).
type SolisAdapter struct {
	client *resty.Client
}

// NewSolisAdapter creates the live SOLIS adapter.
func NewSolisAdapter(timeoutSec int) *SolisAdapter {
	return &SolisAdapter{client: newRestyClient(solisBaseURL, timeoutSec)}
}

var _ VendorAdapter = (*SolisAdapter)(nil)

// Capabilities returns the SOLIS limits.
func (a *SolisAdapter) Capabilities() Capabilities {
	return brandCapabilities(domain.BrandSolis)
}

// solisSign builds the SolisCloud Authorization header: the request body is
// MD5-summed, then "POST\n{md5}\napplication/json\n{date}\n{path}" is
// HMAC-SHA1 signed with the key secret.
func solisSign(creds solisCredentials, body []byte, path string, now time.Time) (authorization, contentMD5, date string) {
	sum := md5.Sum(body)
	contentMD5 = base64.StdEncoding.EncodeToString(sum[:])
	date = now.UTC().Format(http1123)

	payload := fmt.Sprintf("POST\n%s\napplication/json\n%s\n%s", contentMD5, date, path)
	mac := hmac.New(sha1.New, []byte(creds.KeySecret))
	mac.Write([]byte(payload))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	authorization = fmt.Sprintf("API %s:%s", creds.KeyID, signature)
	return authorization, contentMD5, date
}

const http1123 = "Mon, 02 Jan 2006 15:04:05 GMT"

func (a *SolisAdapter) post(ctx context.Context, creds Credentials, path string, reqBody, result interface{}) error {
	var sc solisCredentials
	if err := json.Unmarshal(creds, &sc); err != nil {
		return apperrors.AuthFailed("solis credentials are malformed")
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return apperrors.Unknown(err, "marshal solis request")
	}
	auth, contentMD5, date := solisSign(sc, body, path, time.Now())

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Authorization", auth).
		SetHeader("Content-MD5", contentMD5).
		SetHeader("Date", date).
		SetBody(body).
		SetResult(result).
		Post(path)
	if mapped := mapTransportError(resp, err); mapped != nil {
		return mapped
	}
	return nil
}

type solisEnvelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func (e *solisEnvelope) check() error {
	if e.Success {
		return nil
	}
	switch e.Code {
	case "2102", "403":
		return apperrors.AuthFailed("soliscloud: " + e.Msg)
	case "B0404":
		return apperrors.PlantNotFound("soliscloud: " + e.Msg)
	default:
		return apperrors.New(apperrors.KindUnknown, "soliscloud: "+e.Msg)
	}
}

// TestConnection probes the station list endpoint with page size 1.
func (a *SolisAdapter) TestConnection(ctx context.Context, creds Credentials) (*TestResult, error) {
	var env solisEnvelope
	req := map[string]interface{}{"pageNo": 1, "pageSize": 1}
	if err := a.post(ctx, creds, "/v1/api/userStationList", req, &env); err != nil {
		return nil, err
	}
	if err := env.check(); err != nil {
		return nil, err
	}
	return &TestResult{OK: true}, nil
}

type solisStationDetail struct {
	Power         float64 `json:"power"`         // kW
	DayEnergy     float64 `json:"dayEnergy"`     // kWh
	AllEnergy     float64 `json:"allEnergy"`     // kWh
	GridPurchased float64 `json:"psum"`          // kW, negative = import
	DataTimestamp int64   `json:"dataTimestamp"` // epoch millis
	TimeZoneName  string  `json:"timeZoneName"`
}

// GetPlantSummary fetches the station detail and normalizes it (kW → W).
func (a *SolisAdapter) GetPlantSummary(ctx context.Context, ref PlantRef, creds Credentials) (*domain.NormalizedSummary, error) {
	var env solisEnvelope
	req := map[string]interface{}{"id": ref.VendorPlantID}
	if err := a.post(ctx, creds, "/v1/api/stationDetail", req, &env); err != nil {
		return nil, err
	}
	if err := env.check(); err != nil {
		return nil, err
	}
	var detail solisStationDetail
	if err := json.Unmarshal(env.Data, &detail); err != nil {
		return nil, apperrors.InvalidData("soliscloud station detail is malformed")
	}

	sampled := time.UnixMilli(detail.DataTimestamp).UTC()
	power := wattsFromKW(detail.Power)
	grid := wattsFromKW(detail.GridPurchased)
	total := detail.AllEnergy
	summary := &domain.NormalizedSummary{
		CurrentPowerW:       &power,
		TodayEnergyKWh:      detail.DayEnergy,
		TotalEnergyKWh:      &total,
		GridInjectionPowerW: &grid,
		LastSeenAt:          sampled,
		SourceSampledAt:     sampled,
		Timezone:            detail.TimeZoneName,
	}
	if err := ValidateSummary(summary); err != nil {
		return nil, err
	}
	return summary, nil
}

type solisDayPoint struct {
	Date   string  `json:"dateStr"` // YYYY-MM-DD
	Energy float64 `json:"energy"`  // kWh
}

// GetDailyEnergySeries fetches per-day energy for the date range.
func (a *SolisAdapter) GetDailyEnergySeries(ctx context.Context, ref PlantRef, creds Credentials, startDate, endDate string) ([]domain.DailyEnergyPoint, error) {
	var env solisEnvelope
	req := map[string]interface{}{
		"id":        ref.VendorPlantID,
		"startTime": startDate,
		"endTime":   endDate,
		"timeType":  2, // daily granularity
	}
	if err := a.post(ctx, creds, "/v1/api/stationDayEnergyList", req, &env); err != nil {
		return nil, err
	}
	if err := env.check(); err != nil {
		return nil, err
	}
	var raw []solisDayPoint
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		return nil, apperrors.InvalidData("soliscloud day energy list is malformed")
	}
	points := make([]domain.DailyEnergyPoint, 0, len(raw))
	for _, p := range raw {
		point := domain.DailyEnergyPoint{Date: p.Date, EnergyKWh: p.Energy}
		if err := ValidateDailyPoint(point); err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	return points, nil
}

type solisAlarm struct {
	AlarmCode  string `json:"alarmCode"`
	DeviceSN   string `json:"alarmDeviceSn"`
	AlarmMsg   string `json:"alarmMsg"`
	AlarmTime  int64  `json:"alarmBeginTime"` // epoch millis
	State      string `json:"state"`          // "0" active, "1" cleared
	AlarmLevel string `json:"alarmLevel"`     // 1..4
}

// GetAlarmsSince fetches station alarms and maps the vendor level scale.
func (a *SolisAdapter) GetAlarmsSince(ctx context.Context, ref PlantRef, creds Credentials, since time.Time) ([]domain.NormalizedAlarm, error) {
	var env solisEnvelope
	req := map[string]interface{}{
		"stationId":      ref.VendorPlantID,
		"alarmBeginTime": since.UTC().Format("2006-01-02 15:04:05"),
		"pageNo":         1,
		"pageSize":       100,
	}
	if err := a.post(ctx, creds, "/v1/api/alarmList", req, &env); err != nil {
		return nil, err
	}
	if err := env.check(); err != nil {
		return nil, err
	}
	var raw struct {
		Records []solisAlarm `json:"records"`
	}
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		return nil, apperrors.InvalidData("soliscloud alarm list is malformed")
	}

	alarms := make([]domain.NormalizedAlarm, 0, len(raw.Records))
	for _, r := range raw.Records {
		alarm := domain.NormalizedAlarm{
			VendorAlarmCode: r.AlarmCode,
			DeviceSN:        r.DeviceSN,
			Message:         r.AlarmMsg,
			OccurredAt:      time.UnixMilli(r.AlarmTime).UTC(),
			IsActive:        r.State == "0",
			Severity:        solisSeverity(r.AlarmLevel),
		}
		if err := ValidateAlarm(&alarm); err != nil {
			return nil, err
		}
		alarms = append(alarms, alarm)
	}
	return alarms, nil
}

func solisSeverity(level string) domain.Severity {
	switch level {
	case "4":
		return domain.SeverityCritical
	case "3":
		return domain.SeverityHigh
	case "2":
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
