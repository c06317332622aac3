package adapter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/errors"
)

// newRestyClient builds the HTTP client shared by live adapters. The per-call
// timeout is the adapter request budget from config; retries stay in the
// BrandQueue, not in the transport, so the queue's backoff policy is the only
// retry policy.
func newRestyClient(baseURL string, timeoutSec int) *resty.Client {
	if timeoutSec <= 0 {
		timeoutSec = 8
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(time.Duration(timeoutSec) * time.Second).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
}

// mapTransportError folds a resty outcome into the closed taxonomy.
func mapTransportError(resp *resty.Response, err error) error {
	if err != nil {
		// resty surfaces deadline and connection failures here.
		return apperrors.Wrap(err, apperrors.KindNetworkTimeout, "vendor request failed")
	}
	if resp == nil {
		return apperrors.New(apperrors.KindUnknown, "vendor request produced no response")
	}
	status := resp.StatusCode()
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.AuthFailed("vendor rejected credentials").WithHTTPStatus(status)
	case status == http.StatusNotFound:
		return apperrors.PlantNotFound("vendor has no such plant").WithHTTPStatus(status)
	case status == http.StatusTooManyRequests:
		return apperrors.RateLimited("vendor rate limit", parseRetryAfter(resp)).WithHTTPStatus(status)
	case status >= 500:
		return apperrors.NetworkTimeout("vendor server error").WithHTTPStatus(status)
	case status >= 400:
		return apperrors.InvalidData("vendor rejected request").WithHTTPStatus(status)
	}
	return nil
}

// parseRetryAfter reads the Retry-After header as delta-seconds. Zero when
// absent or unparseable; the queue then falls back to its default backoff.
func parseRetryAfter(resp *resty.Response) time.Duration {
	v := resp.Header().Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// wattsFromKW converts a vendor kW reading to the canonical watts.
func wattsFromKW(kw float64) float64 { return kw * 1000 }
