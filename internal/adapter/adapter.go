// Package adapter isolates vendor specifics behind the normalization contract.
//
// Every brand implements VendorAdapter; the executor only ever sees normalized
// values (watts, kilowatt-hours, UTC instants, IANA zones). Unit conversion
// and payload validation live inside each adapter, never in consumers.
package adapter

import (
	"context"
	"time"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
)

// Credentials is a decrypted vendor credential document (JSON). Callers wipe
// it with Zero when the job finishes; it never traverses logs.
type Credentials []byte

// Zero wipes the credential bytes in place.
func (c Credentials) Zero() {
	for i := range c {
		c[i] = 0
	}
}

// PlantRef identifies a plant at the vendor.
type PlantRef struct {
	PlantID       string
	VendorPlantID string
}

// Capabilities describes a brand's polling limits and feature support.
// BrandQueue sizing and rate caps come from here, not from config.
type Capabilities struct {
	Brand               domain.Brand
	MaxConcurrent       int
	MaxPerMinute        int
	MinIntervalSec      int
	SupportsDailySeries bool
	SupportsAlarms      bool
	SupportsDeviceList  bool
}

// TestResult is the outcome of a connection probe.
type TestResult struct {
	OK        bool
	VendorMsg string
}

// VendorAdapter is the polymorphic brand contract.
//
// Every method returns normalized data or an *errors.AdapterError; adapters
// never leak raw vendor errors. All calls honor the context deadline (the
// executor applies the per-request timeout).
type VendorAdapter interface {
	// TestConnection verifies the credentials without touching plant data.
	TestConnection(ctx context.Context, creds Credentials) (*TestResult, error)

	// GetPlantSummary fetches the latest production summary.
	GetPlantSummary(ctx context.Context, ref PlantRef, creds Credentials) (*domain.NormalizedSummary, error)

	// GetDailyEnergySeries fetches per-day energy for [startDate, endDate]
	// (inclusive, local YYYY-MM-DD).
	GetDailyEnergySeries(ctx context.Context, ref PlantRef, creds Credentials, startDate, endDate string) ([]domain.DailyEnergyPoint, error)

	// GetAlarmsSince fetches vendor alarms that occurred at or after since.
	GetAlarmsSince(ctx context.Context, ref PlantRef, creds Credentials, since time.Time) ([]domain.NormalizedAlarm, error)

	// Capabilities returns the brand's static limits.
	Capabilities() Capabilities
}
