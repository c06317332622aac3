package domain

import (
	"time"
)

// MetricSnapshot is one row per plant per local calendar day. The date is the
// local day in the plant's timezone, never UTC; the unique key (plant_id, date)
// enforces at most one row per plant per local day.
type MetricSnapshot struct {
	PlantID             string
	Date                string // YYYY-MM-DD local day
	Timezone            string
	TodayEnergyKWh      float64 // required, never null
	CurrentPowerW       *float64
	GridInjectionPowerW *float64
	TotalEnergyKWh      *float64
	LastSeenAt          time.Time
	SourceSampledAt     time.Time
	UpdatedAt           time.Time
}

// NormalizedSummary is the canonical shape every adapter returns: power in
// watts, energy in kilowatt-hours, UTC instants, IANA timezone.
type NormalizedSummary struct {
	CurrentPowerW       *float64  `json:"currentPowerW"`
	TodayEnergyKWh      float64   `json:"todayEnergyKWh"`
	TotalEnergyKWh      *float64  `json:"totalEnergyKWh,omitempty"`
	GridInjectionPowerW *float64  `json:"gridInjectionPowerW,omitempty"`
	LastSeenAt          time.Time `json:"lastSeenAt"`
	SourceSampledAt     time.Time `json:"sourceSampledAt"`
	Timezone            string    `json:"timezone"`
}

// DailyEnergyPoint is one entry of a daily energy series.
type DailyEnergyPoint struct {
	Date      string  `json:"date"` // YYYY-MM-DD
	EnergyKWh float64 `json:"energyKWh"`
}

// LocalDate formats an instant as the calendar date in loc.
func LocalDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// DaysBefore returns the local date n days before the local day of t.
func DaysBefore(t time.Time, loc *time.Location, n int) string {
	return t.In(loc).AddDate(0, 0, -n).Format("2006-01-02")
}
