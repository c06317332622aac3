package adapter

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	apperrors "github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/errors"
)

// ValidateSummary enforces the normalization contract on an adapter result.
// Adapters call it before returning; the executor calls it again as a guard,
// so a misbehaving adapter can never push a partial row into the store.
func ValidateSummary(s *domain.NormalizedSummary) error {
	if s == nil {
		return apperrors.InvalidData("summary is nil")
	}
	if err := validEnergy("todayEnergyKWh", s.TodayEnergyKWh); err != nil {
		return err
	}
	if s.TotalEnergyKWh != nil {
		if err := validEnergy("totalEnergyKWh", *s.TotalEnergyKWh); err != nil {
			return err
		}
	}
	if s.CurrentPowerW != nil {
		if err := validPower("currentPowerW", *s.CurrentPowerW, false); err != nil {
			return err
		}
	}
	// Grid injection may be negative (import) when the vendor distinguishes
	// direction; it still has to be finite.
	if s.GridInjectionPowerW != nil {
		if err := validPower("gridInjectionPowerW", *s.GridInjectionPowerW, true); err != nil {
			return err
		}
	}
	if s.LastSeenAt.IsZero() {
		return apperrors.InvalidData("lastSeenAt is missing")
	}
	if s.SourceSampledAt.IsZero() {
		return apperrors.InvalidData("sourceSampledAt is missing")
	}
	if err := ValidateTimezone(s.Timezone); err != nil {
		return err
	}
	return nil
}

// ValidateTimezone rejects empty zones and fixed offsets; only real IANA
// names are accepted.
func ValidateTimezone(tz string) error {
	if tz == "" {
		return apperrors.InvalidData("timezone is empty")
	}
	if tz == "Local" {
		return apperrors.InvalidData("timezone must be explicit, not Local")
	}
	// Fixed offsets like "+03:00" or "UTC-3" are not IANA zones.
	if strings.HasPrefix(tz, "+") || strings.HasPrefix(tz, "-") ||
		strings.ContainsAny(tz, "+") || (strings.HasPrefix(tz, "UTC") && tz != "UTC") {
		return apperrors.InvalidData(fmt.Sprintf("timezone %q is a fixed offset, not an IANA zone", tz))
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return apperrors.InvalidData(fmt.Sprintf("timezone %q is not a valid IANA zone", tz))
	}
	return nil
}

// ValidateAlarm enforces the normalization contract on a vendor alarm.
func ValidateAlarm(a *domain.NormalizedAlarm) error {
	if a == nil {
		return apperrors.InvalidData("alarm is nil")
	}
	if !domain.ValidSeverity(a.Severity) {
		return apperrors.InvalidData(fmt.Sprintf("alarm severity %q is not one of LOW/MEDIUM/HIGH/CRITICAL", a.Severity))
	}
	if a.OccurredAt.IsZero() {
		return apperrors.InvalidData("alarm occurredAt is missing")
	}
	return nil
}

// ValidateDailyPoint enforces the contract on one series entry.
func ValidateDailyPoint(p domain.DailyEnergyPoint) error {
	if _, err := time.Parse("2006-01-02", p.Date); err != nil {
		return apperrors.InvalidData(fmt.Sprintf("series date %q is not YYYY-MM-DD", p.Date))
	}
	return validEnergy("series energyKWh", p.EnergyKWh)
}

func validEnergy(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return apperrors.InvalidData(fmt.Sprintf("%s is not finite", field))
	}
	if v < 0 {
		return apperrors.InvalidData(fmt.Sprintf("%s is negative: %v", field, v))
	}
	return nil
}

func validPower(field string, v float64, allowNegative bool) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return apperrors.InvalidData(fmt.Sprintf("%s is not finite", field))
	}
	if v < 0 && !allowNegative {
		return apperrors.InvalidData(fmt.Sprintf("%s is negative: %v", field, v))
	}
	return nil
}
