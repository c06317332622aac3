// Package monitor holds the derived-state logic of the engine: the pure
// status evaluator, the low-generation/offline derivations, and the alert
// reconciler.
package monitor

import (
	"time"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
)

// LowGenLevel is the derived low-generation severity band.
type LowGenLevel string

const (
	LowGenNone   LowGenLevel = "NONE"
	LowGenYellow LowGenLevel = "YELLOW"
	LowGenRed    LowGenLevel = "RED"
)

// StatusInput is everything the evaluator looks at.
type StatusInput struct {
	IntegrationStatus domain.IntegrationStatus
	Now               time.Time
	LastSeenAt        time.Time // zero when the plant has never reported
	ActiveCritical    int       // count of active CRITICAL alerts
	LowGen            LowGenLevel
}

// EvaluateStatus derives the plant health tag. Pure: first match wins.
// Boundaries are inclusive on the higher side: exactly 2h is YELLOW,
// exactly 24h is RED.
func EvaluateStatus(in StatusInput) domain.PlantStatus {
	if in.IntegrationStatus != domain.IntegrationActive {
		return domain.StatusGrey
	}

	// A plant that never reported is treated as silent beyond the offline
	// threshold.
	hoursSince := 25.0
	if !in.LastSeenAt.IsZero() {
		hoursSince = in.Now.Sub(in.LastSeenAt).Hours()
	}

	if in.ActiveCritical > 0 || hoursSince >= 24 || in.LowGen == LowGenRed {
		return domain.StatusRed
	}
	if hoursSince >= 2 || in.LowGen == LowGenYellow {
		return domain.StatusYellow
	}
	return domain.StatusGreen
}
