package domain

import (
	"fmt"
	"time"
)

// JobTicket is one unit of poll work. The ID is deterministic so a submission
// that matches a pending or running ticket collapses to a no-op.
type JobTicket struct {
	ID         string
	PlantID    string
	Brand      Brand
	JobType    JobType
	Attempt    int
	EnqueuedAt time.Time
}

// PollTicketID builds the deterministic id for the recurring latest-data poll.
func PollTicketID(plantID string) string {
	return fmt.Sprintf("poll:plant:%s:latest", plantID)
}

// DailyTicketID builds the deterministic id for a daily backfill job.
func DailyTicketID(plantID, date string) string {
	return fmt.Sprintf("daily:plant:%s:%s", plantID, date)
}

// PlantLockKey is the distributed exclusion lock key for a plant.
func PlantLockKey(plantID string) string {
	return fmt.Sprintf("lock:plant:%s", plantID)
}
