package domain

import "time"

// JobType identifies which pipeline produced a PollLog row.
type JobType string

const (
	JobPoll  JobType = "POLL"
	JobDaily JobType = "DAILY_BACKFILL"
)

// PollStatus is the terminal outcome of one executor run.
type PollStatus string

const (
	PollSuccess PollStatus = "SUCCESS"
	PollError   PollStatus = "ERROR"
)

// PollLog is the append-only audit record: exactly one row per started job,
// even when the pipeline panics after starting.
type PollLog struct {
	ID               string
	PlantID          string
	JobType          JobType
	Status           PollStatus
	DurationMS       int64
	AdapterErrorType string // taxonomy kind, empty on clean success
	HTTPStatus       *int   // optional upstream status; absence is not failure
	StartedAt        time.Time
	FinishedAt       time.Time
}
