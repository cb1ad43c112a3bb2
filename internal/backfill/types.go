package backfill

import (
	"database/sql"
	"time"
)

// JobStatus represents the lifecycle state for an import job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job models the database representation of an import job.
type Job struct {
	JobID           string
	FilePath        string
	DryRun          bool
	Status          JobStatus
	StatusMessage   sql.NullString
	ProgressCurrent int
	ProgressTotal   int
	GamesLoaded     int
	OddsLoaded      int
	OddsSkipped     int
	LastError       sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       sql.NullTime
	CompletedAt     sql.NullTime
}

// JobSpec describes the work to be performed by the runner.
type JobSpec struct {
	FilePath string
	DryRun   bool
}

// Summary counts what an import parsed and wrote.
type Summary struct {
	RowsRead      int `json:"rows_read"`
	RowsSkipped   int `json:"rows_skipped"`
	MalformedRows int `json:"malformed_rows"`
	GamesParsed   int `json:"games_parsed"`
	OddsParsed    int `json:"odds_parsed"`
	GamesLoaded   int `json:"games_loaded"`
	OddsLoaded    int `json:"odds_loaded"`
	OddsSkipped   int `json:"odds_skipped"`
}

// Reporter receives lifecycle callbacks from the runner.
type Reporter interface {
	OnJobStart(spec JobSpec)
	OnProgress(message string, current int, total int)
	OnJobComplete(summary Summary)
	OnJobError(err error)
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	ActiveJob *Job
	History   []*Job
}
