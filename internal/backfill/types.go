package backfill

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/fortuna/augur/internal/sport"
)

// JobType is what a backfill job scrapes.
type JobType string

const (
	// JobTypeSeasons scrapes whole seasons of a team sport.
	JobTypeSeasons JobType = "seasons"
	// JobTypeEntities scrapes the full history of named players.
	JobTypeEntities JobType = "entities"
)

// JobStatus is where a job is in its lifecycle.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further work happens in this state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is a row of backfill_jobs.
type Job struct {
	JobID           string
	JobType         JobType
	Sport           string
	StartSeason     sql.NullInt64
	EndSeason       sql.NullInt64
	Entities        pq.StringArray
	Status          JobStatus
	StatusMessage   sql.NullString
	ProgressCurrent int
	ProgressTotal   int
	LastError       sql.NullString
	RetryCount      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       sql.NullTime
	CompletedAt     sql.NullTime
}

// Copy returns a shallow copy.
func (j *Job) Copy() *Job {
	if j == nil {
		return nil
	}
	cpy := *j
	cpy.Entities = append(pq.StringArray(nil), j.Entities...)
	return &cpy
}

// JobSpec is the validated work a Runner performs.
type JobSpec struct {
	Type        JobType
	Sport       sport.Sport
	StartSeason int
	EndSeason   int
	Entities    []string
	DryRun      bool
}

// Reporter receives lifecycle callbacks from the runner.
type Reporter interface {
	OnJobStart(spec JobSpec)
	OnSeasonStart(season int, index int, total int)
	OnEntitiesProcessed(names []string)
	OnProgress(message string, current int, total int)
	OnJobComplete()
	OnJobError(err error)
}

// StatusSummary is the running job plus recent history.
type StatusSummary struct {
	ActiveJob *Job
	History   []*Job
}
