package backfill

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fortuna/augur/internal/store"
)

var jobFields = []string{
	"job_id", "job_type", "sport", "start_season", "end_season", "entities",
	"status", "status_message", "progress_current", "progress_total",
	"last_error", "retry_count", "created_at", "updated_at", "started_at", "completed_at",
}

// columns renders jobFields, qualified by table when it is non-empty.
func columns(table string) string {
	if table == "" {
		return strings.Join(jobFields, ", ")
	}
	qualified := make([]string, len(jobFields))
	for i, f := range jobFields {
		qualified[i] = table + "." + f
	}
	return strings.Join(qualified, ", ")
}

var (
	insertJobSQL = `
		INSERT INTO backfill_jobs (job_type, sport, start_season, end_season, entities,
			status, status_message, progress_current, progress_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + columns("")

	claimJobSQL = `
		WITH next_job AS (
			SELECT job_id FROM backfill_jobs
			WHERE status = 'queued'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE backfill_jobs
		SET status = 'running',
			status_message = 'Starting job...',
			started_at = COALESCE(started_at, NOW()),
			updated_at = NOW()
		FROM next_job
		WHERE backfill_jobs.job_id = next_job.job_id
		RETURNING ` + columns("backfill_jobs")

	activeJobSQL = `SELECT ` + columns("") + `
		FROM backfill_jobs WHERE status = 'running'
		ORDER BY started_at DESC LIMIT 1`

	recentJobsSQL = `SELECT ` + columns("") + `
		FROM backfill_jobs ORDER BY created_at DESC LIMIT $1`
)

// Repository persists backfill jobs and their event log in Postgres.
type Repository struct {
	db *store.Database
}

// NewRepository constructs a Repository.
func NewRepository(db *store.Database) *Repository {
	return &Repository{db: db}
}

// CreateJob inserts a queued job and returns the stored row.
func (r *Repository) CreateJob(ctx context.Context, job *Job) (*Job, error) {
	row := r.db.DB().QueryRowContext(ctx, insertJobSQL,
		job.JobType, job.Sport, job.StartSeason, job.EndSeason, job.Entities,
		job.Status, job.StatusMessage, job.ProgressCurrent, job.ProgressTotal,
	)
	stored, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return stored, nil
}

// UpdateStatus moves a job to status. Terminal states stamp completed_at
// and failures bump retry_count.
func (r *Repository) UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error {
	var errText sql.NullString
	if lastErr != nil {
		errText = sql.NullString{String: lastErr.Error(), Valid: true}
	}
	return r.exec(ctx, "update job status", `
		UPDATE backfill_jobs
		SET status = $2,
			status_message = $3,
			last_error = $4,
			retry_count = retry_count + $5,
			completed_at = CASE WHEN $6 THEN NOW() ELSE completed_at END,
			updated_at = NOW()
		WHERE job_id = $1`,
		jobID, string(status), message, errText, boolInt(status == JobStatusFailed), status.Terminal())
}

// UpdateProgress records the progress counters and message.
func (r *Repository) UpdateProgress(ctx context.Context, jobID string, current, total int, message string) error {
	return r.exec(ctx, "update job progress", `
		UPDATE backfill_jobs
		SET progress_current = $2, progress_total = $3, status_message = $4, updated_at = NOW()
		WHERE job_id = $1`,
		jobID, current, total, message)
}

// AppendEvent adds an entry to a job's event log.
func (r *Repository) AppendEvent(ctx context.Context, jobID string, eventType, message string, current, total *int) error {
	return r.exec(ctx, "insert job event", `
		INSERT INTO backfill_job_events (job_id, event_type, message, progress_current, progress_total)
		VALUES ($1, $2, $3, $4, $5)`,
		jobID, eventType, message, nullInt(current), nullInt(total))
}

// ResetStuckJobs requeues jobs left running by a previous process.
func (r *Repository) ResetStuckJobs(ctx context.Context) error {
	return r.exec(ctx, "reset stuck jobs", `
		UPDATE backfill_jobs
		SET status = 'queued', status_message = 'Reset after service restart', updated_at = NOW()
		WHERE status = 'running'`)
}

// CancelJob cancels a job that has not started yet.
func (r *Repository) CancelJob(ctx context.Context, jobID string) error {
	res, err := r.db.DB().ExecContext(ctx, `
		UPDATE backfill_jobs
		SET status = 'cancelled', status_message = 'Cancelled', completed_at = NOW(), updated_at = NOW()
		WHERE job_id = $1 AND status = 'queued'`, jobID)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("cancel job %s: %w", jobID, store.ErrNotFound)
	}
	return nil
}

// MarkNextJobRunning claims the oldest queued job, or returns nil when the
// queue is empty. Concurrent workers never claim the same job.
func (r *Repository) MarkNextJobRunning(ctx context.Context) (*Job, error) {
	return r.one(ctx, "claim job", claimJobSQL)
}

// GetActiveJob returns the running job, if any.
func (r *Repository) GetActiveJob(ctx context.Context) (*Job, error) {
	return r.one(ctx, "get active job", activeJobSQL)
}

// ListRecentJobs returns the newest jobs first.
func (r *Repository) ListRecentJobs(ctx context.Context, limit int) ([]*Job, error) {
	rows, err := r.db.DB().QueryContext(ctx, recentJobsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *Repository) one(ctx context.Context, op, query string, args ...interface{}) (*Job, error) {
	job, err := scanJob(r.db.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return job, nil
}

func (r *Repository) exec(ctx context.Context, op, query string, args ...interface{}) error {
	if _, err := r.db.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	err := row.Scan(
		&j.JobID, &j.JobType, &j.Sport, &j.StartSeason, &j.EndSeason, &j.Entities,
		&j.Status, &j.StatusMessage, &j.ProgressCurrent, &j.ProgressTotal,
		&j.LastError, &j.RetryCount, &j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
