package backfill

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/sport"
)

// Request represents a backfill invocation request.
type Request struct {
	Sport       string   `json:"sport"`
	StartSeason int      `json:"start_season,omitempty"`
	EndSeason   int      `json:"end_season,omitempty"`
	Entities    []string `json:"entities,omitempty"`
	DryRun      bool     `json:"dry_run,omitempty"`
}

// DeriveType infers the job type based on populated fields.
func (r Request) DeriveType() (JobType, error) {
	if r.StartSeason > 0 || r.EndSeason > 0 {
		return JobTypeSeasons, nil
	}
	if len(r.Entities) > 0 {
		return JobTypeEntities, nil
	}
	return "", fmt.Errorf("unable to determine job type from request")
}

// Spec converts a request into a runnable spec.
func (r Request) Spec() (JobSpec, error) {
	s, err := sport.Parse(r.Sport)
	if err != nil {
		return JobSpec{}, err
	}
	jobType, err := r.DeriveType()
	if err != nil {
		return JobSpec{}, err
	}

	spec := JobSpec{
		Type:        jobType,
		Sport:       s,
		StartSeason: r.StartSeason,
		EndSeason:   r.EndSeason,
		Entities:    cleanNames(r.Entities),
		DryRun:      r.DryRun,
	}
	if spec.EndSeason == 0 {
		spec.EndSeason = spec.StartSeason
	}
	if spec.StartSeason == 0 {
		spec.StartSeason = spec.EndSeason
	}
	return spec, Validate(spec)
}

type jobStore interface {
	CreateJob(ctx context.Context, job *Job) (*Job, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error
	UpdateProgress(ctx context.Context, jobID string, current, total int, message string) error
	AppendEvent(ctx context.Context, jobID string, eventType, message string, current, total *int) error
	ResetStuckJobs(ctx context.Context) error
	CancelJob(ctx context.Context, jobID string) error
	MarkNextJobRunning(ctx context.Context) (*Job, error)
	GetActiveJob(ctx context.Context) (*Job, error)
	ListRecentJobs(ctx context.Context, limit int) ([]*Job, error)
}

type runner interface {
	Run(ctx context.Context, spec JobSpec, reporter Reporter) error
}

// Service coordinates job persistence, execution, and status reporting.
type Service struct {
	repo   jobStore
	runner runner

	historyLimit int
	pollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *zap.Logger
}

// NewService constructs a Service. Call Start to launch workers.
func NewService(repo *Repository, r *Runner, logger *zap.Logger) *Service {
	return newService(repo, r, logger)
}

func newService(repo jobStore, r runner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		repo:         repo,
		runner:       r,
		historyLimit: 10,
		pollInterval: 3 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger.Named("backfill"),
	}
}

// Start launches the background worker loop.
func (s *Service) Start() {
	if err := s.repo.ResetStuckJobs(s.ctx); err != nil {
		s.logger.Warn("failed to reset jobs", zap.Error(err))
	}

	s.wg.Add(1)
	go s.worker()
}

// Shutdown stops workers and waits for completion.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Enqueue creates a new job from the provided request. A dry run is
// validated and returned without being stored.
func (s *Service) Enqueue(ctx context.Context, req Request) (*Job, error) {
	spec, err := req.Spec()
	if err != nil {
		return nil, err
	}

	job := &Job{
		JobType:       spec.Type,
		Sport:         spec.Sport.String(),
		Status:        JobStatusQueued,
		StatusMessage: sql.NullString{String: "Queued", Valid: true},
		ProgressTotal: ProgressUnits(spec),
	}
	switch spec.Type {
	case JobTypeSeasons:
		job.StartSeason = sql.NullInt64{Int64: int64(spec.StartSeason), Valid: true}
		job.EndSeason = sql.NullInt64{Int64: int64(spec.EndSeason), Valid: true}
		job.Entities = spec.Entities
	case JobTypeEntities:
		job.Entities = spec.Entities
	}

	if spec.DryRun {
		job.Status = JobStatusCompleted
		job.StatusMessage = sql.NullString{String: "Dry run: nothing queued", Valid: true}
		return job, nil
	}

	stored, err := s.repo.CreateJob(ctx, job)
	if err != nil {
		return nil, err
	}

	_ = s.repo.AppendEvent(ctx, stored.JobID, "queued", "Job queued", nil, nil)
	s.logger.Info("backfill job queued",
		zap.String("job_id", stored.JobID),
		zap.String("type", string(stored.JobType)),
		zap.String("sport", stored.Sport),
	)

	return stored, nil
}

// Cancel cancels a queued job. Running jobs finish.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	if err := s.repo.CancelJob(ctx, jobID); err != nil {
		return err
	}
	_ = s.repo.AppendEvent(ctx, jobID, "cancelled", "Job cancelled", nil, nil)
	s.logger.Info("backfill job cancelled", zap.String("job_id", jobID))
	return nil
}

// GetStatus returns the currently running job plus recent history.
func (s *Service) GetStatus(ctx context.Context) (*StatusSummary, error) {
	active, err := s.repo.GetActiveJob(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListRecentJobs(ctx, s.historyLimit)
	if err != nil {
		return nil, err
	}

	return &StatusSummary{
		ActiveJob: active,
		History:   history,
	}, nil
}

func (s *Service) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if s.ctx.Err() != nil {
			return
		}

		job, err := s.repo.MarkNextJobRunning(s.ctx)
		if err != nil && s.ctx.Err() == nil {
			s.logger.Warn("claim job error", zap.Error(err))
		}
		if err != nil || job == nil {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				continue
			}
		}

		s.executeJob(job)
	}
}

func (s *Service) executeJob(job *Job) {
	logger := s.logger.With(zap.String("job_id", job.JobID))

	spec, err := buildSpec(job)
	if err != nil {
		logger.Error("invalid job spec", zap.Error(err))
		_ = s.repo.UpdateStatus(s.ctx, job.JobID, JobStatusFailed, "Invalid job specification", err)
		return
	}

	reporter := &jobReporter{
		ctx:    s.ctx,
		repo:   s.repo,
		jobID:  job.JobID,
		total:  ProgressUnits(spec),
		logger: logger,
	}

	start := time.Now()
	logger.Info("backfill job started", zap.String("type", string(spec.Type)), zap.String("sport", spec.Sport.String()))

	if err := s.runner.Run(s.ctx, spec, reporter); err != nil {
		logger.Error("❌ backfill job failed", zap.Error(err))
		// The worker context may already be cancelled on shutdown.
		_ = s.repo.UpdateStatus(context.Background(), job.JobID, JobStatusFailed, "Job failed", err)
		return
	}

	_ = s.repo.UpdateStatus(s.ctx, job.JobID, JobStatusCompleted, "Job completed", nil)
	logger.Info("✓ backfill job completed", zap.Duration("duration", time.Since(start).Round(time.Second)))
}

func buildSpec(job *Job) (JobSpec, error) {
	s, err := sport.Parse(job.Sport)
	if err != nil {
		return JobSpec{}, err
	}

	spec := JobSpec{
		Type:     job.JobType,
		Sport:    s,
		Entities: []string(job.Entities),
	}
	if job.JobType == JobTypeSeasons {
		if !job.StartSeason.Valid || !job.EndSeason.Valid {
			return spec, fmt.Errorf("job missing start/end seasons")
		}
		spec.StartSeason = int(job.StartSeason.Int64)
		spec.EndSeason = int(job.EndSeason.Int64)
	}

	return spec, Validate(spec)
}

func cleanNames(names []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

type jobReporter struct {
	ctx    context.Context
	repo   jobStore
	jobID  string
	total  int
	logger *zap.Logger
}

func (r *jobReporter) OnJobStart(spec JobSpec) {
	if r.total == 0 {
		r.total = ProgressUnits(spec)
	}
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, 0, r.total, "Job starting")
}

func (r *jobReporter) OnSeasonStart(season int, index int, total int) {
	msg := fmt.Sprintf("Processing season %d (%d/%d)", season, index+1, total)
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, index, valueOr(total, r.total), msg)
}

func (r *jobReporter) OnEntitiesProcessed(names []string) {
	_ = r.repo.AppendEvent(r.ctx, r.jobID, "entities", "Processed "+strings.Join(names, ", "), nil, nil)
}

func (r *jobReporter) OnProgress(message string, current int, total int) {
	r.logger.Debug(message, zap.Int("current", current), zap.Int("total", total))
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, current, valueOr(total, r.total), message)
}

func (r *jobReporter) OnJobComplete() {
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, r.total, r.total, "Job complete")
}

func (r *jobReporter) OnJobError(err error) {
	_ = r.repo.AppendEvent(context.Background(), r.jobID, "error", err.Error(), nil, nil)
}

func valueOr(val, fallback int) int {
	if val > 0 {
		return val
	}
	return fallback
}
