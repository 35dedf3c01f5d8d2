package backfill

import (
	"context"
	"fmt"
	"strings"

	"github.com/fortuna/augur/internal/config"
	"github.com/fortuna/augur/internal/ingest"
	"github.com/fortuna/augur/internal/sport"
)

// entityBatch is the number of players scraped between progress updates.
const entityBatch = 10

// Collector is the part of the ingest collector a backfill drives.
type Collector interface {
	ScrapeSeasons(ctx context.Context, s sport.Sport, from, to int, entities []string) (ingest.Summary, error)
	ScrapePlayers(ctx context.Context, s sport.Sport, names []string) (ingest.Summary, error)
}

// Runner executes backfill specs against the scrapers.
type Runner struct {
	collector Collector
	cfg       *config.Config
}

// NewRunner constructs a runner.
func NewRunner(collector Collector, cfg *config.Config) *Runner {
	return &Runner{collector: collector, cfg: cfg}
}

// Validate checks that a spec can be run.
func Validate(spec JobSpec) error {
	switch spec.Type {
	case JobTypeSeasons:
		if !spec.Sport.IsTeamSport() {
			return fmt.Errorf("season backfill is not supported for %s", spec.Sport)
		}
		if spec.StartSeason <= 0 || spec.EndSeason <= 0 {
			return fmt.Errorf("season job requires start_season and end_season")
		}
		if spec.EndSeason < spec.StartSeason {
			return fmt.Errorf("end_season %d is before start_season %d", spec.EndSeason, spec.StartSeason)
		}
	case JobTypeEntities:
		if spec.Sport != sport.ATP {
			return fmt.Errorf("entity backfill is not supported for %s", spec.Sport)
		}
		if len(spec.Entities) == 0 {
			return fmt.Errorf("entity job requires at least one name")
		}
	default:
		return fmt.Errorf("unsupported job type %q", spec.Type)
	}
	return nil
}

// Seasons lists every season covered by a spec.
func Seasons(spec JobSpec) []int {
	if spec.Type != JobTypeSeasons || spec.EndSeason < spec.StartSeason {
		return nil
	}
	out := make([]int, 0, spec.EndSeason-spec.StartSeason+1)
	for season := spec.StartSeason; season <= spec.EndSeason; season++ {
		out = append(out, season)
	}
	return out
}

// ProgressUnits is the progress total reported for a spec.
func ProgressUnits(spec JobSpec) int {
	switch spec.Type {
	case JobTypeSeasons:
		return len(Seasons(spec))
	case JobTypeEntities:
		return len(spec.Entities)
	default:
		return 0
	}
}

// Run executes the job spec, reporting progress via the Reporter if provided.
func (r *Runner) Run(ctx context.Context, spec JobSpec, reporter Reporter) error {
	if reporter == nil {
		reporter = nopReporter{}
	}
	reporter.OnJobStart(spec)

	if err := Validate(spec); err != nil {
		reporter.OnJobError(err)
		return err
	}

	if spec.DryRun {
		reporter.OnProgress("Dry-run mode: no data will be written", 0, ProgressUnits(spec))
		reporter.OnJobComplete()
		return nil
	}

	var err error
	switch spec.Type {
	case JobTypeSeasons:
		err = r.runSeasons(ctx, spec, reporter)
	case JobTypeEntities:
		err = r.runEntities(ctx, spec, reporter)
	}
	if err != nil {
		reporter.OnJobError(err)
		return err
	}

	reporter.OnJobComplete()
	return nil
}

func (r *Runner) runSeasons(ctx context.Context, spec JobSpec, reporter Reporter) error {
	entities := spec.Entities
	if len(entities) == 0 && r.cfg != nil {
		entities = r.cfg.For(spec.Sport).Entities
	}

	seasons := Seasons(spec)
	total := len(seasons)
	for idx, season := range seasons {
		if err := ctx.Err(); err != nil {
			return err
		}
		reporter.OnSeasonStart(season, idx, total)

		sum, err := r.collector.ScrapeSeasons(ctx, spec.Sport, season, season, entities)
		if err != nil {
			return fmt.Errorf("%s season %d: %w", spec.Sport, season, err)
		}
		reporter.OnProgress(fmt.Sprintf("✓ Season %d complete: %d games, %d failed", season, sum.Games, sum.Failed), idx+1, total)
	}
	return nil
}

func (r *Runner) runEntities(ctx context.Context, spec JobSpec, reporter Reporter) error {
	total := len(spec.Entities)
	for start := 0; start < total; start += entityBatch {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + entityBatch
		if end > total {
			end = total
		}
		batch := spec.Entities[start:end]

		sum, err := r.collector.ScrapePlayers(ctx, spec.Sport, batch)
		if err != nil {
			return fmt.Errorf("players %s: %w", strings.Join(batch, ", "), err)
		}
		reporter.OnEntitiesProcessed(batch)
		reporter.OnProgress(fmt.Sprintf("Processed %d/%d players (%d matches)", end, total, sum.Games), end, total)
	}
	return nil
}

type nopReporter struct{}

func (nopReporter) OnJobStart(JobSpec) {}
func (nopReporter) OnSeasonStart(int, int, int) {}
func (nopReporter) OnEntitiesProcessed([]string) {}
func (nopReporter) OnProgress(string, int, int) {}
func (nopReporter) OnJobComplete() {}
func (nopReporter) OnJobError(error) {}
