package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/app"
	"github.com/fortuna/augur/internal/backfill"
	"github.com/fortuna/augur/internal/config"
	"github.com/fortuna/augur/internal/logging"
)

const (
	appName    = "augur-backfill"
	appVersion = "1.0.0"
)

func main() {
	var (
		sportName   = flag.String("sport", "", "Sport to backfill (nba, nfl, atp)")
		season      = flag.Int("season", 0, "Single season to backfill (e.g. 2024)")
		startSeason = flag.Int("start-season", 0, "First season of a range")
		endSeason   = flag.Int("end-season", 0, "Last season of a range")
		players     = flag.String("players", "", "Comma-separated ATP player names")
		dryRun      = flag.Bool("dry-run", false, "Dry run (do not write to DB)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(cfg.LogLevel, true)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting", zap.String("app", appName), zap.String("version", appVersion))

	req := backfill.Request{
		Sport:       *sportName,
		StartSeason: *startSeason,
		EndSeason:   *endSeason,
		DryRun:      *dryRun,
	}
	if *season > 0 {
		req.StartSeason, req.EndSeason = *season, *season
	}
	if *players != "" {
		req.Entities = strings.Split(*players, ",")
	}

	spec, err := req.Spec()
	if err != nil {
		logger.Fatal("invalid backfill", zap.Error(err))
	}

	reporter := &consoleReporter{logger: logger, dryRun: spec.DryRun}

	// A dry run only validates and reports the plan.
	if spec.DryRun {
		if err := backfill.NewRunner(nil, cfg).Run(context.Background(), spec, reporter); err != nil {
			logger.Fatal("backfill failed", zap.Error(err))
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{RedisAttempts: 1}, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer a.Close()

	if err := backfill.NewRunner(a.Collector, cfg).Run(ctx, spec, reporter); err != nil {
		logger.Error("backfill failed", zap.Error(err))
		return
	}

	logger.Info("✓ Backfill completed successfully")
}

type consoleReporter struct {
	logger *zap.Logger
	dryRun bool
}

func (c *consoleReporter) OnJobStart(spec backfill.JobSpec) {
	c.logger.Info("starting job",
		zap.String("type", string(spec.Type)),
		zap.String("sport", spec.Sport.String()),
		zap.Int("units", backfill.ProgressUnits(spec)),
		zap.Bool("dry_run", c.dryRun),
	)
}

func (c *consoleReporter) OnSeasonStart(season int, index int, total int) {
	c.logger.Info("season", zap.Int("season", season), zap.Int("index", index+1), zap.Int("total", total))
}

func (c *consoleReporter) OnEntitiesProcessed(names []string) {
	c.logger.Info("processed players", zap.Strings("names", names))
}

func (c *consoleReporter) OnProgress(message string, current int, total int) {
	c.logger.Info(message, zap.Int("current", current), zap.Int("total", total))
}

func (c *consoleReporter) OnJobComplete() {
	c.logger.Info("job complete")
}

func (c *consoleReporter) OnJobError(err error) {
	c.logger.Error("job error", zap.Error(err))
}
