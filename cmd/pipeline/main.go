// Command pipeline runs the augur stages by hand.
//
// Usage:
//
//	augur-pipeline scrape nba
//	augur-pipeline odds atp
//	augur-pipeline predict ufc
//	augur-pipeline settle nfl
//	augur-pipeline run nba
//	augur-pipeline export atp --split training --out atp.csv
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/app"
	"github.com/fortuna/augur/internal/config"
	"github.com/fortuna/augur/internal/logging"
	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store/dataset"
)

func main() {
	var verbose bool

	root := &cobra.Command{
		Use:           "augur-pipeline",
		Short:         "Run augur pipeline stages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	root.AddCommand(
		stageCmd("scrape", "Scrape stats and results", &verbose, func(ctx context.Context, a *app.App, s sport.Sport) (interface{}, error) {
			return a.Collector.Scrape(ctx, s)
		}),
		stageCmd("odds", "Scrape sportsbook odds", &verbose, func(ctx context.Context, a *app.App, s sport.Sport) (interface{}, error) {
			n, err := a.Collector.Odds(ctx, s)
			return map[string]int{"quotes": n}, err
		}),
		stageCmd("predict", "Build features and price upcoming events", &verbose, func(ctx context.Context, a *app.App, s sport.Sport) (interface{}, error) {
			return a.Predictions.Run(ctx, s)
		}),
		stageCmd("settle", "Record results of finished events", &verbose, func(ctx context.Context, a *app.App, s sport.Sport) (interface{}, error) {
			return a.Settlement.Run(ctx, s)
		}),
		stageCmd("run", "Scrape, poll odds, predict and settle", &verbose, runAll),
		exportCmd(&verbose),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type stageFunc func(ctx context.Context, a *app.App, s sport.Sport) (interface{}, error)

func stageCmd(name, short string, verbose *bool, fn stageFunc) *cobra.Command {
	return &cobra.Command{
		Use:       name + " <sport>",
		Short:     short,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"nba", "nfl", "ufc", "atp"},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sport.Parse(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), *verbose, func(ctx context.Context, a *app.App) error {
				start := time.Now()
				result, err := fn(ctx, a, s)
				if err != nil {
					return fmt.Errorf("%s %s: %w", name, s, err)
				}
				a.Logger.Info("✓ stage complete",
					zap.String("stage", name),
					zap.String("sport", s.String()),
					zap.Any("result", result),
					zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
				)
				return nil
			})
		},
	}
}

func runAll(ctx context.Context, a *app.App, s sport.Sport) (interface{}, error) {
	scrape, err := a.Collector.Scrape(ctx, s)
	if err != nil {
		return nil, err
	}
	quotes, err := a.Collector.Odds(ctx, s)
	if err != nil {
		return nil, err
	}
	run, err := a.Predictions.Run(ctx, s)
	if err != nil {
		return nil, err
	}
	settled, err := a.Settlement.Run(ctx, s)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"scrape": scrape, "quotes": quotes, "predict": run, "settle": settled}, nil
}

func exportCmd(verbose *bool) *cobra.Command {
	var (
		split string
		out   string
	)
	cmd := &cobra.Command{
		Use:   "export <sport>",
		Short: "Write the processed dataset of a sport as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sport.Parse(args[0])
			if err != nil {
				return err
			}
			sp := dataset.Split(split)
			if sp != dataset.Training && sp != dataset.Upcoming {
				return fmt.Errorf("unknown split %q (training or upcoming)", split)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, *verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ds, err := dataset.Open(cfg.DatasetPath, logger)
			if err != nil {
				return err
			}
			defer ds.Close()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			n, err := ds.ExportCSV(cmd.Context(), s, sp, w)
			if err != nil {
				return err
			}
			logger.Info("✓ dataset exported", zap.String("sport", s.String()), zap.String("split", split), zap.Int("rows", n))
			return nil
		},
	}
	cmd.Flags().StringVar(&split, "split", string(dataset.Training), "Dataset split (training or upcoming)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func withApp(parent context.Context, verbose bool, fn func(ctx context.Context, a *app.App) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := app.Build(ctx, cfg, app.Options{RedisAttempts: 1}, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func newLogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return logging.New(level, true)
}
