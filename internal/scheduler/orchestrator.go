package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/config"
	"github.com/fortuna/augur/internal/ingest"
	"github.com/fortuna/augur/internal/service"
	"github.com/fortuna/augur/internal/sport"
)

var (
	// ErrNotStarted is returned by TriggerNow before Start.
	ErrNotStarted = errors.New("scheduler not started")

	// ErrAlreadyRunning is returned when a sport's pipeline is in progress.
	ErrAlreadyRunning = errors.New("pipeline already running")
)

// Scraper collects stats and sportsbook quotes.
type Scraper interface {
	Scrape(ctx context.Context, s sport.Sport) (ingest.Summary, error)
	Odds(ctx context.Context, s sport.Sport) (int, error)
}

// Predictor runs the prediction stage.
type Predictor interface {
	Run(ctx context.Context, s sport.Sport) (*service.RunSummary, error)
}

// Settler records results of finished events.
type Settler interface {
	Run(ctx context.Context, s sport.Sport) (*service.SettleSummary, error)
}

// Config holds scheduler configuration
type Config struct {
	EnableDaily       bool          // Default: true
	EnableOddsPolling bool          // Default: true
	MaxRetries        int           // Default: 3
	RetryDelay        time.Duration // Default: 30s
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		EnableDaily:       true,
		EnableOddsPolling: true,
		MaxRetries:        3,
		RetryDelay:        30 * time.Second,
	}
}

// SportStatus is the scheduler's view of one sport.
type SportStatus struct {
	Sport        sport.Sport            `json:"sport"`
	Running      bool                   `json:"running"`
	DailyHour    int                    `json:"daily_hour"`
	NextRun      time.Time              `json:"next_run"`
	LastRun      time.Time              `json:"last_run"`
	LastError    string                 `json:"last_error,omitempty"`
	LastScrape   *ingest.Summary        `json:"last_scrape,omitempty"`
	LastPredict  *service.RunSummary    `json:"last_predict,omitempty"`
	LastSettle   *service.SettleSummary `json:"last_settle,omitempty"`
	OddsInterval string                 `json:"odds_interval"`
	LastOddsPoll time.Time              `json:"last_odds_poll"`
	LastQuotes   int                    `json:"last_quotes"`
}

// Orchestrator runs each enabled sport's daily pipeline and odds polling.
type Orchestrator struct {
	cfg     *config.Config
	config  *Config
	scraper Scraper
	predict Predictor
	settle  Settler
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	status map[sport.Sport]*SportStatus
}

// NewOrchestrator creates a new scheduler orchestrator
func NewOrchestrator(cfg *config.Config, scraper Scraper, predict Predictor, settle Settler, opts *Config, logger *zap.Logger) *Orchestrator {
	if opts == nil {
		opts = DefaultConfig()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	status := make(map[sport.Sport]*SportStatus)
	for _, s := range sport.All {
		sc := cfg.For(s)
		if !sc.Enabled {
			continue
		}
		status[s] = &SportStatus{Sport: s, DailyHour: sc.DailyHour, OddsInterval: sc.OddsPollInterval.String()}
	}

	return &Orchestrator{
		cfg:     cfg,
		config:  opts,
		scraper: scraper,
		predict: predict,
		settle:  settle,
		logger:  logger.Named("scheduler"),
		now:     time.Now,
		status:  status,
	}
}

// Start begins the scheduled tasks of every enabled sport. It returns
// immediately; Stop (or cancelling ctx) ends them.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		return
	}
	o.ctx, o.cancel = context.WithCancel(ctx)

	o.logger.Info("starting scheduler",
		zap.Bool("daily", o.config.EnableDaily),
		zap.Bool("odds_polling", o.config.EnableOddsPolling),
		zap.Int("sports", len(o.status)),
	)

	for s := range o.status {
		sc := o.cfg.For(s)
		if o.config.EnableDaily {
			o.wg.Add(1)
			go o.runDaily(o.ctx, s, sc.DailyHour)
		}
		if o.config.EnableOddsPolling && sc.OddsPollInterval > 0 {
			o.wg.Add(1)
			go o.runOddsPolling(o.ctx, s, sc.OddsPollInterval)
		}
	}
}

// Stop cancels every task and waits for in-flight runs to return. The
// orchestrator can be started again afterwards.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel == nil {
		return
	}

	o.logger.Info("stopping scheduler")
	cancel()
	o.wg.Wait()

	o.mu.Lock()
	o.ctx, o.cancel = nil, nil
	for _, st := range o.status {
		st.Running = false
	}
	o.mu.Unlock()
	o.logger.Info("✓ Scheduler stopped")
}

// TriggerNow runs a sport's pipeline in the background.
func (o *Orchestrator) TriggerNow(s sport.Sport) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctx == nil || o.ctx.Err() != nil {
		return ErrNotStarted
	}
	st, ok := o.status[s]
	if !ok {
		return fmt.Errorf("sport %q is not enabled", s)
	}
	if st.Running {
		return fmt.Errorf("%s: %w", s, ErrAlreadyRunning)
	}
	st.Running = true

	o.logger.Info("manual pipeline run triggered", zap.String("sport", s.String()))
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runPipeline(o.ctx, s)
	}()
	return nil
}

// Status returns a snapshot of every enabled sport, ordered by sport.
func (o *Orchestrator) Status() []SportStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]SportStatus, 0, len(o.status))
	for _, st := range o.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sport < out[j].Sport })
	return out
}

// NextRun is the next occurrence of hour:00 strictly after now.
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (o *Orchestrator) runDaily(ctx context.Context, s sport.Sport, hour int) {
	defer o.wg.Done()
	logger := o.logger.With(zap.String("sport", s.String()))

	for {
		next := NextRun(o.now(), hour)
		o.update(s, func(st *SportStatus) { st.NextRun = next })
		wait := next.Sub(o.now())
		logger.Info("next daily run", zap.Time("at", next), zap.Duration("in", wait.Round(time.Second)))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Debug("daily scheduler stopped")
			return
		case <-timer.C:
		}

		if !o.claim(s) {
			logger.Warn("skipping daily run, pipeline already running")
			continue
		}
		o.runPipeline(ctx, s)
	}
}

// claim marks a sport as running unless it already is.
func (o *Orchestrator) claim(s sport.Sport) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.status[s]
	if st.Running {
		return false
	}
	st.Running = true
	return true
}

// runPipeline scrapes, polls odds, predicts and settles one sport. The
// caller must have claimed the sport.
func (o *Orchestrator) runPipeline(ctx context.Context, s sport.Sport) {
	logger := o.logger.With(zap.String("sport", s.String()))
	start := o.now()
	logger.Info("═══ Pipeline starting ═══")

	var (
		scrape  ingest.Summary
		run     *service.RunSummary
		settled *service.SettleSummary
	)
	err := o.retry(ctx, logger, "scrape", func() error {
		var err error
		scrape, err = o.scraper.Scrape(ctx, s)
		return err
	})
	if err == nil {
		err = o.retry(ctx, logger, "odds", func() error {
			_, err := o.scraper.Odds(ctx, s)
			return err
		})
	}
	if err == nil {
		run, err = o.predict.Run(ctx, s)
	}
	// Finished events settle even when an earlier stage failed.
	settled, settleErr := o.settle.Run(ctx, s)
	if settleErr != nil {
		err = errors.Join(err, fmt.Errorf("settle: %w", settleErr))
	}

	o.update(s, func(st *SportStatus) {
		st.Running = false
		st.LastRun = start
		st.LastError = ""
		if err != nil {
			st.LastError = err.Error()
		}
		st.LastScrape = &scrape
		if run != nil {
			st.LastPredict = run
		}
		if settled != nil {
			st.LastSettle = settled
		}
	})

	if err != nil {
		logger.Error("❌ Pipeline failed", zap.Error(err))
		return
	}
	logger.Info("═══ Pipeline complete ═══", zap.Duration("duration", o.now().Sub(start).Round(time.Second)))
}

// retry runs fn up to MaxRetries times, waiting RetryDelay in between.
func (o *Orchestrator) retry(ctx context.Context, logger *zap.Logger, stage string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= o.config.MaxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		logger.Warn("⚠ stage attempt failed",
			zap.String("stage", stage),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", o.config.MaxRetries),
			zap.Error(err),
		)
		if attempt == o.config.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.config.RetryDelay):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", stage, o.config.MaxRetries, err)
}

func (o *Orchestrator) runOddsPolling(ctx context.Context, s sport.Sport, interval time.Duration) {
	defer o.wg.Done()
	logger := o.logger.With(zap.String("sport", s.String()))
	logger.Info("odds polling started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on start
	o.pollOdds(ctx, s, logger)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("odds polling stopped")
			return
		case <-ticker.C:
			o.pollOdds(ctx, s, logger)
		}
	}
}

func (o *Orchestrator) pollOdds(ctx context.Context, s sport.Sport, logger *zap.Logger) {
	n, err := o.scraper.Odds(ctx, s)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("⚠ odds poll failed", zap.Error(err))
		}
		return
	}
	o.update(s, func(st *SportStatus) {
		st.LastOddsPoll = o.now()
		st.LastQuotes = n
	})
}

func (o *Orchestrator) update(s sport.Sport, fn func(*SportStatus)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.status[s]; ok {
		fn(st)
	}
}
