package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/config"
	"github.com/fortuna/augur/internal/features"
	"github.com/fortuna/augur/internal/notify"
	"github.com/fortuna/augur/internal/oddsmath"
	"github.com/fortuna/augur/internal/reconciliation"
	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
	"github.com/fortuna/augur/internal/store/dataset"
)

const (
	// upcomingGrace keeps games that started within the last few hours in
	// the upcoming split.
	upcomingGrace = 3 * time.Hour

	// quoteHorizon is how far ahead scraped quotes are considered.
	quoteHorizon = 14 * 24 * time.Hour
)

// RowSource builds feature rows for a sport.
type RowSource interface {
	Build(ctx context.Context, s sport.Sport, sc config.SportConfig) ([]features.Row, error)
}

// QuoteSource reads scraped sportsbook quotes.
type QuoteSource interface {
	QuotesBetween(ctx context.Context, sport string, from, to time.Time) ([]store.OddsQuote, error)
}

// EventWriter persists events and the prices recorded on them.
type EventWriter interface {
	UpsertEvent(ctx context.Context, e *store.Event) error
	UpsertEventOdds(ctx context.Context, o *store.EventOdds) error
	InsertBookOdds(ctx context.Context, b store.BookOdds) error
}

// Predictor scores model inputs for a market.
type Predictor interface {
	Predict(s sport.Sport, m sport.Market, in map[string]float64) (float64, error)
}

// PredictionCache holds the latest predictions of a sport.
type PredictionCache interface {
	SetPredictions(ctx context.Context, s sport.Sport, predictions []store.Prediction) error
}

// PredictionPublisher fans predictions out to subscribers.
type PredictionPublisher interface {
	PublishPrediction(ctx context.Context, s sport.Sport, p store.Prediction) error
}

// PickNotifier alerts on picks.
type PickNotifier interface {
	NotifyPick(ctx context.Context, p notify.Pick) error
}

// DatasetWriter stores processed rows for offline training.
type DatasetWriter interface {
	Replace(ctx context.Context, sp sport.Sport, split dataset.Split, rows []features.Row) error
}

// PredictionDeps are the collaborators of a PredictionService. Cache,
// Publisher, Notifier and Dataset are optional.
type PredictionDeps struct {
	Rows      RowSource
	Quotes    QuoteSource
	Events    EventWriter
	Models    Predictor
	Joiner    *reconciliation.Joiner
	Cache     PredictionCache
	Publisher PredictionPublisher
	Notifier  PickNotifier
	Dataset   DatasetWriter
}

// RunSummary reports one prediction run.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	Sport     sport.Sport   `json:"sport"`
	Rows      int           `json:"rows"`
	Training  int           `json:"training"`
	Upcoming  int           `json:"upcoming"`
	Events    int           `json:"events"`
	Markets   int           `json:"markets"`
	Picks     int           `json:"picks"`
	Skipped   int           `json:"skipped"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// PredictionService runs the feature, odds and inference stages of a sport
// and records the resulting prices.
type PredictionService struct {
	cfg     *config.Config
	deps    PredictionDeps
	creator string
	logger  *zap.Logger
	now     func() time.Time
}

// NewPredictionService creates a prediction service.
func NewPredictionService(cfg *config.Config, deps PredictionDeps, logger *zap.Logger) (*PredictionService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	creator, err := uuid.Parse(cfg.ModelCreatorID)
	if err != nil {
		return nil, fmt.Errorf("invalid model creator id %q: %w", cfg.ModelCreatorID, err)
	}
	if deps.Joiner == nil {
		deps.Joiner = reconciliation.NewJoiner(nil, logger)
	}
	return &PredictionService{
		cfg:     cfg,
		deps:    deps,
		creator: creator.String(),
		logger:  logger.Named("predict"),
		now:     time.Now,
	}, nil
}

// Run builds rows, prices the upcoming ones and records every market the
// model has an opinion on.
func (s *PredictionService) Run(ctx context.Context, sp sport.Sport) (*RunSummary, error) {
	sc := s.cfg.For(sp)
	now := s.now().UTC()
	sum := &RunSummary{RunID: uuid.NewString(), Sport: sp, StartedAt: now}
	logger := s.logger.With(zap.String("sport", sp.String()), zap.String("run_id", sum.RunID))

	rows, err := s.deps.Rows.Build(ctx, sp, sc)
	if err != nil {
		return nil, err
	}
	sum.Rows = len(rows)

	from := time.Date(sc.HistoryStartYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	quotes, err := s.deps.Quotes.QuotesBetween(ctx, sp.String(), from, now.Add(quoteHorizon))
	if err != nil {
		return nil, fmt.Errorf("loading quotes: %w", err)
	}
	for _, m := range sp.Markets() {
		rows = s.deps.Joiner.Join(sp, m, rows, quotes)
	}

	upcoming, training := features.SplitUpcoming(rows, now.Add(-upcomingGrace))
	training = LabelMarkets(sp, training)
	sum.Training, sum.Upcoming = len(training), len(upcoming)

	if s.deps.Dataset != nil {
		if err := s.deps.Dataset.Replace(ctx, sp, dataset.Training, training); err != nil {
			logger.Warn("writing training rows failed", zap.Error(err))
		}
		if err := s.deps.Dataset.Replace(ctx, sp, dataset.Upcoming, upcoming); err != nil {
			logger.Warn("writing upcoming rows failed", zap.Error(err))
		}
	}

	var predictions []store.Prediction
	for _, r := range upcoming {
		if r.EventTime().Before(now) {
			sum.Skipped++
			continue
		}
		p, picks, err := s.predict(ctx, sp, sc, r)
		if err != nil {
			return nil, err
		}
		if p == nil {
			sum.Skipped++
			continue
		}
		predictions = append(predictions, *p)
		sum.Events++
		sum.Markets += len(p.Odds)
		sum.Picks += len(picks)
		s.announce(ctx, sp, *p, picks, logger)
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.SetPredictions(ctx, sp, predictions); err != nil {
			logger.Warn("caching predictions failed", zap.Error(err))
		}
	}

	sum.Duration = s.now().UTC().Sub(now)
	logger.Info("✓ Prediction run complete",
		zap.Int("rows", sum.Rows),
		zap.Int("upcoming", sum.Upcoming),
		zap.Int("events", sum.Events),
		zap.Int("picks", sum.Picks),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

// predict prices every market of a row. It returns nil when no market had
// both a quote and a model.
func (s *PredictionService) predict(ctx context.Context, sp sport.Sport, sc config.SportConfig, r features.Row) (*store.Prediction, []notify.Pick, error) {
	event := NewEvent(sp, r)
	input := r.ModelInput()

	var odds []store.EventOdds
	var picks []notify.Pick
	var books []store.BookOdds
	for _, m := range sp.Markets() {
		q, ok := r.Quote(m)
		if !ok {
			continue
		}
		prob, err := s.deps.Models.Predict(sp, m, input)
		if err != nil {
			s.logger.Debug("no prediction", zap.String("row", r.String()), zap.String("market", string(m)), zap.Error(err))
			continue
		}
		o1, o2, err := oddsmath.ProbabilityToAmericanPair(prob)
		if err != nil {
			s.logger.Warn("unusable probability", zap.String("row", r.String()), zap.Float64("p", prob), zap.Error(err))
			continue
		}

		eo := store.EventOdds{
			EventID:     event.ID,
			Market:      string(m),
			CreatedBy:   s.creator,
			Odds1:       o1,
			Odds2:       o2,
			Probability: prob,
			IsTeam1Pick: oddsmath.IsPick(o1, q.Price, sc.PickThreshold),
			IsTeam2Pick: oddsmath.IsPick(o2, q.Opposite, sc.PickThreshold),
		}
		if m != sport.Moneyline {
			eo.Line = sql.NullFloat64{Float64: q.Line, Valid: true}
		}
		odds = append(odds, eo)
		books = append(books, NewBookOdds(event.ID, m, q, s.now()))

		if eo.IsTeam1Pick {
			picks = append(picks, newPick(event, m, side(m, event, q, true), q.Line, o1, q.Price, prob))
		}
		if eo.IsTeam2Pick {
			picks = append(picks, newPick(event, m, side(m, event, q, false), q.OpponentLine, o2, q.Opposite, 1-prob))
		}
	}
	if len(odds) == 0 {
		return nil, nil, nil
	}

	if err := s.deps.Events.UpsertEvent(ctx, &event); err != nil {
		return nil, nil, err
	}
	for i := range odds {
		if err := s.deps.Events.UpsertEventOdds(ctx, &odds[i]); err != nil {
			return nil, nil, err
		}
	}
	for _, b := range books {
		if err := s.deps.Events.InsertBookOdds(ctx, b); err != nil {
			return nil, nil, err
		}
	}
	return &store.Prediction{Event: event, Odds: odds}, picks, nil
}

func (s *PredictionService) announce(ctx context.Context, sp sport.Sport, p store.Prediction, picks []notify.Pick, logger *zap.Logger) {
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishPrediction(ctx, sp, p); err != nil {
			logger.Warn("publishing prediction failed", zap.String("event", p.Event.ID), zap.Error(err))
		}
	}
	if s.deps.Notifier == nil {
		return
	}
	for _, pick := range picks {
		if err := s.deps.Notifier.NotifyPick(ctx, pick); err != nil {
			logger.Warn("pick notification failed", zap.String("event", p.Event.ID), zap.Error(err))
		}
	}
}

// NewEvent describes a row as a stored event. Team sports store codes in
// team1/team2 and display names in the name columns.
func NewEvent(sp sport.Sport, r features.Row) store.Event {
	name1, name2 := r.Entity, r.Opponent
	if teams := reconciliation.Teams(sp); teams != nil {
		name1, name2 = teams.Name(r.Entity), teams.Name(r.Opponent)
	}
	e := store.Event{
		ID:            r.Key(),
		Sport:         sp.String(),
		EventName:     name1 + " vs " + name2,
		EventDate:     r.Date,
		EventDatetime: r.EventTime(),
		Team1:         r.Entity,
		Team1Name:     name1,
		Team2:         r.Opponent,
		Team2Name:     name2,
	}
	if q, ok := r.Quote(sport.Moneyline); ok {
		e.BookOdds1, e.BookOdds2 = q.Price, q.Opposite
	}
	if t := r.Attrs["tournament"]; t != "" {
		e.Tournament = sql.NullString{String: t, Valid: true}
	}
	return e
}

// NewBookOdds snapshots a joined quote for the price history tables.
func NewBookOdds(eventID string, m sport.Market, q features.Quote, at time.Time) store.BookOdds {
	b := store.BookOdds{
		EventID:    eventID,
		Market:     m,
		Odds1:      q.Price,
		Odds2:      q.Opposite,
		RecordedAt: at.UTC(),
	}
	if m != sport.Moneyline {
		b.Line1 = sql.NullFloat64{Float64: q.Line, Valid: true}
		line2 := q.OpponentLine
		if m != sport.Spread {
			line2 = q.Line
		}
		b.Line2 = sql.NullFloat64{Float64: line2, Valid: true}
	}
	return b
}

// side names the first or second outcome of a market.
func side(m sport.Market, e store.Event, q features.Quote, first bool) string {
	switch m {
	case sport.Moneyline, sport.Spread:
		if first {
			return e.Team1Name
		}
		return e.Team2Name
	case sport.GoesTheDistance:
		if first {
			return "Yes"
		}
		return "No"
	case sport.TotalGames:
		if first {
			return fmt.Sprintf("%s over %g", e.Team1Name, q.Line)
		}
		return fmt.Sprintf("%s under %g", e.Team1Name, q.Line)
	}
	if first {
		return fmt.Sprintf("Over %g", q.Line)
	}
	return fmt.Sprintf("Under %g", q.Line)
}

func newPick(e store.Event, m sport.Market, side string, spread float64, modelOdds, bookOdds int, prob float64) notify.Pick {
	p := notify.Pick{
		Sport:      e.Sport,
		EventName:  e.EventName,
		Market:     string(m),
		Side:       side,
		ModelOdds:  modelOdds,
		BookOdds:   bookOdds,
		Prob:       prob,
		StartsAt:   e.EventDatetime,
		Tournament: e.Tournament.String,
	}
	if m == sport.Spread {
		p.Line = &spread
	}
	return p
}
