package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
)

// EventReader reads events and their model prices.
type EventReader interface {
	Get(ctx context.Context, id string) (*store.Event, error)
	ByDate(ctx context.Context, sport string, date time.Time) ([]*store.Event, error)
	PredictionsFor(ctx context.Context, eventID string) ([]store.EventOdds, error)
	UpcomingPredictions(ctx context.Context, sport string, from time.Time) ([]store.Prediction, error)
}

// FormReader reads an entity's recent record.
type FormReader interface {
	RecentForm(ctx context.Context, sport, entity string, n int) (*store.Form, error)
}

// CachedPredictions reads the prediction cache.
type CachedPredictions interface {
	Predictions(ctx context.Context, s sport.Sport) ([]store.Prediction, error)
}

// EventService handles event-related reads for the API
type EventService struct {
	events EventReader
	forms  FormReader
	cache  CachedPredictions
	logger *zap.Logger
	now    func() time.Time
}

// NewEventService creates a new event service. cache may be nil.
func NewEventService(events EventReader, forms FormReader, cache CachedPredictions, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{events: events, forms: forms, cache: cache, logger: logger.Named("events"), now: time.Now}
}

// GetEvent retrieves an event with its model prices
func (s *EventService) GetEvent(ctx context.Context, id string) (*store.Prediction, error) {
	e, err := s.events.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching event: %w", err)
	}
	odds, err := s.events.PredictionsFor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching event odds: %w", err)
	}
	return &store.Prediction{Event: *e, Odds: odds}, nil
}

// GetEventsByDate retrieves a sport's events on a calendar date
func (s *EventService) GetEventsByDate(ctx context.Context, sp sport.Sport, date time.Time) ([]*store.Event, error) {
	events, err := s.events.ByDate(ctx, sp.String(), date)
	if err != nil {
		return nil, fmt.Errorf("fetching events by date: %w", err)
	}
	return events, nil
}

// GetUpcomingPredictions serves the latest predictions from cache, falling
// back to the database.
func (s *EventService) GetUpcomingPredictions(ctx context.Context, sp sport.Sport) ([]store.Prediction, error) {
	if s.cache != nil {
		predictions, err := s.cache.Predictions(ctx, sp)
		if err == nil {
			return predictions, nil
		}
		s.logger.Debug("prediction cache miss", zap.String("sport", sp.String()), zap.Error(err))
	}

	predictions, err := s.events.UpcomingPredictions(ctx, sp.String(), s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("fetching upcoming predictions: %w", err)
	}
	return predictions, nil
}

// GetTeamForm retrieves an entity's last n games
func (s *EventService) GetTeamForm(ctx context.Context, sp sport.Sport, entity string, n int) (*store.Form, error) {
	if n <= 0 {
		n = 10
	}
	return s.forms.RecentForm(ctx, sp.String(), entity, n)
}
