package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/config"
	"github.com/fortuna/augur/internal/publisher"
	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
)

// DefaultSettleDays is how far back unsettled events are checked.
const DefaultSettleDays = 7

// UnsettledSource lists events still waiting for a result.
type UnsettledSource interface {
	RecentUnsettled(ctx context.Context, sport string, days int) ([]*store.Event, error)
	SettleEvent(ctx context.Context, sport, team1, team2 string, date time.Time, winner string) (int64, error)
}

// ResultSource reports whether an entity won a completed game.
type ResultSource interface {
	Result(ctx context.Context, sport, entity, opponent string, date time.Time) (bool, error)
}

// FightResultSource reports whether a fighter won a completed fight.
type FightResultSource interface {
	Result(ctx context.Context, fighter, opponent string, date time.Time) (bool, error)
}

// SettlementPublisher announces recorded results.
type SettlementPublisher interface {
	PublishSettlement(ctx context.Context, s sport.Sport, st publisher.Settlement) error
}

// SettleSummary reports one settlement run.
type SettleSummary struct {
	Sport   sport.Sport `json:"sport"`
	Checked int         `json:"checked"`
	Settled int         `json:"settled"`
	Pending int         `json:"pending"`
}

// SettlementService records results of past events from scraped history.
type SettlementService struct {
	cfg       *config.Config
	events    UnsettledSource
	results   ResultSource
	fights    FightResultSource
	publisher SettlementPublisher
	logger    *zap.Logger
}

// NewSettlementService creates a settlement service. pub may be nil.
func NewSettlementService(cfg *config.Config, events UnsettledSource, results ResultSource, fights FightResultSource, pub SettlementPublisher, logger *zap.Logger) *SettlementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementService{
		cfg:       cfg,
		events:    events,
		results:   results,
		fights:    fights,
		publisher: pub,
		logger:    logger.Named("settle"),
	}
}

// Run settles every recent unsettled event whose result has been scraped.
func (s *SettlementService) Run(ctx context.Context, sp sport.Sport) (*SettleSummary, error) {
	days := DefaultSettleDays
	if lb := s.cfg.For(sp).SettleLookback; lb > 0 {
		days = int(lb / (24 * time.Hour))
	}

	events, err := s.events.RecentUnsettled(ctx, sp.String(), days)
	if err != nil {
		return nil, err
	}

	sum := &SettleSummary{Sport: sp, Checked: len(events)}
	for _, e := range events {
		won, err := s.result(ctx, sp, e)
		if errors.Is(err, store.ErrNotFound) {
			sum.Pending++
			continue
		}
		if err != nil {
			return nil, err
		}

		winner := e.Team2
		if won {
			winner = e.Team1
		}
		n, err := s.events.SettleEvent(ctx, sp.String(), e.Team1, e.Team2, e.EventDate, winner)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			sum.Pending++
			continue
		}
		sum.Settled++

		if s.publisher != nil {
			st := publisher.Settlement{
				EventID: e.ID,
				Sport:   sp.String(),
				Winner:  winner,
				Team1:   e.Team1,
				Team2:   e.Team2,
				Date:    e.EventDate,
			}
			if err := s.publisher.PublishSettlement(ctx, sp, st); err != nil {
				s.logger.Warn("publishing settlement failed", zap.String("event", e.ID), zap.Error(err))
			}
		}
	}

	s.logger.Info("✓ Settlement complete",
		zap.String("sport", sp.String()),
		zap.Int("checked", sum.Checked),
		zap.Int("settled", sum.Settled),
		zap.Int("pending", sum.Pending),
	)
	return sum, nil
}

func (s *SettlementService) result(ctx context.Context, sp sport.Sport, e *store.Event) (bool, error) {
	if sp == sport.UFC {
		won, err := s.fights.Result(ctx, e.Team1, e.Team2, e.EventDate)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return false, fmt.Errorf("fight result of %s: %w", e.ID, err)
		}
		return won, err
	}
	won, err := s.results.Result(ctx, sp.String(), e.Team1, e.Team2, e.EventDate)
	if errors.Is(err, store.ErrNotFound) {
		// Individual sports may only have the opponent's history.
		var oppWon bool
		oppWon, err = s.results.Result(ctx, sp.String(), e.Team2, e.Team1, e.EventDate)
		won = !oppWon
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("result of %s: %w", e.ID, err)
	}
	return won, err
}
