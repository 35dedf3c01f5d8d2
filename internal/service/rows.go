package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fortuna/augur/internal/config"
	"github.com/fortuna/augur/internal/features"
	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
)

// HistorySource reads scraped team and player games.
type HistorySource interface {
	Since(ctx context.Context, sport string, since time.Time) ([]store.HistoryGame, error)
}

// FightSource reads scraped UFC fights.
type FightSource interface {
	Since(ctx context.Context, since time.Time) ([]store.Fight, error)
}

// ProfileSource reads fighter and player profiles by name.
type ProfileSource interface {
	All(ctx context.Context, sport string) (map[string]store.Profile, error)
}

// RowBuilder turns stored history into feature rows for one sport.
type RowBuilder struct {
	history  HistorySource
	fights   FightSource
	profiles ProfileSource
}

// NewRowBuilder creates a row builder.
func NewRowBuilder(history HistorySource, fights FightSource, profiles ProfileSource) *RowBuilder {
	return &RowBuilder{history: history, fights: fights, profiles: profiles}
}

// Build loads everything scraped since the configured start year and
// processes it with the sport's feature pipeline.
func (b *RowBuilder) Build(ctx context.Context, s sport.Sport, sc config.SportConfig) ([]features.Row, error) {
	since := time.Date(sc.HistoryStartYear, time.January, 1, 0, 0, 0, 0, time.UTC)

	switch s {
	case sport.UFC:
		fights, err := b.fights.Since(ctx, since)
		if err != nil {
			return nil, fmt.Errorf("loading fights: %w", err)
		}
		profiles, err := b.profiles.All(ctx, s.String())
		if err != nil {
			return nil, fmt.Errorf("loading fighter profiles: %w", err)
		}
		bouts := make([]features.Bout, len(fights))
		for i, f := range fights {
			bouts[i] = f.Bout()
		}
		fighters := make(map[string]features.Fighter, len(profiles))
		for name, p := range profiles {
			fighters[name] = p.Fighter()
		}
		return features.ProcessUFC(bouts, fighters, features.UFCOptions{YearWindows: sc.YearWindows}), nil
	}

	stored, err := b.history.Since(ctx, s.String(), since)
	if err != nil {
		return nil, fmt.Errorf("loading %s history: %w", s, err)
	}
	games := make([]features.Game, len(stored))
	for i, g := range stored {
		games[i] = g.Game()
	}
	if s == sport.NFL {
		games = features.CleanNFL(games)
	}
	histories := features.GroupHistories(games)

	switch s {
	case sport.NBA:
		opts := features.DefaultNBAOptions()
		if len(sc.Windows) > 0 {
			opts.Windows = sc.Windows
		}
		if len(sc.YearWindows) > 0 {
			opts.YearWindows = sc.YearWindows
		}
		return features.Balance(features.ProcessNBA(histories, games, opts)), nil
	case sport.NFL:
		opts := features.DefaultNFLOptions()
		if len(sc.Windows) > 0 {
			opts.Windows = sc.Windows
		}
		if len(sc.YearWindows) > 0 {
			opts.YearWindows = sc.YearWindows
		}
		return features.Balance(features.ProcessNFL(histories, games, opts)), nil
	case sport.ATP:
		profiles, err := b.profiles.All(ctx, s.String())
		if err != nil {
			return nil, fmt.Errorf("loading player profiles: %w", err)
		}
		players := make(map[string]features.Player, len(profiles))
		for name, p := range profiles {
			players[name] = p.Player()
		}
		opts := features.ATPOptions{Windows: sc.Windows, YearWindows: sc.YearWindows}
		return features.ProcessATP(histories, games, players, opts), nil
	}
	return nil, fmt.Errorf("no feature pipeline for %q", s)
}

// LabelMarkets adds the line-dependent labels (spread_result, total_result,
// total_games_result) to rows that carry the matching quote. Rows without a
// quote are kept unchanged.
func LabelMarkets(s sport.Sport, rows []features.Row) []features.Row {
	var labeled [][]features.Row
	switch s {
	case sport.NBA, sport.NFL:
		labeled = [][]features.Row{features.LabelSpread(rows), features.LabelTotal(rows)}
	case sport.ATP:
		labeled = [][]features.Row{features.LabelTotalGames(rows)}
	default:
		return rows
	}

	extra := make(map[string]map[string]float64)
	for _, set := range labeled {
		for _, r := range set {
			k := r.Key() + "|" + r.Entity
			if extra[k] == nil {
				extra[k] = make(map[string]float64)
			}
			for name, v := range r.Labels {
				extra[k][name] = v
			}
		}
	}

	out := make([]features.Row, len(rows))
	for i, r := range rows {
		if labels, ok := extra[r.Key()+"|"+r.Entity]; ok {
			merged := make(map[string]float64, len(r.Labels)+len(labels))
			for name, v := range r.Labels {
				merged[name] = v
			}
			for name, v := range labels {
				merged[name] = v
			}
			r.Labels = merged
		}
		out[i] = r
	}
	return out
}
