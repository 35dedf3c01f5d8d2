// Package ingest runs the per-sport scrapers and persists what they find.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fortuna/augur/internal/config"
	"github.com/fortuna/augur/internal/features"
	"github.com/fortuna/augur/internal/ingest/bref"
	"github.com/fortuna/augur/internal/ingest/draftkings"
	"github.com/fortuna/augur/internal/ingest/fetch"
	"github.com/fortuna/augur/internal/ingest/pfr"
	"github.com/fortuna/augur/internal/ingest/tennisabstract"
	"github.com/fortuna/augur/internal/ingest/ufcstats"
	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
)

// Defaults for a Collector.
const (
	DefaultConcurrency = 4
	DefaultUFCEvents   = 3
	DefaultATPPlayers  = 150
	DefaultNFLWeeks    = 4
)

// HistoryWriter persists team games and tennis matches.
type HistoryWriter interface {
	UpsertGames(ctx context.Context, games []store.HistoryGame) (int, error)
}

// FightWriter persists UFC bouts.
type FightWriter interface {
	UpsertFights(ctx context.Context, fights []store.Fight) (int, error)
}

// ProfileWriter persists fighter and player profiles.
type ProfileWriter interface {
	Upsert(ctx context.Context, p *store.Profile) error
}

// QuoteWriter persists sportsbook quotes.
type QuoteWriter interface {
	UpsertQuotes(ctx context.Context, quotes []store.OddsQuote) (int, error)
}

// Stores groups the writers a Collector persists through.
type Stores struct {
	History  HistoryWriter
	Fights   FightWriter
	Profiles ProfileWriter
	Quotes   QuoteWriter
}

// Summary reports one scrape run.
type Summary struct {
	Sport    sport.Sport   `json:"sport"`
	Entities int           `json:"entities"`
	Failed   int           `json:"failed"`
	Games    int           `json:"games"`
	Profiles int           `json:"profiles"`
	Quotes   int           `json:"quotes"`
	Duration time.Duration `json:"duration"`
}

// Collector scrapes every configured entity of a sport concurrently,
// dedupes the results and stores them.
type Collector struct {
	cfg    *config.Config
	client fetch.Fetcher
	stores Stores
	logger *zap.Logger

	// Concurrency bounds the entities scraped at once.
	Concurrency int
	// UFCEvents is the number of recent completed cards rescraped.
	UFCEvents int
	// ATPPlayers caps the ranked players scraped when none are configured.
	ATPPlayers int
	// NFLWeeks is the look-back before the current week; 0 keeps the season.
	NFLWeeks int

	now func() time.Time
}

// NewCollector creates a collector.
func NewCollector(cfg *config.Config, client fetch.Fetcher, stores Stores, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		cfg:         cfg,
		client:      client,
		stores:      stores,
		logger:      logger.Named("collector"),
		Concurrency: DefaultConcurrency,
		UFCEvents:   DefaultUFCEvents,
		ATPPlayers:  DefaultATPPlayers,
		NFLWeeks:    DefaultNFLWeeks,
		now:         time.Now,
	}
}

// Scrape refreshes the stats history of a sport.
func (c *Collector) Scrape(ctx context.Context, s sport.Sport) (Summary, error) {
	start := c.now()
	var (
		sum Summary
		err error
	)
	switch s {
	case sport.NBA:
		sum, err = c.scrapeNBA(ctx, bref.CurrentSeason(start))
	case sport.NFL:
		sum, err = c.scrapeNFL(ctx, NFLSeason(start))
	case sport.UFC:
		sum, err = c.scrapeUFC(ctx)
	case sport.ATP:
		sum, err = c.scrapeATP(ctx)
	default:
		return Summary{}, fmt.Errorf("unsupported sport %q", s)
	}
	sum.Sport = s
	sum.Duration = c.now().Sub(start)
	if err != nil {
		return sum, err
	}

	c.logger.Info("✓ Scrape complete",
		zap.String("sport", s.String()),
		zap.Int("entities", sum.Entities),
		zap.Int("failed", sum.Failed),
		zap.Int("games", sum.Games),
		zap.Int("profiles", sum.Profiles),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

// ScrapeSeasons scrapes full seasons of team sports for a backfill.
func (c *Collector) ScrapeSeasons(ctx context.Context, s sport.Sport, from, to int, entities []string) (Summary, error) {
	total := Summary{Sport: s}
	for season := from; season <= to; season++ {
		var (
			sum Summary
			err error
		)
		switch s {
		case sport.NBA:
			sum, err = c.teamSeason(ctx, s, entities, func(ctx context.Context, team string) ([]features.Game, error) {
				return bref.NewScraper(c.client, c.cfg.For(s).BaseURL, c.logger).Gamelog(ctx, team, season)
			})
		case sport.NFL:
			sum, err = c.teamSeason(ctx, s, entities, func(ctx context.Context, team string) ([]features.Game, error) {
				return pfr.NewScraper(c.client, c.cfg.For(s).BaseURL, c.logger).Season(ctx, team, season, 0)
			})
		default:
			return total, fmt.Errorf("season backfill is not supported for %s", s)
		}
		if err != nil {
			return total, fmt.Errorf("season %d: %w", season, err)
		}
		total.Entities += sum.Entities
		total.Failed += sum.Failed
		total.Games += sum.Games
	}
	return total, nil
}

// Odds scrapes the sportsbook league page of a sport and stores the quotes.
func (c *Collector) Odds(ctx context.Context, s sport.Sport) (int, error) {
	sc := c.cfg.For(s)
	if sc.OddsURL == "" {
		return 0, fmt.Errorf("no odds url configured for %s", s)
	}
	dk := draftkings.NewScraper(c.client, "", c.cfg.Headless, c.logger)
	quotes, err := dk.Quotes(ctx, s, sc.OddsURL)
	if err != nil {
		return 0, fmt.Errorf("scraping %s odds: %w", s, err)
	}
	quotes = DedupeQuotes(quotes)
	n, err := c.stores.Quotes.UpsertQuotes(ctx, quotes)
	if err != nil {
		return 0, fmt.Errorf("storing %s odds: %w", s, err)
	}
	return n, nil
}

func (c *Collector) scrapeNBA(ctx context.Context, season int) (Summary, error) {
	sc := c.cfg.For(sport.NBA)
	scraper := bref.NewScraper(c.client, sc.BaseURL, c.logger)
	return c.teamSeason(ctx, sport.NBA, sc.Entities, func(ctx context.Context, team string) ([]features.Game, error) {
		played, err := scraper.Gamelog(ctx, team, season)
		if err != nil {
			return nil, err
		}
		upcoming, err := scraper.Schedule(ctx, team, season)
		if err != nil {
			c.logger.Warn("schedule scrape failed", zap.String("team", team), zap.Error(err))
		}
		return append(played, upcoming...), nil
	})
}

func (c *Collector) scrapeNFL(ctx context.Context, season int) (Summary, error) {
	sc := c.cfg.For(sport.NFL)
	scraper := pfr.NewScraper(c.client, sc.BaseURL, c.logger)
	return c.teamSeason(ctx, sport.NFL, sc.Entities, func(ctx context.Context, team string) ([]features.Game, error) {
		return scraper.Season(ctx, team, season, c.NFLWeeks)
	})
}

// teamSeason fans scrape out over teams. A failing team is logged and
// counted, never fatal.
func (c *Collector) teamSeason(ctx context.Context, s sport.Sport, teams []string,
	scrape func(ctx context.Context, team string) ([]features.Game, error)) (Summary, error) {
	if len(teams) == 0 {
		teams = c.cfg.For(s).Entities
	}
	source := bref.Source
	if s == sport.NFL {
		source = pfr.Source
	}

	var (
		mu     sync.Mutex
		games  []features.Game
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency())
	for _, team := range teams {
		team := team
		g.Go(func() error {
			got, err := scrape(gctx, team)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed++
				c.logger.Warn("team scrape failed",
					zap.String("sport", s.String()),
					zap.String("team", team),
					zap.Error(err),
				)
				return nil
			}
			games = append(games, got...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	rows := make([]store.HistoryGame, 0, len(games))
	for _, game := range DedupeGames(games) {
		rows = append(rows, store.NewHistoryGame(s, game, source))
	}
	n, err := c.stores.History.UpsertGames(ctx, rows)
	if err != nil {
		return Summary{}, fmt.Errorf("storing %s games: %w", s, err)
	}
	return Summary{Entities: len(teams), Failed: failed, Games: n}, nil
}

func (c *Collector) scrapeUFC(ctx context.Context) (Summary, error) {
	scraper := ufcstats.NewScraper(c.client, c.cfg.For(sport.UFC).BaseURL, c.logger)

	recent, err := scraper.RecentFights(ctx, c.UFCEvents)
	if err != nil {
		return Summary{}, err
	}
	fights := make([]store.Fight, 0, len(recent))
	for url, b := range recent {
		fights = append(fights, store.NewFight(url, b))
	}

	var sum Summary
	card, err := scraper.NextEvent(ctx)
	if err != nil {
		sum.Failed++
		c.logger.Warn("upcoming card scrape failed", zap.Error(err))
	}
	for _, f := range card.Fights {
		if f.URL != "" {
			fights = append(fights, store.NewFight(f.URL, f.Bout))
		}
	}

	n, err := c.stores.Fights.UpsertFights(ctx, fights)
	if err != nil {
		return Summary{}, fmt.Errorf("storing fights: %w", err)
	}
	sum.Games = n

	fighters, err := scraper.CardFighters(ctx, card)
	if err != nil {
		return Summary{}, err
	}
	for _, f := range fighters {
		p := store.NewFighterProfile(f, "")
		if err := c.stores.Profiles.Upsert(ctx, &p); err != nil {
			return Summary{}, fmt.Errorf("storing fighter %s: %w", f.Name, err)
		}
		sum.Profiles++
	}
	sum.Entities = len(fighters)
	return sum, nil
}

func (c *Collector) scrapeATP(ctx context.Context) (Summary, error) {
	sc := c.cfg.For(sport.ATP)
	scraper := tennisabstract.NewScraper(c.client, sc.BaseURL, c.logger)

	players := sc.Entities
	if len(players) == 0 {
		ranked, err := scraper.RankedPlayers(ctx)
		if err != nil {
			return Summary{}, err
		}
		if c.ATPPlayers > 0 && len(ranked) > c.ATPPlayers {
			ranked = ranked[:c.ATPPlayers]
		}
		players = ranked
	}
	return c.scrapePlayers(ctx, scraper, players)
}

// ScrapePlayers refreshes the match history and profiles of named ATP
// players for a backfill.
func (c *Collector) ScrapePlayers(ctx context.Context, s sport.Sport, names []string) (Summary, error) {
	if s != sport.ATP {
		return Summary{Sport: s}, fmt.Errorf("player backfill is not supported for %s", s)
	}
	scraper := tennisabstract.NewScraper(c.client, c.cfg.For(s).BaseURL, c.logger)
	sum, err := c.scrapePlayers(ctx, scraper, names)
	sum.Sport = s
	return sum, err
}

func (c *Collector) scrapePlayers(ctx context.Context, scraper *tennisabstract.Scraper, players []string) (Summary, error) {
	var (
		mu       sync.Mutex
		games    []features.Game
		profiles []features.Player
		failed   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency())
	for _, name := range players {
		name := name
		g.Go(func() error {
			profile, got, err := scraper.Player(gctx, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed++
				c.logger.Warn("player scrape failed", zap.String("player", name), zap.Error(err))
				return nil
			}
			profiles = append(profiles, profile)
			games = append(games, got...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	rows := make([]store.HistoryGame, 0, len(games))
	for _, game := range DedupeGames(games) {
		rows = append(rows, store.NewHistoryGame(sport.ATP, game, tennisabstract.Source))
	}
	n, err := c.stores.History.UpsertGames(ctx, rows)
	if err != nil {
		return Summary{}, fmt.Errorf("storing matches: %w", err)
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	for _, pl := range profiles {
		p := store.NewPlayerProfile(pl)
		if err := c.stores.Profiles.Upsert(ctx, &p); err != nil {
			return Summary{}, fmt.Errorf("storing player %s: %w", pl.Name, err)
		}
	}
	return Summary{Entities: len(players), Failed: failed, Games: n, Profiles: len(profiles)}, nil
}

func (c *Collector) concurrency() int {
	if c.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return c.Concurrency
}

// NFLSeason names the season a date belongs to: games in January and
// February count toward the previous year's season.
func NFLSeason(now time.Time) int {
	return features.NFLSeason(now)
}

// DedupeGames keeps the first game per entity, opponent and date, so newer
// scrapes should come first. A played copy beats an unplayed one.
func DedupeGames(games []features.Game) []features.Game {
	index := make(map[string]int, len(games))
	out := make([]features.Game, 0, len(games))
	for _, g := range games {
		key := strings.Join([]string{g.Entity, g.Opponent, g.Date.Format("2006-01-02")}, "|")
		if i, ok := index[key]; ok {
			if g.Played && !out[i].Played {
				out[i] = g
			}
			continue
		}
		index[key] = len(out)
		out = append(out, g)
	}
	return out
}

// DedupeQuotes keeps the last quote per market id.
func DedupeQuotes(quotes []store.OddsQuote) []store.OddsQuote {
	index := make(map[string]int, len(quotes))
	out := make([]store.OddsQuote, 0, len(quotes))
	for _, q := range quotes {
		if i, ok := index[q.MarketID]; ok {
			out[i] = q
			continue
		}
		index[q.MarketID] = len(out)
		out = append(out, q)
	}
	return out
}
