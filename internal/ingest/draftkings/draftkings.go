// Package draftkings scrapes two-outcome market prices from DraftKings
// sportsbook pages.
package draftkings

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/ingest/fetch"
	"github.com/fortuna/augur/internal/oddsmath"
	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
)

// BaseURL of the sportsbook.
const BaseURL = "https://sportsbook.draftkings.com"

// EventLink is a sportsbook event listed on a league page.
type EventLink struct {
	ID         string
	URLName    string
	Name       string
	Tournament string
	StartDate  time.Time
}

type renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Scraper reads sportsbook pages. With render set, pages are loaded through
// the client's headless browser when it has one.
type Scraper struct {
	client  fetch.Fetcher
	baseURL string
	render  bool
	logger  *zap.Logger
	now     func() time.Time
}

// NewScraper creates a scraper. An empty baseURL uses BaseURL.
func NewScraper(client fetch.Fetcher, baseURL string, render bool, logger *zap.Logger) *Scraper {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		render:  render,
		logger:  logger.Named("draftkings"),
		now:     time.Now,
	}
}

func (s *Scraper) page(ctx context.Context, url string) (string, error) {
	if s.render {
		if r, ok := s.client.(renderer); ok {
			return r.Render(ctx, url)
		}
	}
	return s.client.Get(ctx, url)
}

// Quotes scrapes every event on a league page. Events that fail are logged
// and skipped.
func (s *Scraper) Quotes(ctx context.Context, sp sport.Sport, leagueURL string) ([]store.OddsQuote, error) {
	links, err := s.Events(ctx, leagueURL)
	if err != nil {
		return nil, err
	}

	scrapedAt := s.now().UTC()
	var quotes []store.OddsQuote
	failed := 0
	for _, link := range links {
		q, err := s.EventQuotes(ctx, sp, link, scrapedAt)
		if err != nil {
			failed++
			s.logger.Warn("event odds scrape failed",
				zap.String("event", link.Name),
				zap.Error(err),
			)
			continue
		}
		quotes = append(quotes, q...)
	}
	s.logger.Info("scraped odds",
		zap.String("sport", sp.String()),
		zap.Int("events", len(links)),
		zap.Int("failed", failed),
		zap.Int("quotes", len(quotes)),
	)
	return quotes, nil
}

// Events lists the events of a league page.
func (s *Scraper) Events(ctx context.Context, leagueURL string) ([]EventLink, error) {
	html, err := s.page(ctx, leagueURL)
	if err != nil {
		return nil, fmt.Errorf("fetching league %s: %w", leagueURL, err)
	}
	state, err := ExtractState(html)
	if err != nil {
		return nil, fmt.Errorf("league %s: %w", leagueURL, err)
	}
	return ParseEvents(state), nil
}

// EventQuotes scrapes the markets of one event.
func (s *Scraper) EventQuotes(ctx context.Context, sp sport.Sport, link EventLink, scrapedAt time.Time) ([]store.OddsQuote, error) {
	url := fmt.Sprintf("%s/event/%s/%s", s.baseURL, link.URLName, link.ID)
	html, err := s.page(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching event %s: %w", link.ID, err)
	}
	state, err := ExtractState(html)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", link.ID, err)
	}
	return ParseEventQuotes(state, sp, link, scrapedAt), nil
}

// ParseEvents reads the events of every event group in a page state,
// ordered by start time.
func ParseEvents(state map[string]interface{}) []EventLink {
	var links []EventLink
	for _, group := range values(state["eventGroups"]) {
		for _, e := range values(group["events"]) {
			link := EventLink{
				ID:         extractString(e, "eventId"),
				URLName:    extractString(e, "urlName"),
				Name:       extractString(e, "name"),
				Tournament: extractString(e, "eventGroupName"),
				StartDate:  parseTime(extractString(e, "startDate")),
			}
			if link.ID == "" {
				continue
			}
			if link.URLName == "" {
				link.URLName = strings.ToLower(strings.ReplaceAll(link.Name, " ", "-"))
			}
			links = append(links, link)
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if !links[i].StartDate.Equal(links[j].StartDate) {
			return links[i].StartDate.Before(links[j].StartDate)
		}
		return links[i].ID < links[j].ID
	})
	return links
}

// ParseEventQuotes joins an event's selections to their markets on marketId
// and pivots every two-outcome market of a known type into a quote.
func ParseEventQuotes(state map[string]interface{}, sp sport.Sport, link EventLink, scrapedAt time.Time) []store.OddsQuote {
	data := extractMap(state, "stadiumEventData")

	markets := make(map[string]map[string]interface{})
	var order []string
	for _, m := range values(data["markets"]) {
		id := extractString(m, "id")
		if id == "" {
			continue
		}
		markets[id] = m
		order = append(order, id)
	}

	selections := make(map[string][]map[string]interface{})
	for _, sel := range values(data["selections"]) {
		id := extractString(sel, "marketId")
		if _, ok := markets[id]; ok {
			selections[id] = append(selections[id], sel)
		}
	}

	var quotes []store.OddsQuote
	for _, id := range order {
		sels := selections[id]
		if len(sels) != 2 {
			continue
		}
		name := extractString(markets[id], "name")
		market, ok := MarketFor(sp, name)
		if !ok {
			continue
		}

		q, ok := pivot(sels[0], sels[1])
		if !ok {
			continue
		}
		q.Sport = string(sp)
		q.BookEventID = link.ID
		q.EventName = link.Name
		q.StartDate = link.StartDate
		q.MarketID = id
		q.Market = string(market)
		q.MarketName = name
		q.ScrapedAt = scrapedAt
		if link.Tournament != "" {
			q.Tournament = sql.NullString{String: link.Tournament, Valid: true}
		}
		if market == sport.TotalGames {
			if p := participant(sels[0], name); p != "" {
				q.Participant = sql.NullString{String: p, Valid: true}
			}
		}
		quotes = append(quotes, q)
	}
	return quotes
}

// MarketFor classifies a sportsbook market name for a sport.
func MarketFor(sp sport.Sport, name string) (sport.Market, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case n == "moneyline":
		return sport.Moneyline, true
	case sp.IsTeamSport() && (n == "spread" || n == "point spread"):
		return sport.Spread, true
	case sp.IsTeamSport() && (n == "total" || n == "total points"):
		return sport.Total, true
	case sp == sport.UFC && strings.Contains(n, "go the distance"):
		return sport.GoesTheDistance, true
	case sp == sport.UFC && strings.Contains(n, "total rounds"):
		return sport.TotalRounds, true
	case sp == sport.ATP && strings.Contains(n, "player total games won"):
		return sport.TotalGames, true
	}
	return "", false
}

// pivot turns two selections into player1/player2 american prices.
func pivot(a, b map[string]interface{}) (store.OddsQuote, bool) {
	da, okA := extractFloat(a, "trueOdds")
	db, okB := extractFloat(b, "trueOdds")
	if !okA || !okB {
		return store.OddsQuote{}, false
	}
	oa, err := oddsmath.DecimalToAmerican(da)
	if err != nil {
		return store.OddsQuote{}, false
	}
	ob, err := oddsmath.DecimalToAmerican(db)
	if err != nil {
		return store.OddsQuote{}, false
	}

	q := store.OddsQuote{
		Player1:     strings.TrimSpace(extractString(a, "label")),
		Player2:     strings.TrimSpace(extractString(b, "label")),
		Player1Odds: oa,
		Player2Odds: ob,
	}
	if p, ok := extractFloat(a, "points"); ok {
		q.Player1Points = sql.NullFloat64{Float64: p, Valid: true}
	}
	if p, ok := extractFloat(b, "points"); ok {
		q.Player2Points = sql.NullFloat64{Float64: p, Valid: true}
	}
	return q, true
}

// participant names the player a prop is about: the selection's player
// participant, else the market name before its suffix.
func participant(sel map[string]interface{}, marketName string) string {
	for _, p := range values(sel["participants"]) {
		if strings.EqualFold(extractString(p, "type"), "player") {
			if name := strings.TrimSpace(extractString(p, "name")); name != "" {
				return name
			}
		}
	}
	i := strings.Index(strings.ToLower(marketName), "player total games won")
	if i < 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(marketName[:i]), " -:")
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
