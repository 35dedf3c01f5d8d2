package reconciliation

import (
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/features"
	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
)

// ErrNoOdds is returned when no sportsbook quote matches a row.
var ErrNoOdds = errors.New("no matching odds")

// Strategy decides between several matching sportsbook events.
type Strategy string

const (
	// PreferLatest takes the most recently scraped quote.
	PreferLatest Strategy = "prefer_latest"

	// SkipAmbiguous leaves the row unpriced when more than one event matches.
	SkipAmbiguous Strategy = "skip_ambiguous"

	// ClosestLine takes the line whose two prices are nearest each other.
	ClosestLine Strategy = "closest_line"
)

// Rule describes how one sport's market is matched to scraped rows.
type Rule struct {
	// Shift is added to the row date before comparing calendar days.
	Shift time.Duration
	// NextDay allows the sportsbook date to be one day after the row date.
	NextDay bool
	// Tournament requires the same year and a loosely equal tournament name.
	Tournament bool
	Strategy   Strategy
}

// RuleFor returns the matching rule for a sport and market.
func RuleFor(s sport.Sport, m sport.Market) Rule {
	switch s {
	case sport.NBA:
		if m == sport.Moneyline {
			return Rule{NextDay: true, Strategy: PreferLatest}
		}
		return Rule{Shift: 5 * time.Hour, Strategy: SkipAmbiguous}
	case sport.NFL:
		if m == sport.Moneyline {
			return Rule{NextDay: true, Strategy: PreferLatest}
		}
		return Rule{Strategy: SkipAmbiguous}
	case sport.UFC:
		return Rule{NextDay: true, Strategy: SkipAmbiguous}
	case sport.ATP:
		if m == sport.TotalGames {
			return Rule{Tournament: true, Strategy: ClosestLine}
		}
		return Rule{Tournament: true, Strategy: PreferLatest}
	}
	return Rule{NextDay: true, Strategy: PreferLatest}
}

// Metrics tracks join outcomes.
type Metrics struct {
	Rows      int
	Joined    int
	Ambiguous int
	Unmatched int
	LastJoin  time.Time
}

// Joiner attaches sportsbook quotes to feature rows.
type Joiner struct {
	names  *NameMatcher
	logger *zap.Logger

	mu      sync.Mutex
	metrics Metrics
}

// NewJoiner creates a joiner. A nil matcher uses the built-in aliases.
func NewJoiner(names *NameMatcher, logger *zap.Logger) *Joiner {
	if names == nil {
		names = NewNameMatcher(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Joiner{names: names, logger: logger.Named("joiner")}
}

// Join prices every row it can for one market. Rows without a match are
// returned unchanged.
func (j *Joiner) Join(s sport.Sport, m sport.Market, rows []features.Row, quotes []store.OddsQuote) []features.Row {
	market := marketQuotes(quotes, m)
	out := make([]features.Row, len(rows))
	joined := 0
	for i, r := range rows {
		priced, err := j.join(s, m, r, market)
		if err != nil {
			out[i] = r
			continue
		}
		out[i] = priced
		joined++
	}

	j.logger.Info("joined odds",
		zap.String("sport", s.String()),
		zap.String("market", string(m)),
		zap.Int("rows", len(rows)),
		zap.Int("quotes", len(market)),
		zap.Int("joined", joined),
	)
	return out
}

// JoinOne prices a single row, returning ErrNoOdds when nothing matches.
func (j *Joiner) JoinOne(s sport.Sport, m sport.Market, r features.Row, quotes []store.OddsQuote) (features.Row, error) {
	return j.join(s, m, r, marketQuotes(quotes, m))
}

func (j *Joiner) join(s sport.Sport, m sport.Market, r features.Row, quotes []store.OddsQuote) (features.Row, error) {
	rule := RuleFor(s, m)
	match := entityMatcher{teams: Teams(s), names: j.names}

	j.mu.Lock()
	j.metrics.Rows++
	j.metrics.LastJoin = time.Now()
	j.mu.Unlock()

	candidates := j.candidates(match, rule, m, r, quotes)
	if len(candidates) == 0 {
		j.count(func(mt *Metrics) { mt.Unmatched++ })
		return r, ErrNoOdds
	}

	var q features.Quote
	var start time.Time
	switch rule.Strategy {
	case ClosestLine:
		best, ok := closest(match, r.Entity, candidates)
		if !ok {
			j.count(func(mt *Metrics) { mt.Unmatched++ })
			return r, ErrNoOdds
		}
		q = overUnder(best)
		if opp, ok := closest(match, r.Opponent, candidates); ok {
			q.OpponentLine = overUnder(opp).Line
		}
		start = best.StartDate

	case SkipAmbiguous:
		events := latestPerEvent(candidates)
		if len(events) > 1 {
			j.count(func(mt *Metrics) { mt.Ambiguous++ })
			j.logger.Debug("multiple sportsbook events matched",
				zap.String("row", r.String()),
				zap.Int("events", len(events)),
			)
			return r, ErrNoOdds
		}
		q = orient(match, m, r, events[0])
		start = events[0].StartDate

	default:
		events := latestPerEvent(candidates)
		latest := events[0]
		for _, e := range events[1:] {
			if e.ScrapedAt.After(latest.ScrapedAt) {
				latest = e
			}
		}
		q = orient(match, m, r, latest)
		start = latest.StartDate
	}

	r.SetQuote(m, q)
	if m == sport.Moneyline || r.StartTime.IsZero() {
		r.StartTime = start
	}
	j.count(func(mt *Metrics) { mt.Joined++ })
	return r, nil
}

// candidates returns the quotes for the row's pairing, trying the row's
// calendar day before the next one.
func (j *Joiner) candidates(match entityMatcher, rule Rule, m sport.Market, r features.Row, quotes []store.OddsQuote) []store.OddsQuote {
	var paired []store.OddsQuote
	for _, q := range quotes {
		a, b, ok := participants(m, q)
		if !ok {
			continue
		}
		if matched, _ := match.pairMatches(r.Entity, r.Opponent, a, b); !matched {
			continue
		}
		if rule.Tournament && !sameTournament(r, q) {
			continue
		}
		paired = append(paired, q)
	}
	if len(paired) == 0 {
		return nil
	}

	if rule.Tournament {
		return paired
	}

	day := r.Date.Add(rule.Shift).UTC()
	days := []time.Time{day}
	if rule.NextDay {
		days = append(days, day.AddDate(0, 0, 1))
	}
	for _, d := range days {
		key := d.Format("2006-01-02")
		var out []store.OddsQuote
		for _, q := range paired {
			if q.StartDate.UTC().Format("2006-01-02") == key {
				out = append(out, q)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// GetMetrics returns a snapshot of join metrics.
func (j *Joiner) GetMetrics() Metrics {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.metrics
}

// ResetMetrics clears all metrics.
func (j *Joiner) ResetMetrics() {
	j.mu.Lock()
	j.metrics = Metrics{LastJoin: time.Now()}
	j.mu.Unlock()
}

func (j *Joiner) count(f func(*Metrics)) {
	j.mu.Lock()
	f(&j.metrics)
	j.mu.Unlock()
}

func marketQuotes(quotes []store.OddsQuote, m sport.Market) []store.OddsQuote {
	out := make([]store.OddsQuote, 0, len(quotes))
	for _, q := range quotes {
		if sport.Market(q.Market) == m {
			out = append(out, q)
		}
	}
	return out
}

// participants returns the two sides of the contest a quote prices. Over/under
// and yes/no markets carry them only in the event name.
func participants(m sport.Market, q store.OddsQuote) (string, string, bool) {
	switch m {
	case sport.Moneyline, sport.Spread:
		return q.Player1, q.Player2, q.Player1 != "" && q.Player2 != ""
	}
	return splitEventName(q.EventName)
}

func sameTournament(r features.Row, q store.OddsQuote) bool {
	if q.StartDate.UTC().Year() != r.Date.Year() {
		return false
	}
	return tournamentMatches(strings.ToLower(q.Tournament.String), strings.ToLower(r.Attrs["tournament"]))
}

// latestPerEvent collapses repeated scrapes of one sportsbook event.
func latestPerEvent(quotes []store.OddsQuote) []store.OddsQuote {
	byEvent := make(map[string]store.OddsQuote, len(quotes))
	for _, q := range quotes {
		if cur, ok := byEvent[q.BookEventID]; !ok || q.ScrapedAt.After(cur.ScrapedAt) {
			byEvent[q.BookEventID] = q
		}
	}
	out := make([]store.OddsQuote, 0, len(byEvent))
	for _, q := range byEvent {
		out = append(out, q)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].BookEventID < out[k].BookEventID })
	return out
}

// closest picks, among one player's prop lines, the one with the most even
// prices.
func closest(match entityMatcher, player string, quotes []store.OddsQuote) (store.OddsQuote, bool) {
	var best store.OddsQuote
	found := false
	for _, q := range quotes {
		if !q.Participant.Valid || !match.same(q.Participant.String, player) {
			continue
		}
		gap := math.Abs(float64(q.Player1Odds - q.Player2Odds))
		if !found || gap < math.Abs(float64(best.Player1Odds-best.Player2Odds)) ||
			(gap == math.Abs(float64(best.Player1Odds-best.Player2Odds)) && q.ScrapedAt.After(best.ScrapedAt)) {
			best = q
			found = true
		}
	}
	return best, found
}

// orient turns a quote into the row entity's perspective.
func orient(match entityMatcher, m sport.Market, r features.Row, q store.OddsQuote) features.Quote {
	switch m {
	case sport.Moneyline, sport.Spread:
		_, swapped := match.pairMatches(r.Entity, r.Opponent, q.Player1, q.Player2)
		if swapped {
			return features.Quote{
				Line:         q.Player2Points.Float64,
				OpponentLine: q.Player1Points.Float64,
				Price:        q.Player2Odds,
				Opposite:     q.Player1Odds,
			}
		}
		return features.Quote{
			Line:         q.Player1Points.Float64,
			OpponentLine: q.Player2Points.Float64,
			Price:        q.Player1Odds,
			Opposite:     q.Player2Odds,
		}
	}
	return overUnder(q)
}

// overUnder orients an over/under or yes/no quote so Price is the over (yes)
// side.
func overUnder(q store.OddsQuote) features.Quote {
	first := strings.ToLower(strings.TrimSpace(q.Player1))
	if first == "under" || first == "no" {
		return features.Quote{
			Line:     q.Player2Points.Float64,
			Price:    q.Player2Odds,
			Opposite: q.Player1Odds,
		}
	}
	return features.Quote{
		Line:     q.Player1Points.Float64,
		Price:    q.Player1Odds,
		Opposite: q.Player2Odds,
	}
}
