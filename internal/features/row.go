package features

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fortuna/augur/internal/sport"
)

// Quote is a two-sided market price oriented to a row's entity: Price is the
// entity / over / yes side and Opposite the opponent / under / no side.
type Quote struct {
	Line         float64
	OpponentLine float64
	Price        int
	Opposite     int
}

// Row is one model input: an entity, its opponent, engineered features and
// whatever labels and odds are known.
type Row struct {
	Sport    sport.Sport
	Entity   string
	Opponent string
	Date     time.Time
	Home     bool
	Played   bool
	Result   bool

	// StartTime is the sportsbook's scheduled start, set when odds are joined.
	StartTime time.Time

	Points         float64
	OpponentPoints float64

	// HasHistory is false when the entity had no played game before Date.
	HasHistory bool

	Features Features
	Labels   map[string]float64
	Attrs    map[string]string
	Odds     map[sport.Market]Quote
}

// Key identifies the contest independent of perspective.
func (r Row) Key() string {
	return MatchKey(r.Entity, r.Opponent, r.Date)
}

// MatchKey is the perspective-independent id of a contest: the smaller
// name, the larger name and the calendar date.
func MatchKey(a, b string, date time.Time) string {
	if b < a {
		a, b = b, a
	}
	return a + b + date.Format("2006-01-02")
}

// SetQuote records a market quote on the row.
func (r *Row) SetQuote(m sport.Market, q Quote) {
	if r.Odds == nil {
		r.Odds = make(map[sport.Market]Quote)
	}
	r.Odds[m] = q
}

// Quote returns a market quote if one was joined.
func (r Row) Quote(m sport.Market) (Quote, bool) {
	q, ok := r.Odds[m]
	return q, ok
}

// Label returns a label value and whether it is set.
func (r Row) Label(name string) (float64, bool) {
	v, ok := r.Labels[name]
	return v, ok
}

func (r *Row) setLabel(name string, v float64) {
	if r.Labels == nil {
		r.Labels = make(map[string]float64)
	}
	r.Labels[name] = v
}

// ModelInput flattens the row into the named inputs a classifier sees. Labels
// and identifiers never leak into it.
func (r Row) ModelInput() map[string]float64 {
	in := make(map[string]float64, len(r.Features)+8)
	for k, v := range r.Features {
		in[k] = v
	}
	in["location"] = boolFloat(r.Home)

	if q, ok := r.Odds[sport.Moneyline]; ok {
		in["player_odds"] = float64(q.Price)
		in["opponent_odds"] = float64(q.Opposite)
	}
	if q, ok := r.Odds[sport.Spread]; ok {
		in["team_spread_line"] = q.Line
		in["opp_spread_line"] = q.OpponentLine
	}
	if q, ok := r.Odds[sport.Total]; ok {
		in["total_line"] = q.Line
	}
	if q, ok := r.Odds[sport.TotalRounds]; ok {
		in["rounds_line"] = q.Line
	}
	if q, ok := r.Odds[sport.TotalGames]; ok {
		in["games_line"] = q.Line
	}
	return in
}

// FeatureNames returns the sorted union of feature names across rows.
func FeatureNames(rows []Row) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		for k := range r.ModelInput() {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SplitUpcoming separates rows still to be played (at or after cutoff) from
// completed training rows.
func SplitUpcoming(rows []Row, cutoff time.Time) (upcoming, training []Row) {
	for _, r := range rows {
		if !r.Played && !r.Date.Before(cutoff) {
			upcoming = append(upcoming, r)
			continue
		}
		if r.Played {
			training = append(training, r)
		}
	}
	return upcoming, training
}

// EventTime is the joined start time, or Date when no odds were joined.
func (r Row) EventTime() time.Time {
	if r.StartTime.IsZero() {
		return r.Date
	}
	return r.StartTime
}

func (r Row) String() string {
	return fmt.Sprintf("%s %s vs %s %s", strings.ToUpper(string(r.Sport)), r.Entity, r.Opponent, r.Date.Format("2006-01-02"))
}

func cloneLabels(labels map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(labels)+2)
	for k, v := range labels {
		out[k] = v
	}
	return out
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
