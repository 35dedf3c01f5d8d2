package features

import (
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/fortuna/augur/internal/sport"
)

// NFLStats are the per-game team stats averaged into NFL features.
var NFLStats = []string{
	"wins", "losses",
	"points", "opponent_points",
	"first_downs_off", "first_downs_def",
	"total_yards_off", "total_yards_def",
	"pass_yards_off", "pass_yards_def",
	"rush_yards_off", "rush_yards_def",
	"turnovers_off", "turnovers_def",
	"team_strong_drives", "opp_strong_drives",
}

// easternCutoff is the first date whose scraped kickoff times are
// interpreted as Eastern rather than UTC.
var easternCutoff = time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)

var fallbackKickoff = time.Date(1995, time.January, 1, 0, 0, 0, 0, time.UTC)

var eastern = mustLoadLocation("America/New_York")

// ParseHome interprets the loosely typed home flag from scraped rows.
func ParseHome(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y":
		return true
	}
	return false
}

// ParseWin interprets the loosely typed result column from scraped rows.
func ParseWin(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f > 0
	}
	switch s {
	case "1", "w", "win", "true", "t", "yes", "y":
		return true
	case "0", "l", "loss", "false", "f", "no", "n":
		return false
	}
	return strings.HasPrefix(s, "w")
}

// KickoffTime combines a YYYY-MM-DD date and a "4:25PM ET" clock into UTC.
// A clock token too short to hold a time means noon. Dates from the
// 2025 season onward are Eastern; earlier rows were stored as UTC.
func KickoffTime(date, clock string) time.Time {
	day, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		return fallbackKickoff
	}

	local := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.UTC)
	if fields := strings.Fields(clock); len(fields) > 0 {
		token := strings.ToUpper(fields[0])
		if len(token) > 2 {
			t, err := time.Parse("3:04PM", token)
			if err != nil {
				return fallbackKickoff
			}
			local = time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
		}
	} else {
		local = day
	}

	if local.After(easternCutoff) {
		et := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), 0, 0, eastern)
		return et.UTC()
	}
	return local
}

// NFLSeason is the season a date belongs to: games in January and February
// count toward the previous year's season.
func NFLSeason(date time.Time) int {
	if date.Month() < time.March {
		return date.Year() - 1
	}
	return date.Year()
}

// CleanNFL drops self-matches and normalizes the scraped "home" and "win"
// attributes into Home and Win. A missing "year" attribute is derived from
// the date with NFLSeason. The input is not modified.
func CleanNFL(games []Game) []Game {
	out := make([]Game, 0, len(games))
	for _, g := range games {
		if g.Entity == "" || g.Opponent == "" || g.Entity == g.Opponent {
			continue
		}

		attrs := make(map[string]string, len(g.Attrs)+1)
		for k, v := range g.Attrs {
			attrs[k] = v
		}
		if v, ok := attrs["home"]; ok {
			g.Home = ParseHome(v)
		}
		if v, ok := attrs["win"]; ok && v != "" {
			g.Win = ParseWin(v)
		}
		if attrs["year"] == "" {
			attrs["year"] = strconv.Itoa(NFLSeason(g.Date))
		}
		g.Attrs = attrs

		out = append(out, g)
	}
	return out
}

// NFLOptions tunes NFL feature generation.
type NFLOptions struct {
	Windows []int
	// YearWindows are trailing calendar-year spans summed with LastYears.
	YearWindows []int
	// MinWeek skips the opening weeks of each season.
	MinWeek int
}

// DefaultNFLOptions mirrors the deployed NFL models.
func DefaultNFLOptions() NFLOptions {
	return NFLOptions{Windows: []int{3, 1}, YearWindows: []int{1}, MinWeek: 3}
}

// ProcessNFL turns team-perspective games into feature rows. The week number
// is read from the "week" stat.
func ProcessNFL(histories Histories, games []Game, opts NFLOptions) []Row {
	if len(opts.Windows) == 0 {
		opts.Windows = DefaultNFLOptions().Windows
	}

	rows := make([]Row, 0, len(games))
	for _, g := range CleanNFL(games) {
		week := int(g.Stats["week"])
		if week <= opts.MinWeek {
			continue
		}

		teamHistory, oppHistory := histories[g.Entity], histories[g.Opponent]
		row := Row{
			Sport:      sport.NFL,
			Entity:     g.Entity,
			Opponent:   g.Opponent,
			Date:       g.Date,
			Home:       g.Home,
			Played:     g.Played,
			Result:     g.Win,
			HasHistory: teamHistory.PlayedBefore(g.Date),
			Features:   Features{},
			Attrs:      map[string]string{"week": strconv.Itoa(week), "year": g.Attrs["year"]},
		}

		for _, n := range opts.Windows {
			team, _ := LastN(teamHistory, g.Date, n, windowPrefix(n, "team"), NFLStats)
			opp, _ := LastN(oppHistory, g.Date, n, windowPrefix(n, "opp"), NFLStats)
			row.Features.Merge(team, opp)
		}
		if len(opts.YearWindows) > 0 {
			row.Features.Merge(
				SideYears(teamHistory, g.Date, opts.YearWindows, "team", NFLStats, nil),
				SideYears(oppHistory, g.Date, opts.YearWindows, "opp", NFLStats, nil),
			)
		}

		pts := g.Stat("points")
		oppPts := g.Stat("opponent_points")
		row.Points = pts
		row.OpponentPoints = oppPts
		if g.Played {
			row.setLabel("team_spread", oppPts-pts)
			row.setLabel("opp_spread", pts-oppPts)
			row.setLabel("game_total", pts+oppPts)
		}

		rows = append(rows, row)
	}
	return rows
}

// LabelSpread keeps rows with a spread quote and, for played games, sets
// spread_result from the cover margin. Pushes are dropped.
func LabelSpread(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		q, ok := r.Quote(sport.Spread)
		if !ok {
			continue
		}
		if r.Played {
			r.Labels = cloneLabels(r.Labels)
			teamSpread, _ := r.Label("team_spread")
			margin := q.Line - teamSpread
			if margin == 0 {
				continue
			}
			r.setLabel("spread_margin", margin)
			r.setLabel("spread_result", boolFloat(margin > 0))
		}
		out = append(out, r)
	}
	return out
}

// LabelTotal keeps rows with a total quote and sets total_result (over) for
// played games.
func LabelTotal(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		q, ok := r.Quote(sport.Total)
		if !ok {
			continue
		}
		if r.Played {
			r.Labels = cloneLabels(r.Labels)
			total, _ := r.Label("game_total")
			r.setLabel("total_result", boolFloat(total > q.Line))
		}
		out = append(out, r)
	}
	return out
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}
