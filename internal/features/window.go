package features

import (
	"fmt"
	"time"
)

// LastN averages stats over the entity's n most recent played games before
// date. Every stat is divided by the number of games found (at least 1).
// The second return value is that number.
func LastN(h History, date time.Time, n int, prefix string, stats []string) (Features, int) {
	out := make(Features, len(stats))
	for _, s := range stats {
		out[prefix+s] = 0
	}

	count := 0
	for _, g := range h {
		if !g.Played || !g.Date.Before(date) {
			continue
		}
		if count >= n {
			break
		}
		for _, s := range stats {
			out[prefix+s] += g.Stat(s)
		}
		count++
	}

	divisor := float64(max(count, 1))
	for k := range out {
		out[k] /= divisor
	}
	return out, count
}

// YearPrefix is the key prefix of a calendar-year window.
func YearPrefix(years int) string {
	return fmt.Sprintf("last_%d_yr_", years)
}

// LastYears sums stats over trailing calendar-year windows ending before
// date. Only the ratio stats are averaged by the window's game count;
// counting stats stay as totals.
func LastYears(h History, date time.Time, years []int, stats []string, ratios []string) Features {
	out := make(Features, len(years)*len(stats))
	counts := make([]int, len(years))
	cutoffs := make([]time.Time, len(years))
	oldest := date
	for i, y := range years {
		prefix := YearPrefix(y)
		for _, s := range stats {
			out[prefix+s] = 0
		}
		cutoffs[i] = YearsBefore(date, y)
		if cutoffs[i].Before(oldest) {
			oldest = cutoffs[i]
		}
	}

	for _, g := range h {
		if !g.Played || !g.Date.Before(date) {
			continue
		}
		if g.Date.Before(oldest) {
			break
		}
		for i, y := range years {
			if g.Date.Before(cutoffs[i]) {
				continue
			}
			prefix := YearPrefix(y)
			for _, s := range stats {
				out[prefix+s] += g.Stat(s)
			}
			counts[i]++
		}
	}

	for i, y := range years {
		prefix := YearPrefix(y)
		divisor := float64(max(counts[i], 1))
		for _, s := range ratios {
			out[prefix+s] /= divisor
		}
	}
	return out
}

// SideYears is LastYears with the side inserted after the window prefix,
// e.g. last_1_yr_team_points.
func SideYears(h History, date time.Time, years []int, side string, stats, ratios []string) Features {
	raw := LastYears(h, date, years, stats, ratios)
	out := make(Features, len(raw))
	for _, y := range years {
		prefix := YearPrefix(y)
		for _, s := range stats {
			out[prefix+side+"_"+s] = raw[prefix+s]
		}
	}
	return out
}

// SeasonGameNumber is the 1-based index of the game on date within its
// season. Seasons start on the first of startMonth; dates earlier in the
// calendar year belong to the season that started the previous year.
func SeasonGameNumber(h History, date time.Time, startMonth time.Month) int {
	year := date.Year()
	if date.Month() < startMonth {
		year--
	}
	seasonStart := time.Date(year, startMonth, 1, 0, 0, 0, 0, date.Location())

	n := 0
	for _, g := range h {
		if !g.Date.Before(seasonStart) && g.Date.Before(date) {
			n++
		}
	}
	return n + 1
}

// YearsBefore subtracts whole calendar years, clamping Feb 29 to Feb 28.
func YearsBefore(date time.Time, years int) time.Time {
	y := date.Year() - years
	d := date.Day()
	if date.Month() == time.February && d == 29 && !isLeap(y) {
		d = 28
	}
	return time.Date(y, date.Month(), d, date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
