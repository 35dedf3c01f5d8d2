package features

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fortuna/augur/internal/sport"
)

// Bout is one UFC fight as scraped from the fight details page. Stats1 and
// Stats2 hold each corner's totals keyed by ufcstats column (sig_str_hit,
// td_perc, ctrl, head_str_hit, ...). Result1 is empty for scheduled bouts.
type Bout struct {
	Date        time.Time
	Fighter1    string
	Fighter2    string
	Result1     string
	Result2     string
	WeightClass string
	TitleFight  bool
	Method      string
	Round       int
	Clock       string
	TimeFormat  string
	Referee     string
	Stats1      map[string]float64
	Stats2      map[string]float64
}

// Corner returns the stats of the named fighter and of their opponent.
func (b Bout) Corner(name string) (own, opp map[string]float64, result string) {
	if b.Fighter1 == name {
		return b.Stats1, b.Stats2, b.Result1
	}
	return b.Stats2, b.Stats1, b.Result2
}

// Opponent returns the other fighter in the bout.
func (b Bout) Opponent(name string) string {
	if b.Fighter1 == name {
		return b.Fighter2
	}
	return b.Fighter1
}

// Played reports whether the bout finished with a winner.
func (b Bout) Played() bool {
	return b.Result1 == "W" || b.Result1 == "L"
}

// Fighter is a ufcstats fighter profile.
type Fighter struct {
	Name     string
	Nickname string
	Record   string
	DOB      time.Time
	Height   string
	Weight   string
	Reach    string
	Stance   string
}

var weightClasses = map[string]int{
	"Women's Strawweight":       0,
	"Strawweight":               1,
	"Women's Flyweight":         2,
	"Flyweight":                 3,
	"Women's Bantamweight":      4,
	"Bantamweight":              5,
	"Women's Featherweight":     6,
	"Featherweight":             7,
	"Women's Lightweight":       8,
	"Lightweight":               9,
	"Women's Welterweight":      10,
	"Welterweight":              11,
	"Women's Middleweight":      12,
	"Middleweight":              13,
	"Women's Light Heavyweight": 14,
	"Light Heavyweight":         15,
	"Women's Heavyweight":       16,
	"Heavyweight":               17,
}

// WeightClasses lists the division names longest first, so that a title
// like "UFC Light Heavyweight Title Bout" matches the most specific class.
func WeightClasses() []string {
	names := make([]string, 0, len(weightClasses))
	for n := range weightClasses {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}

// WeightClassIndex orders divisions from lightest to heaviest; -1 if unknown.
func WeightClassIndex(class string) int {
	if i, ok := weightClasses[class]; ok {
		return i
	}
	return -1
}

// WeightClassChange is +1 moving up, -1 moving down and 0 otherwise.
func WeightClassChange(previous, current string) int {
	p, okP := weightClasses[previous]
	c, okC := weightClasses[current]
	if !okP || !okC {
		return 0
	}
	switch {
	case c > p:
		return 1
	case c < p:
		return -1
	}
	return 0
}

// StanceIndex encodes a fighting stance.
func StanceIndex(stance string) int {
	switch strings.TrimSpace(stance) {
	case "Orthodox":
		return 0
	case "Southpaw":
		return 1
	case "Switch":
		return 2
	}
	return -1
}

// HeightInches parses 5' 11" into 71.
func HeightInches(height string) int {
	feet, inches, ok := strings.Cut(height, "'")
	if !ok {
		return 0
	}
	f, err := strconv.Atoi(strings.TrimSpace(feet))
	if err != nil {
		return 0
	}
	in, _ := strconv.Atoi(strings.TrimSpace(strings.Trim(inches, "\" ")))
	return f*12 + in
}

// ReachInches parses 72" into 72; "--" is 0.
func ReachInches(reach string) int {
	n, err := strconv.Atoi(strings.TrimSpace(strings.ReplaceAll(reach, "\"", "")))
	if err != nil {
		return 0
	}
	return n
}

// AgeAt is the whole-year age on date, or 0 if dob is unknown.
func AgeAt(dob, date time.Time) int {
	if dob.IsZero() || date.IsZero() {
		return 0
	}
	age := date.Year() - dob.Year()
	if date.Month() < dob.Month() || (date.Month() == dob.Month() && date.Day() < dob.Day()) {
		age--
	}
	return age
}

// ClockSeconds parses m:ss; "" and "--" are 0.
func ClockSeconds(clock string) int {
	m, s, ok := strings.Cut(strings.TrimSpace(clock), ":")
	if !ok {
		return 0
	}
	mins, err1 := strconv.Atoi(m)
	secs, err2 := strconv.Atoi(s)
	if err1 != nil || err2 != nil {
		return 0
	}
	return mins*60 + secs
}

// FightSeconds is the elapsed fight time given the final round and clock.
func FightSeconds(round int, clock string) int {
	if round <= 0 {
		return 0
	}
	if strings.TrimSpace(clock) == "5:00" {
		return round * 300
	}
	return (round-1)*300 + ClockSeconds(clock)
}

// IsDecision reports whether a method means the fight went the distance.
func IsDecision(method string) bool {
	switch method {
	case "Decision-Unanimous", "Decision-Split", "Decision-Majority":
		return true
	}
	return false
}

type boutStat struct {
	name   string
	source string
	own    bool
	ratio  bool
}

var strikeZones = []struct{ name, column string }{
	{"head", "head_str"},
	{"body", "body_str"},
	{"leg", "leg_str"},
	{"distance", "dist_str"},
	{"clinc", "clinc_str"},
	{"ground", "ground_str"},
}

func boutStats() []boutStat {
	stats := []boutStat{
		{"strikes_landed", "total_str_hit", true, false},
		{"strikes_defended", "total_str_hit", false, false},
		{"sig_strikes_landed", "sig_str_hit", true, false},
		{"sig_strikes_defended", "sig_str_hit", false, false},
		{"takedowns_landed", "td_hit", true, false},
		{"takedowns_defended", "td_hit", false, false},
		{"submission_attempts", "sub_att", true, false},
		{"passes", "sub_att", false, false},
		{"sig_strike_accuracy", "sig_str_perc", true, true},
		{"sig_strike_defense", "sig_str_perc", false, true},
		{"takedown_accuracy", "td_perc", true, true},
		{"takedown_defense", "td_perc", false, true},
		{"reversals", "rev", true, false},
		{"control_time", "ctrl", true, false},
	}
	for _, z := range strikeZones {
		stats = append(stats,
			boutStat{z.name + "_strikes_landed", z.column + "_hit", true, false},
			boutStat{z.name + "_strikes_defended", z.column + "_hit", false, false},
			boutStat{z.name + "_strikes_accuracy", z.column + "_perc", true, true},
			boutStat{z.name + "_strikes_defense", z.column + "_perc", false, true},
		)
	}
	return stats
}

var ufcBoutStats = boutStats()

// Career window prefixes.
const (
	LastYearPrefix = "last_yr_"
	TotalPrefix    = "total_"
)

// DefaultCareerYears are the trailing-year windows of the deployed models.
var DefaultCareerYears = []int{1, 5}

// UFCOptions tunes UFC feature generation.
type UFCOptions struct {
	// YearWindows are the trailing-year career windows, DefaultCareerYears
	// when empty.
	YearWindows []int
}

// CareerPrefix is the key prefix of a trailing-year career window:
// last_yr_ for one year, last_<n>_yr_ otherwise.
func CareerPrefix(years int) string {
	if years == 1 {
		return LastYearPrefix
	}
	return YearPrefix(years)
}

func careerYears(years []int) []int {
	if len(years) == 0 {
		return DefaultCareerYears
	}
	return years
}

// FighterCareer summarises a fighter's record and per-window fight stats
// from every bout strictly before date, one window per entry of years plus
// the career total. history must be ordered oldest first.
func FighterCareer(history []Bout, name string, date time.Time, years []int) Features {
	f := Features{}
	var winStreak, loseStreak, longestWin, longestLose float64

	type window struct {
		prefix string
		from   time.Time
	}
	var windows []window
	for _, y := range careerYears(years) {
		windows = append(windows, window{CareerPrefix(y), YearsBefore(date, y)})
	}
	windows = append(windows, window{TotalPrefix, time.Time{}})
	counts := make([]float64, len(windows))
	for _, w := range windows {
		f[w.prefix+"fight_count"] = 0
		f[w.prefix+"fight_time"] = 0
		for _, s := range ufcBoutStats {
			f[w.prefix+"fights_"+s.name] = 0
		}
		f[w.prefix+"fights_strike_accuracy"] = 0
		f[w.prefix+"fights_strike_defense"] = 0
	}
	for _, k := range []string{"wins", "losses", "wins_by_ko", "wins_by_sub", "wins_by_dec", "losses_by_ko", "losses_by_sub", "losses_by_dec"} {
		f[k] = 0
	}

	for _, b := range history {
		if !b.Date.Before(date) {
			continue
		}
		own, opp, result := b.Corner(name)

		switch result {
		case "W":
			f["wins"]++
			winStreak++
			loseStreak = 0
		case "L":
			f["losses"]++
			loseStreak++
			winStreak = 0
		}
		longestWin = maxf(longestWin, winStreak)
		longestLose = maxf(longestLose, loseStreak)

		outcome := "wins"
		if result != "W" {
			outcome = "losses"
		}
		switch {
		case b.Method == "KO/TKO":
			f[outcome+"_by_ko"]++
		case b.Method == "Submission":
			f[outcome+"_by_sub"]++
		case IsDecision(b.Method):
			f[outcome+"_by_dec"]++
		}

		seconds := float64(FightSeconds(b.Round, b.Clock))
		for i, w := range windows {
			if !w.from.IsZero() && b.Date.Before(w.from) {
				continue
			}
			counts[i]++
			f[w.prefix+"fight_count"]++
			f[w.prefix+"fight_time"] += seconds
			for _, s := range ufcBoutStats {
				src := opp
				if s.own {
					src = own
				}
				v := src[s.source]
				if s.ratio && v < 0 {
					v = 0
				}
				f[w.prefix+"fights_"+s.name] += v
			}
			f[w.prefix+"fights_strike_accuracy"] += safeRatio(own["total_str_hit"], own["total_str_tot"])
			f[w.prefix+"fights_strike_defense"] += safeRatio(opp["total_str_hit"], opp["total_str_tot"])
		}
	}

	f["win_streak"] = winStreak
	f["lose_streak"] = loseStreak
	f["longest_win_streak"] = longestWin
	f["longest_lose_streak"] = longestLose

	for i, w := range windows {
		divisor := maxf(counts[i], 1)
		for k := range f {
			if !strings.HasPrefix(k, w.prefix) {
				continue
			}
			if strings.Contains(k, "accuracy") || strings.Contains(k, "defense") {
				f[k] /= divisor
			}
		}
	}
	return f
}

var strikeWeights = map[string]float64{
	"head": 0.1, "body": 0.2, "leg": 0.2, "distance": 0.2, "clinc": 0.1, "ground": 0.2,
}

// CondenseStrikes adds weighted per-second striking, striking defence and
// grappling scores for each trailing-year window.
func CondenseStrikes(f Features, years []int) {
	for _, y := range careerYears(years) {
		prefix := CareerPrefix(y)
		seconds := f[prefix+"fight_time"]
		var landed, defended, grapple float64
		if seconds > 0 {
			for zone, w := range strikeWeights {
				landed += f[prefix+"fights_"+zone+"_strikes_landed"] * w / seconds
				defended += f[prefix+"fights_"+zone+"_strikes_defended"] * w / seconds
			}
			grapple = (f[prefix+"fights_takedowns_landed"]*0.4 +
				f[prefix+"fights_submission_attempts"]*0.3 +
				f[prefix+"fights_control_time"]*0.3) / seconds
		}
		f[prefix+"strike_math"] = landed
		f[prefix+"strike_def"] = defended
		f[prefix+"grapple_stats"] = grapple
	}
}

// DedupeBouts keeps the first bout scraped for each pairing and date.
func DedupeBouts(bouts []Bout) []Bout {
	seen := make(map[string]struct{}, len(bouts))
	out := make([]Bout, 0, len(bouts))
	for _, b := range bouts {
		key := MatchKey(b.Fighter1, b.Fighter2, b.Date)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, b)
	}
	return out
}

// IndexBouts groups bouts by fighter, oldest first.
func IndexBouts(bouts []Bout) map[string][]Bout {
	idx := make(map[string][]Bout)
	for _, b := range bouts {
		idx[b.Fighter1] = append(idx[b.Fighter1], b)
		idx[b.Fighter2] = append(idx[b.Fighter2], b)
	}
	for name := range idx {
		hs := idx[name]
		sort.SliceStable(hs, func(i, j int) bool { return hs[i].Date.Before(hs[j].Date) })
	}
	return idx
}

func previousWeightClass(history []Bout, date time.Time) string {
	prev := ""
	for _, b := range history {
		if !b.Date.Before(date) {
			break
		}
		prev = b.WeightClass
	}
	return prev
}

func fighterSide(history []Bout, profile Fighter, b Bout, years []int) Features {
	name := profile.Name
	f := FighterCareer(history, name, b.Date, years)
	f["weight_class"] = float64(WeightClassIndex(b.WeightClass))
	f["weight_class_change"] = float64(WeightClassChange(previousWeightClass(history, b.Date), b.WeightClass))
	f["age"] = float64(AgeAt(profile.DOB, b.Date))
	f["height"] = float64(HeightInches(profile.Height))
	f["reach"] = float64(ReachInches(profile.Reach))
	f["stance"] = float64(StanceIndex(profile.Stance))
	f["height_reach_interaction"] = f["height"] * f["reach"]
	CondenseStrikes(f, years)
	return f
}

// ProcessUFC builds one row per bout between two profiled fighters, with
// the fighters ordered alphabetically as f1 and f2. Draws and no-contests
// are skipped; scheduled bouts are kept unlabelled.
func ProcessUFC(bouts []Bout, fighters map[string]Fighter, opts UFCOptions) []Row {
	years := careerYears(opts.YearWindows)
	bouts = DedupeBouts(bouts)
	idx := IndexBouts(bouts)

	rows := make([]Row, 0, len(bouts))
	for _, b := range bouts {
		upcoming := b.Result1 == ""
		if !upcoming && !b.Played() {
			continue
		}
		p1, ok1 := fighters[b.Fighter1]
		p2, ok2 := fighters[b.Fighter2]
		if !ok1 || !ok2 {
			continue
		}

		s1 := fighterSide(idx[b.Fighter1], p1, b, years)
		s2 := fighterSide(idx[b.Fighter2], p2, b, years)
		addDiffs(s1, s2, years)

		f1, f2 := b.Fighter1, b.Fighter2
		win := b.Result1 == "W"
		if f1 > f2 {
			f1, f2 = f2, f1
			s1, s2 = s2, s1
			win = !win
		}

		row := Row{
			Sport:      sport.UFC,
			Entity:     f1,
			Opponent:   f2,
			Date:       b.Date,
			Played:     !upcoming,
			Result:     win && !upcoming,
			HasHistory: true,
			Features:   Features{}.Merge(s1.Prefixed("f1_"), s2.Prefixed("f2_")),
			Attrs: map[string]string{
				"weight_class": b.WeightClass,
				"method":       b.Method,
			},
		}
		if !upcoming {
			row.setLabel("goes_the_distance", boolFloat(IsDecision(b.Method)))
			row.setLabel("rounds", float64(b.Round))
		}
		rows = append(rows, row)
	}

	addComposites(rows)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.After(rows[j].Date) })
	return rows
}

func addDiffs(a, b Features, years []int) {
	ageA, ageB := a["age"], b["age"]
	a["age_diff"], b["age_diff"] = ageA-ageB, ageB-ageA
	prefixes := []string{TotalPrefix}
	for _, y := range years {
		prefixes = append(prefixes, CareerPrefix(y))
	}
	for _, p := range prefixes {
		ca, cb := a[p+"fight_count"], b[p+"fight_count"]
		a[p+"fight_diff"], b[p+"fight_diff"] = ca-cb, cb-ca
	}
}

// addComposites scores each fighter by the records their previous opponents
// carried into those fights.
func addComposites(rows []Row) {
	type composite struct{ wins, losses, record float64 }

	for i := range rows {
		r := &rows[i]
		for _, side := range []struct {
			name, prefix string
		}{{r.Entity, "f1_"}, {r.Opponent, "f2_"}} {
			var c composite
			for _, other := range rows {
				if !other.Date.Before(r.Date) {
					continue
				}
				var oppPrefix string
				switch side.name {
				case other.Entity:
					oppPrefix = "f2_"
				case other.Opponent:
					oppPrefix = "f1_"
				default:
					continue
				}
				w, l := other.Features[oppPrefix+"wins"], other.Features[oppPrefix+"losses"]
				c.wins += w
				c.losses += l
				if l != 0 {
					c.record += w / l
				} else {
					c.record += w
				}
			}
			ownWins, ownLosses := r.Features[side.prefix+"wins"], r.Features[side.prefix+"losses"]
			if ownLosses != 0 {
				c.losses /= ownLosses
			}
			if ownWins != 0 {
				c.wins /= ownWins
			}
			r.Features[side.prefix+"composite_wins"] = c.wins
			r.Features[side.prefix+"composite_losses"] = c.losses
			r.Features[side.prefix+"composite_record"] = c.record
		}
	}
}

func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
