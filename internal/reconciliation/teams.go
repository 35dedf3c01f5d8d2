package reconciliation

import (
	"strings"

	"github.com/fortuna/augur/internal/sport"
)

// Team is a franchise as known to the stats site and the sportsbook.
type Team struct {
	Code    string
	Name    string
	DKName  string
	Aliases []string
}

// Registry resolves team names from any source to a stats-site code.
type Registry struct {
	sport  sport.Sport
	byCode map[string]Team
	byName map[string]string
	legacy map[string]string
}

func newRegistry(s sport.Sport, teams []Team, legacy map[string]string) *Registry {
	r := &Registry{
		sport:  s,
		byCode: make(map[string]Team, len(teams)),
		byName: make(map[string]string, len(teams)*4),
		legacy: legacy,
	}
	for _, t := range teams {
		r.byCode[t.Code] = t
		for _, n := range append([]string{t.Code, t.Name, t.DKName}, t.Aliases...) {
			r.byName[Normalize(n)] = t.Code
		}
	}
	return r
}

// Canonical maps relocated franchise codes to the current code.
func (r *Registry) Canonical(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if c, ok := r.legacy[code]; ok {
		return c
	}
	return code
}

// Lookup returns the team for a code, following relocations.
func (r *Registry) Lookup(code string) (Team, bool) {
	t, ok := r.byCode[r.Canonical(code)]
	return t, ok
}

// CodeFor resolves a code, full name, nickname or sportsbook name.
func (r *Registry) CodeFor(name string) (string, bool) {
	if code, ok := r.byName[Normalize(name)]; ok {
		return r.Canonical(code), true
	}
	if _, ok := r.byCode[r.Canonical(name)]; ok {
		return r.Canonical(name), true
	}
	return "", false
}

// Name returns the display name for a code, or the code itself.
func (r *Registry) Name(code string) string {
	if t, ok := r.Lookup(code); ok {
		return t.Name
	}
	return code
}

// Teams returns every registered team.
func (r *Registry) Teams() []Team {
	out := make([]Team, 0, len(r.byCode))
	for _, t := range r.byCode {
		out = append(out, t)
	}
	return out
}

var nbaRegistry = newRegistry(sport.NBA, []Team{
	{"atl", "Atlanta Hawks", "ATL Hawks", []string{"Hawks"}},
	{"bos", "Boston Celtics", "BOS Celtics", []string{"Celtics"}},
	{"brk", "Brooklyn Nets", "BKN Nets", []string{"New Jersey Nets", "Nets", "BKN"}},
	{"cho", "Charlotte Hornets", "CHA Hornets", []string{"Charlotte Bobcats", "Hornets"}},
	{"chi", "Chicago Bulls", "CHI Bulls", []string{"Bulls"}},
	{"cle", "Cleveland Cavaliers", "CLE Cavaliers", []string{"Cavaliers"}},
	{"dal", "Dallas Mavericks", "DAL Mavericks", []string{"Mavericks"}},
	{"den", "Denver Nuggets", "DEN Nuggets", []string{"Nuggets"}},
	{"det", "Detroit Pistons", "DET Pistons", []string{"Pistons"}},
	{"gsw", "Golden State Warriors", "GS Warriors", []string{"Warriors"}},
	{"hou", "Houston Rockets", "HOU Rockets", []string{"Rockets"}},
	{"ind", "Indiana Pacers", "IND Pacers", []string{"Pacers"}},
	{"lac", "Los Angeles Clippers", "LA Clippers", []string{"Clippers"}},
	{"lal", "Los Angeles Lakers", "LA Lakers", []string{"Lakers"}},
	{"mem", "Memphis Grizzlies", "MEM Grizzlies", []string{"Vancouver Grizzlies", "Grizzlies"}},
	{"mia", "Miami Heat", "MIA Heat", []string{"Heat"}},
	{"mil", "Milwaukee Bucks", "MIL Bucks", []string{"Bucks"}},
	{"min", "Minnesota Timberwolves", "MIN Timberwolves", []string{"Timberwolves"}},
	{"nop", "New Orleans Pelicans", "NO Pelicans", []string{"New Orleans Hornets", "Pelicans"}},
	{"nyk", "New York Knicks", "NY Knicks", []string{"Knicks"}},
	{"okc", "Oklahoma City Thunder", "OKC Thunder", []string{"Seattle SuperSonics", "Thunder"}},
	{"orl", "Orlando Magic", "ORL Magic", []string{"Magic"}},
	{"phi", "Philadelphia 76ers", "PHI 76ers", []string{"76ers"}},
	{"pho", "Phoenix Suns", "PHO Suns", []string{"Suns", "PHX Suns"}},
	{"por", "Portland Trail Blazers", "POR Trail Blazers", []string{"Trail Blazers"}},
	{"sac", "Sacramento Kings", "SAC Kings", []string{"Kings"}},
	{"sas", "San Antonio Spurs", "SA Spurs", []string{"Spurs"}},
	{"tor", "Toronto Raptors", "TOR Raptors", []string{"Raptors"}},
	{"uta", "Utah Jazz", "UTA Jazz", []string{"Jazz"}},
	{"was", "Washington Wizards", "WAS Wizards", []string{"Wizards"}},
}, map[string]string{
	"njn": "brk",
	"cha": "cho",
	"sea": "okc",
	"van": "mem",
	"noh": "nop",
	"nok": "nop",
})

var nflRegistry = newRegistry(sport.NFL, []Team{
	{"crd", "Arizona Cardinals", "ARI Cardinals", []string{"Cardinals"}},
	{"atl", "Atlanta Falcons", "ATL Falcons", []string{"Falcons"}},
	{"rav", "Baltimore Ravens", "BAL Ravens", []string{"Ravens"}},
	{"buf", "Buffalo Bills", "BUF Bills", []string{"Bills"}},
	{"car", "Carolina Panthers", "CAR Panthers", []string{"Panthers"}},
	{"chi", "Chicago Bears", "CHI Bears", []string{"Bears"}},
	{"cin", "Cincinnati Bengals", "CIN Bengals", []string{"Bengals"}},
	{"cle", "Cleveland Browns", "CLE Browns", []string{"Browns"}},
	{"dal", "Dallas Cowboys", "DAL Cowboys", []string{"Cowboys"}},
	{"den", "Denver Broncos", "DEN Broncos", []string{"Broncos"}},
	{"det", "Detroit Lions", "DET Lions", []string{"Lions"}},
	{"gnb", "Green Bay Packers", "GB Packers", []string{"Packers"}},
	{"htx", "Houston Texans", "HOU Texans", []string{"Texans"}},
	{"clt", "Indianapolis Colts", "IND Colts", []string{"Colts"}},
	{"jax", "Jacksonville Jaguars", "JAX Jaguars", []string{"Jaguars"}},
	{"kan", "Kansas City Chiefs", "KC Chiefs", []string{"Chiefs"}},
	{"rai", "Las Vegas Raiders", "LV Raiders", []string{"Oakland Raiders", "Raiders"}},
	{"sdg", "Los Angeles Chargers", "LA Chargers", []string{"San Diego Chargers", "Chargers"}},
	{"ram", "Los Angeles Rams", "LA Rams", []string{"St. Louis Rams", "Rams"}},
	{"mia", "Miami Dolphins", "MIA Dolphins", []string{"Dolphins"}},
	{"min", "Minnesota Vikings", "MIN Vikings", []string{"Vikings"}},
	{"nwe", "New England Patriots", "NE Patriots", []string{"Patriots"}},
	{"nor", "New Orleans Saints", "NO Saints", []string{"Saints"}},
	{"nyg", "New York Giants", "NY Giants", []string{"Giants"}},
	{"nyj", "New York Jets", "NY Jets", []string{"Jets"}},
	{"phi", "Philadelphia Eagles", "PHI Eagles", []string{"Eagles"}},
	{"pit", "Pittsburgh Steelers", "PIT Steelers", []string{"Steelers"}},
	{"sea", "Seattle Seahawks", "SEA Seahawks", []string{"Seahawks"}},
	{"sfo", "San Francisco 49ers", "SF 49ers", []string{"49ers"}},
	{"tam", "Tampa Bay Buccaneers", "TB Buccaneers", []string{"Buccaneers"}},
	{"oti", "Tennessee Titans", "TEN Titans", []string{"Tennessee Oilers", "Houston Oilers", "Titans"}},
	{"was", "Washington Commanders", "WAS Commanders", []string{"Washington Football Team", "Washington Redskins", "Commanders"}},
}, nil)

// Teams returns the registry for a team sport, or nil.
func Teams(s sport.Sport) *Registry {
	switch s {
	case sport.NBA:
		return nbaRegistry
	case sport.NFL:
		return nflRegistry
	}
	return nil
}
