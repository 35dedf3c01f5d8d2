package store

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fortuna/augur/internal/features"
	"github.com/fortuna/augur/internal/sport"
)

// StatMap is a JSONB column of numeric stats.
type StatMap map[string]float64

// Value implements driver.Valuer.
func (m StatMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]float64(m))
}

// Scan implements sql.Scanner.
func (m *StatMap) Scan(src interface{}) error {
	return scanJSON(src, m)
}

// AttrMap is a JSONB column of string attributes.
type AttrMap map[string]string

// Value implements driver.Valuer.
func (m AttrMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(m))
}

// Scan implements sql.Scanner.
func (m *AttrMap) Scan(src interface{}) error {
	return scanJSON(src, m)
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	}
	return fmt.Errorf("unsupported JSONB source %T", src)
}

// HistoryGame is one entity's view of a contest (team game or tennis match).
type HistoryGame struct {
	ID        int64     `json:"id" db:"id"`
	Sport     string    `json:"sport" db:"sport"`
	Entity    string    `json:"entity" db:"entity"`
	Opponent  string    `json:"opponent" db:"opponent"`
	GameDate  time.Time `json:"game_date" db:"game_date"`
	Home      bool      `json:"home" db:"home"`
	Win       bool      `json:"win" db:"win"`
	Played    bool      `json:"played" db:"played"`
	Stats     StatMap   `json:"stats" db:"stats"`
	Attrs     AttrMap   `json:"attrs" db:"attrs"`
	Source    string    `json:"source" db:"source"`
	ScrapedAt time.Time `json:"scraped_at" db:"scraped_at"`
}

// Game converts the stored row into a feature input.
func (g HistoryGame) Game() features.Game {
	return features.Game{
		Entity:   g.Entity,
		Opponent: g.Opponent,
		Date:     g.GameDate,
		Home:     g.Home,
		Win:      g.Win,
		Played:   g.Played,
		Stats:    g.Stats,
		Attrs:    g.Attrs,
	}
}

// NewHistoryGame builds a storable row from a scraped game.
func NewHistoryGame(s sport.Sport, g features.Game, source string) HistoryGame {
	return HistoryGame{
		Sport:    string(s),
		Entity:   g.Entity,
		Opponent: g.Opponent,
		GameDate: g.Date,
		Home:     g.Home,
		Win:      g.Win,
		Played:   g.Played,
		Stats:    g.Stats,
		Attrs:    g.Attrs,
		Source:   source,
	}
}

// Fight is a stored UFC bout with both corners' totals.
type Fight struct {
	ID          int64     `json:"id" db:"id"`
	URL         string    `json:"url" db:"url"`
	FightDate   time.Time `json:"fight_date" db:"fight_date"`
	Fighter1    string    `json:"fighter1" db:"fighter1"`
	Fighter2    string    `json:"fighter2" db:"fighter2"`
	Result1     string    `json:"result1" db:"result1"`
	Result2     string    `json:"result2" db:"result2"`
	WeightClass string    `json:"weight_class" db:"weight_class"`
	TitleFight  bool      `json:"title_fight" db:"title_fight"`
	Method      string    `json:"method" db:"method"`
	Round       int       `json:"round" db:"round"`
	Clock       string    `json:"clock" db:"clock"`
	TimeFormat  string    `json:"time_format" db:"time_format"`
	Referee     string    `json:"referee" db:"referee"`
	Stats1      StatMap   `json:"stats1" db:"stats1"`
	Stats2      StatMap   `json:"stats2" db:"stats2"`
	ScrapedAt   time.Time `json:"scraped_at" db:"scraped_at"`
}

// Bout converts the stored fight into a feature input.
func (f Fight) Bout() features.Bout {
	return features.Bout{
		Date:        f.FightDate,
		Fighter1:    f.Fighter1,
		Fighter2:    f.Fighter2,
		Result1:     f.Result1,
		Result2:     f.Result2,
		WeightClass: f.WeightClass,
		TitleFight:  f.TitleFight,
		Method:      f.Method,
		Round:       f.Round,
		Clock:       f.Clock,
		TimeFormat:  f.TimeFormat,
		Referee:     f.Referee,
		Stats1:      f.Stats1,
		Stats2:      f.Stats2,
	}
}

// NewFight builds a storable fight from a scraped bout.
func NewFight(url string, b features.Bout) Fight {
	return Fight{
		URL:         url,
		FightDate:   b.Date,
		Fighter1:    b.Fighter1,
		Fighter2:    b.Fighter2,
		Result1:     b.Result1,
		Result2:     b.Result2,
		WeightClass: b.WeightClass,
		TitleFight:  b.TitleFight,
		Method:      b.Method,
		Round:       b.Round,
		Clock:       b.Clock,
		TimeFormat:  b.TimeFormat,
		Referee:     b.Referee,
		Stats1:      b.Stats1,
		Stats2:      b.Stats2,
	}
}

// Profile is a fighter or player profile.
type Profile struct {
	ID        int64          `json:"id" db:"id"`
	Sport     string         `json:"sport" db:"sport"`
	Name      string         `json:"name" db:"name"`
	Nickname  sql.NullString `json:"nickname,omitempty" db:"nickname"`
	Record    sql.NullString `json:"record,omitempty" db:"record"`
	DOB       sql.NullTime   `json:"dob,omitempty" db:"dob"`
	Height    sql.NullString `json:"height,omitempty" db:"height"`
	Weight    sql.NullString `json:"weight,omitempty" db:"weight"`
	Reach     sql.NullString `json:"reach,omitempty" db:"reach"`
	Stance    sql.NullString `json:"stance,omitempty" db:"stance"`
	Hand      sql.NullString `json:"hand,omitempty" db:"hand"`
	Backhand  sql.NullString `json:"backhand,omitempty" db:"backhand"`
	Country   sql.NullString `json:"country,omitempty" db:"country"`
	URL       sql.NullString `json:"url,omitempty" db:"url"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// Fighter converts a UFC profile.
func (p Profile) Fighter() features.Fighter {
	return features.Fighter{
		Name:     p.Name,
		Nickname: p.Nickname.String,
		Record:   p.Record.String,
		DOB:      p.DOB.Time,
		Height:   p.Height.String,
		Weight:   p.Weight.String,
		Reach:    p.Reach.String,
		Stance:   p.Stance.String,
	}
}

// Player converts an ATP profile. Height is stored in centimetres.
func (p Profile) Player() features.Player {
	var height int
	fmt.Sscanf(p.Height.String, "%d", &height)
	return features.Player{
		Name:     p.Name,
		DOB:      p.DOB.Time,
		Height:   height,
		Hand:     p.Hand.String,
		Backhand: p.Backhand.String,
		Country:  p.Country.String,
	}
}

// OddsQuote is one two-outcome sportsbook market snapshot. Odds are american.
// Participant names the player a prop market is about.
type OddsQuote struct {
	ID            int64           `json:"id" db:"id"`
	Sport         string          `json:"sport" db:"sport"`
	BookEventID   string          `json:"book_event_id" db:"book_event_id"`
	EventName     string          `json:"event_name" db:"event_name"`
	Tournament    sql.NullString  `json:"tournament,omitempty" db:"tournament"`
	StartDate     time.Time       `json:"start_date" db:"start_date"`
	MarketID      string          `json:"market_id" db:"market_id"`
	Market        string          `json:"market" db:"market"`
	MarketName    string          `json:"market_name" db:"market_name"`
	Participant   sql.NullString  `json:"participant,omitempty" db:"participant"`
	Player1       string          `json:"player1" db:"player1"`
	Player2       string          `json:"player2" db:"player2"`
	Player1Odds   int             `json:"player1_odds" db:"player1_odds"`
	Player2Odds   int             `json:"player2_odds" db:"player2_odds"`
	Player1Points sql.NullFloat64 `json:"player1_points,omitempty" db:"player1_points"`
	Player2Points sql.NullFloat64 `json:"player2_points,omitempty" db:"player2_points"`
	ScrapedAt     time.Time       `json:"scraped_at" db:"scraped_at"`
}

// Event is an upcoming or settled contest shown to users.
type Event struct {
	ID            string         `json:"id" db:"id"`
	Sport         string         `json:"sport" db:"sport"`
	EventName     string         `json:"event_name" db:"event_name"`
	EventDate     time.Time      `json:"event_date" db:"event_date"`
	EventDatetime time.Time      `json:"event_datetime" db:"event_datetime"`
	Team1         string         `json:"team1" db:"team1"`
	Team1Name     string         `json:"team1_name" db:"team1_name"`
	Team2         string         `json:"team2" db:"team2"`
	Team2Name     string         `json:"team2_name" db:"team2_name"`
	BookOdds1     int            `json:"book_odds1" db:"book_odds1"`
	BookOdds2     int            `json:"book_odds2" db:"book_odds2"`
	Team1PicURL   sql.NullString `json:"team1_pic_url,omitempty" db:"team1_pic_url"`
	Team2PicURL   sql.NullString `json:"team2_pic_url,omitempty" db:"team2_pic_url"`
	Tournament    sql.NullString `json:"tournament,omitempty" db:"tournament"`
	Result        sql.NullBool   `json:"result,omitempty" db:"result"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// Settled reports whether a result has been recorded.
func (e Event) Settled() bool {
	return e.Result.Valid
}

// EventOdds is one model's prediction for a market of an event.
type EventOdds struct {
	ID          int64           `json:"id" db:"id"`
	EventID     string          `json:"event_id" db:"event_id"`
	Market      string          `json:"market" db:"market"`
	CreatedBy   string          `json:"created_by" db:"created_by"`
	Odds1       int             `json:"odds1" db:"odds1"`
	Odds2       int             `json:"odds2" db:"odds2"`
	Probability float64         `json:"probability" db:"probability"`
	Line        sql.NullFloat64 `json:"line,omitempty" db:"line"`
	IsTeam1Pick bool            `json:"is_team1_pick" db:"is_team1_pick"`
	IsTeam2Pick bool            `json:"is_team2_pick" db:"is_team2_pick"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// BookOdds is a sportsbook price snapshot attached to an event.
type BookOdds struct {
	EventID    string          `json:"event_id" db:"event_id"`
	Market     sport.Market    `json:"market" db:"market"`
	Line1      sql.NullFloat64 `json:"line1,omitempty" db:"line1"`
	Line2      sql.NullFloat64 `json:"line2,omitempty" db:"line2"`
	Odds1      int             `json:"odds1" db:"odds1"`
	Odds2      int             `json:"odds2" db:"odds2"`
	RecordedAt time.Time       `json:"recorded_at" db:"recorded_at"`
}

// Form is an entity's recent record for the API.
type Form struct {
	Sport    string        `json:"sport"`
	Entity   string        `json:"entity"`
	Games    []HistoryGame `json:"games"`
	Wins     int           `json:"wins"`
	Losses   int           `json:"losses"`
	AvgStats StatMap       `json:"avg_stats"`
}

// NewForm summarizes games (newest first) into a record and stat averages.
func NewForm(sport, entity string, games []HistoryGame) *Form {
	f := &Form{Sport: sport, Entity: entity, Games: games, AvgStats: StatMap{}}
	for _, g := range games {
		if g.Win {
			f.Wins++
		} else {
			f.Losses++
		}
		for k, v := range g.Stats {
			f.AvgStats[k] += v
		}
	}
	if n := float64(len(games)); n > 0 {
		for k := range f.AvgStats {
			f.AvgStats[k] /= n
		}
	}
	return f
}

// Prediction is an event with the model prices recorded for it.
type Prediction struct {
	Event Event       `json:"event"`
	Odds  []EventOdds `json:"odds"`
}

// NewFighterProfile builds a storable UFC profile.
func NewFighterProfile(f features.Fighter, url string) Profile {
	p := Profile{
		Sport:    string(sport.UFC),
		Name:     f.Name,
		Nickname: nullString(f.Nickname),
		Record:   nullString(f.Record),
		Height:   nullString(f.Height),
		Weight:   nullString(f.Weight),
		Reach:    nullString(f.Reach),
		Stance:   nullString(f.Stance),
		URL:      nullString(url),
	}
	if !f.DOB.IsZero() {
		p.DOB = sql.NullTime{Time: f.DOB, Valid: true}
	}
	return p
}

// NewPlayerProfile builds a storable ATP profile.
func NewPlayerProfile(pl features.Player) Profile {
	p := Profile{
		Sport:    string(sport.ATP),
		Name:     pl.Name,
		Hand:     nullString(pl.Hand),
		Backhand: nullString(pl.Backhand),
		Country:  nullString(pl.Country),
	}
	if pl.Height > 0 {
		p.Height = sql.NullString{String: fmt.Sprint(pl.Height), Valid: true}
	}
	if !pl.DOB.IsZero() {
		p.DOB = sql.NullTime{Time: pl.DOB, Valid: true}
	}
	return p
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
