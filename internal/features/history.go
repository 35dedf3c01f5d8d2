package features

import (
	"sort"
	"time"
)

// Game is one entity's view of a completed or scheduled contest.
type Game struct {
	Entity   string
	Opponent string
	Date     time.Time
	Home     bool
	Win      bool
	Played   bool
	Stats    map[string]float64
	Attrs    map[string]string
}

// Stat returns a numeric stat. wins and losses are derived from the result.
func (g Game) Stat(name string) float64 {
	switch name {
	case "wins":
		if g.Played && g.Win {
			return 1
		}
		return 0
	case "losses":
		if g.Played && !g.Win {
			return 1
		}
		return 0
	}
	return g.Stats[name]
}

// Attr returns a string attribute or "".
func (g Game) Attr(name string) string {
	if g.Attrs == nil {
		return ""
	}
	return g.Attrs[name]
}

// History is an entity's games ordered newest first.
type History []Game

// NewHistory copies and orders games newest first.
func NewHistory(games []Game) History {
	h := make(History, len(games))
	copy(h, games)
	sort.SliceStable(h, func(i, j int) bool { return h[i].Date.After(h[j].Date) })
	return h
}

// Before returns the played games strictly before date, newest first.
func (h History) Before(date time.Time) History {
	out := make(History, 0, len(h))
	for _, g := range h {
		if g.Played && g.Date.Before(date) {
			out = append(out, g)
		}
	}
	return out
}

// PlayedBefore reports whether any game before date was played.
func (h History) PlayedBefore(date time.Time) bool {
	for _, g := range h {
		if g.Played && g.Date.Before(date) {
			return true
		}
	}
	return false
}

// Histories indexes histories by entity.
type Histories map[string]History

// GroupHistories builds per-entity histories from a flat game list.
func GroupHistories(games []Game) Histories {
	grouped := make(map[string][]Game)
	for _, g := range games {
		grouped[g.Entity] = append(grouped[g.Entity], g)
	}

	out := make(Histories, len(grouped))
	for entity, gs := range grouped {
		out[entity] = NewHistory(gs)
	}
	return out
}

// Features is a flat named feature vector.
type Features map[string]float64

// Merge copies every entry of others into f and returns f.
func (f Features) Merge(others ...Features) Features {
	for _, o := range others {
		for k, v := range o {
			f[k] = v
		}
	}
	return f
}

// Prefixed returns a copy with every key prefixed.
func (f Features) Prefixed(prefix string) Features {
	out := make(Features, len(f))
	for k, v := range f {
		out[prefix+k] = v
	}
	return out
}
