package reconciliation

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fighterAliases maps sportsbook spellings to the stats site's spelling.
var fighterAliases = map[string]string{
	"JooSang Yoo":        "Joo Sang Yoo",
	"Jiri Prochazka":     "Jiří Procházka",
	"Benoit Saint Denis": "Benoit Saint-Denis",
}

// Normalize folds accents, punctuation and case so that names from
// different sources compare equal.
func Normalize(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case r == '\'' || r == '.':
			// O'Malley, St. Louis
		default:
			space = true
		}
	}
	return b.String()
}

// NameMatcher compares individual athletes' names across sources.
type NameMatcher struct {
	aliases map[string]string
}

// NewNameMatcher creates a matcher with the built-in fighter aliases plus
// any extra ones.
func NewNameMatcher(extra map[string]string) *NameMatcher {
	aliases := make(map[string]string, len(fighterAliases)+len(extra))
	for k, v := range fighterAliases {
		aliases[Normalize(k)] = Normalize(v)
	}
	for k, v := range extra {
		aliases[Normalize(k)] = Normalize(v)
	}
	return &NameMatcher{aliases: aliases}
}

// Canonical returns the normalized, alias-resolved form of a name.
func (m *NameMatcher) Canonical(name string) string {
	n := Normalize(name)
	if a, ok := m.aliases[n]; ok {
		return a
	}
	return n
}

// Equal reports whether two names refer to the same athlete.
func (m *NameMatcher) Equal(a, b string) bool {
	return m.Canonical(a) == m.Canonical(b)
}

// entityMatcher resolves names for one sport: team sports go through the
// registry, individual sports through the name matcher.
type entityMatcher struct {
	teams *Registry
	names *NameMatcher
}

func (m entityMatcher) key(name string) string {
	if m.teams != nil {
		if code, ok := m.teams.CodeFor(name); ok {
			return code
		}
	}
	return m.names.Canonical(name)
}

func (m entityMatcher) same(a, b string) bool {
	return m.key(a) == m.key(b)
}

// pairMatches reports whether {a, b} and {x, y} are the same pairing and
// whether the order is swapped.
func (m entityMatcher) pairMatches(a, b, x, y string) (ok, swapped bool) {
	switch {
	case m.same(a, x) && m.same(b, y):
		return true, false
	case m.same(a, y) && m.same(b, x):
		return true, true
	}
	return false, false
}

// splitEventName splits "A @ B" or "A vs B" into its participants.
func splitEventName(name string) (string, string, bool) {
	for _, sep := range []string{" @ ", " vs ", " vs. ", " v "} {
		if a, b, ok := strings.Cut(name, sep); ok {
			return strings.TrimSpace(a), strings.TrimSpace(b), true
		}
	}
	return "", "", false
}

// tournamentMatches applies the loose comparisons needed between sportsbook
// tournament labels ("ATP - Miami (USA)") and stats-site names.
func tournamentMatches(book, scraped string) bool {
	if book == "" || scraped == "" {
		return false
	}
	if parts := strings.Split(book, " - "); strings.Contains(scraped, parts[len(parts)-1]) {
		return true
	}
	if head, _, _ := strings.Cut(book, " ("); strings.Contains(scraped, head) {
		return true
	}
	if first := strings.Fields(book); len(first) > 0 && strings.Contains(scraped, first[0]) {
		return true
	}
	return strings.Contains(scraped, book) || strings.Contains(book, scraped)
}
