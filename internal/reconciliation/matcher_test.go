package reconciliation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fortuna/augur/internal/sport"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Jiří Procházka", "jiri prochazka"},
		{"Benoit Saint-Denis", "benoit saint denis"},
		{"  Sean O'Malley ", "sean omalley"},
		{"St. Louis Rams", "st louis rams"},
		{"BOS Celtics", "bos celtics"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNameMatcher(t *testing.T) {
	m := NewNameMatcher(map[string]string{"Alex Poatan Pereira": "Alex Pereira"})

	assert.True(t, m.Equal("JooSang Yoo", "Joo Sang Yoo"))
	assert.True(t, m.Equal("Jiri Prochazka", "Jiří Procházka"))
	assert.True(t, m.Equal("Alex Poatan Pereira", "alex pereira"))
	assert.False(t, m.Equal("Alex Pereira", "Alex Volkanovski"))
}

func TestRegistry(t *testing.T) {
	nba := Teams(sport.NBA)
	code, ok := nba.CodeFor("GS Warriors")
	assert.True(t, ok)
	assert.Equal(t, "gsw", code)

	code, ok = nba.CodeFor("NJN")
	assert.True(t, ok)
	assert.Equal(t, "brk", code)

	assert.Equal(t, "Oklahoma City Thunder", nba.Name("sea"))
	assert.Len(t, nba.Teams(), 30)

	nfl := Teams(sport.NFL)
	code, ok = nfl.CodeFor("Oakland Raiders")
	assert.True(t, ok)
	assert.Equal(t, "rai", code)
	assert.Len(t, nfl.Teams(), 32)

	assert.Nil(t, Teams(sport.UFC))
}

func TestTournamentMatches(t *testing.T) {
	assert.True(t, tournamentMatches("ATP - Miami", "Miami Masters"))
	assert.True(t, tournamentMatches("Indian Wells (USA)", "Indian Wells Masters"))
	assert.True(t, tournamentMatches("Roland Garros", "Roland Garros"))
	assert.False(t, tournamentMatches("", "Roland Garros"))
	assert.False(t, tournamentMatches("Wimbledon", "Roland Garros"))
}

func TestSplitEventName(t *testing.T) {
	a, b, ok := splitEventName("BOS Celtics @ LA Lakers")
	assert.True(t, ok)
	assert.Equal(t, "BOS Celtics", a)
	assert.Equal(t, "LA Lakers", b)

	_, _, ok = splitEventName("UFC 300")
	assert.False(t, ok)
}
