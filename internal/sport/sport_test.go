package sport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Sport
		wantErr bool
	}{
		{"nba", NBA, false},
		{" NFL ", NFL, false},
		{"Ufc", UFC, false},
		{"atp", ATP, false},
		{"wnba", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarkets(t *testing.T) {
	assert.Equal(t, []Market{Moneyline, Spread, Total}, NBA.Markets())
	assert.Contains(t, UFC.Markets(), GoesTheDistance)
	assert.Contains(t, ATP.Markets(), TotalGames)
	assert.True(t, NFL.IsTeamSport())
	assert.False(t, ATP.IsTeamSport())
}
