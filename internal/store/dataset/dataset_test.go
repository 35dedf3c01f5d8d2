package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/augur/internal/features"
	"github.com/fortuna/augur/internal/sport"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "augur.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func rows() []features.Row {
	return []features.Row{
		{
			Entity:   "bos",
			Opponent: "nyk",
			Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Home:     true,
			Result:   true,
			Features: features.Features{"last_5_team_points": 112.4},
			Labels:   map[string]float64{"team_spread": -8},
		},
		{
			Entity:   "lal",
			Opponent: "den",
			Date:     time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			Features: features.Features{"last_5_team_points": 108, "last_1_team_points": 99},
		},
	}
}

func TestReplaceAndRows(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, sport.NBA, Training, rows()))
	require.NoError(t, s.Replace(ctx, sport.NBA, Training, rows()[:1]))

	got, err := s.Rows(ctx, sport.NBA, Training)
	require.NoError(t, err)
	require.Len(t, got, 1, "replace drops the previous split")
	assert.Equal(t, "bos", got[0].Entity)
	assert.True(t, got[0].Home)
	assert.True(t, got[0].Result)
	assert.Equal(t, 112.4, got[0].Features["last_5_team_points"])
	assert.Equal(t, 1.0, got[0].Features["location"])
	assert.Equal(t, -8.0, got[0].Labels["team_spread"])

	other, err := s.Rows(ctx, sport.NBA, Upcoming)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestExportCSV(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Replace(ctx, sport.NBA, Training, rows()))

	var buf bytes.Buffer
	n, err := s.ExportCSV(ctx, sport.NBA, Training, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"team", "opponent", "date", "result",
		"last_1_team_points", "last_5_team_points", "location", "team_spread"}, lines[0])
	assert.Equal(t, []string{"lal", "den", "2024-03-02", "0", "99", "108", "0", ""}, lines[1])
	assert.Equal(t, []string{"bos", "nyk", "2024-03-01", "1", "", "112.4", "1", "-8"}, lines[2])
}
