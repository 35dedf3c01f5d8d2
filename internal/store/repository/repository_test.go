package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
)

func TestBookOddsTable(t *testing.T) {
	for _, m := range []sport.Market{sport.Moneyline, sport.GoesTheDistance, sport.TotalGames} {
		table, err := BookOddsTable(m)
		require.NoError(t, err)
		assert.Equal(t, string(m)+"_book_odds_data", table)
	}
	_, err := BookOddsTable("props; DROP TABLE events")
	assert.Error(t, err)
}

// testDatabase connects to AUGUR_TEST_DSN, skipping when it is unset.
func testDatabase(t *testing.T) *store.Database {
	t.Helper()
	dsn := os.Getenv("AUGUR_TEST_DSN")
	if dsn == "" {
		t.Skip("AUGUR_TEST_DSN not set")
	}
	ctx := context.Background()
	db, err := store.NewDatabase(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(ctx))
	return db
}

func TestEventLifecycle(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	events := NewEventRepository(db)

	date := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
	e := &store.Event{
		ID:            "bosnyk" + date.Format("2006-01-02"),
		Sport:         "nba",
		EventName:     "Boston Celtics vs New York Knicks",
		EventDate:     date,
		EventDatetime: date.Add(time.Hour),
		Team1:         "bos",
		Team1Name:     "Boston Celtics",
		Team2:         "nyk",
		Team2Name:     "New York Knicks",
		BookOdds1:     -150,
		BookOdds2:     130,
	}
	require.NoError(t, events.UpsertEvent(ctx, e))

	odds := &store.EventOdds{EventID: e.ID, Market: "moneyline", CreatedBy: "test", Odds1: -140, Odds2: 140, Probability: 0.58}
	require.NoError(t, events.UpsertEventOdds(ctx, odds))
	first := odds.ID
	odds.Odds1 = -160
	require.NoError(t, events.UpsertEventOdds(ctx, odds))
	assert.Equal(t, first, odds.ID, "same event, market and creator updates in place")

	n, err := events.SettleEvent(ctx, "nba", "nyk", "bos", date, "nyk")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "either team order settles")

	got, err := events.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, got.Settled())
	assert.False(t, got.Result.Bool, "team1 lost")

	_, err = events.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
