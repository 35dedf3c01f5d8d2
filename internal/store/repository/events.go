package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
)

// EventRepository handles events, the model prices on them and the
// sportsbook price history.
type EventRepository struct {
	db *store.Database
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *store.Database) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, sport, event_name, event_date, event_datetime, team1, team1_name,
	team2, team2_name, book_odds1, book_odds2, team1_pic_url, team2_pic_url,
	tournament, result, created_at, updated_at`

// UpsertEvent inserts or updates an event. A recorded result is kept.
func (r *EventRepository) UpsertEvent(ctx context.Context, e *store.Event) error {
	query := `
		INSERT INTO events (id, sport, event_name, event_date, event_datetime, team1, team1_name,
			team2, team2_name, book_odds1, book_odds2, team1_pic_url, team2_pic_url, tournament)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			event_name = EXCLUDED.event_name,
			event_datetime = EXCLUDED.event_datetime,
			book_odds1 = EXCLUDED.book_odds1,
			book_odds2 = EXCLUDED.book_odds2,
			team1_pic_url = COALESCE(EXCLUDED.team1_pic_url, events.team1_pic_url),
			team2_pic_url = COALESCE(EXCLUDED.team2_pic_url, events.team2_pic_url),
			tournament = COALESCE(EXCLUDED.tournament, events.tournament),
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.db.DB().QueryRowContext(ctx, query,
		e.ID, e.Sport, e.EventName, e.EventDate, e.EventDatetime, e.Team1, e.Team1Name,
		e.Team2, e.Team2Name, e.BookOdds1, e.BookOdds2, e.Team1PicURL, e.Team2PicURL, e.Tournament,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting event %s: %w", e.ID, err)
	}
	return nil
}

// UpsertEventOdds records a model's price for a market of an event. The row
// is looked up by event, market and creator and updated in place.
func (r *EventRepository) UpsertEventOdds(ctx context.Context, o *store.EventOdds) error {
	var id int64
	err := r.db.DB().QueryRowContext(ctx, `
		SELECT id FROM event_odds
		WHERE event_id = $1 AND market = $2 AND created_by = $3
	`, o.EventID, o.Market, o.CreatedBy).Scan(&id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = r.db.DB().QueryRowContext(ctx, `
			INSERT INTO event_odds (event_id, market, created_by, odds1, odds2, probability,
				line, is_team1_pick, is_team2_pick)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, updated_at
		`, o.EventID, o.Market, o.CreatedBy, o.Odds1, o.Odds2, o.Probability,
			o.Line, o.IsTeam1Pick, o.IsTeam2Pick,
		).Scan(&o.ID, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting event odds: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("querying event odds: %w", err)
	}

	err = r.db.DB().QueryRowContext(ctx, `
		UPDATE event_odds
		SET odds1 = $2, odds2 = $3, probability = $4, line = $5,
			is_team1_pick = $6, is_team2_pick = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, id, o.Odds1, o.Odds2, o.Probability, o.Line, o.IsTeam1Pick, o.IsTeam2Pick,
	).Scan(&o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating event odds: %w", err)
	}
	o.ID = id
	return nil
}

// BookOddsTable is the price history table of a market.
func BookOddsTable(m sport.Market) (string, error) {
	switch m {
	case sport.Moneyline, sport.Spread, sport.Total,
		sport.GoesTheDistance, sport.TotalRounds, sport.TotalGames:
		return string(m) + "_book_odds_data", nil
	}
	return "", fmt.Errorf("no book odds table for market %q", m)
}

// InsertBookOdds appends a sportsbook price snapshot.
func (r *EventRepository) InsertBookOdds(ctx context.Context, b store.BookOdds) error {
	table, err := BookOddsTable(b.Market)
	if err != nil {
		return err
	}
	query := `INSERT INTO ` + table + ` (event_id, line1, line2, odds1, odds2, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.DB().ExecContext(ctx, query,
		b.EventID, b.Line1, b.Line2, b.Odds1, b.Odds2, b.RecordedAt,
	); err != nil {
		return fmt.Errorf("inserting %s book odds: %w", b.Market, err)
	}
	return nil
}

// SettleEvent records the winner of the event between two teams on a date,
// whichever order the event stored them in.
func (r *EventRepository) SettleEvent(ctx context.Context, sport, team1, team2 string, date time.Time, winner string) (int64, error) {
	query := `
		UPDATE events
		SET result = (team1 = $5), updated_at = NOW()
		WHERE sport = $1 AND event_date = $4
			AND ((team1 = $2 AND team2 = $3) OR (team1 = $3 AND team2 = $2))
	`
	res, err := r.db.DB().ExecContext(ctx, query, sport, team1, team2, date.Format("2006-01-02"), winner)
	if err != nil {
		return 0, fmt.Errorf("settling event: %w", err)
	}
	return res.RowsAffected()
}

// Get finds an event by id
func (r *EventRepository) Get(ctx context.Context, id string) (*store.Event, error) {
	row := r.db.DB().QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying event: %w", err)
	}
	return e, nil
}

// RecentUnsettled returns events of the last days days without a result.
func (r *EventRepository) RecentUnsettled(ctx context.Context, sport string, days int) ([]*store.Event, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	return r.query(ctx, `SELECT `+eventColumns+`
		FROM events
		WHERE sport = $1 AND result IS NULL AND event_date >= $2 AND event_datetime < NOW()
		ORDER BY event_date
	`, sport, since.Format("2006-01-02"))
}

// Upcoming returns events starting at or after from.
func (r *EventRepository) Upcoming(ctx context.Context, sport string, from time.Time) ([]*store.Event, error) {
	return r.query(ctx, `SELECT `+eventColumns+`
		FROM events
		WHERE sport = $1 AND event_datetime >= $2
		ORDER BY event_datetime
	`, sport, from)
}

// ByDate returns the events of a sport on a calendar date.
func (r *EventRepository) ByDate(ctx context.Context, sport string, date time.Time) ([]*store.Event, error) {
	return r.query(ctx, `SELECT `+eventColumns+`
		FROM events
		WHERE sport = $1 AND event_date = $2
		ORDER BY event_datetime
	`, sport, date.Format("2006-01-02"))
}

// PredictionsFor returns the model prices recorded for an event.
func (r *EventRepository) PredictionsFor(ctx context.Context, eventID string) ([]store.EventOdds, error) {
	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT id, event_id, market, created_by, odds1, odds2, probability, line,
			is_team1_pick, is_team2_pick, updated_at
		FROM event_odds
		WHERE event_id = $1
		ORDER BY market, created_by
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("querying event odds: %w", err)
	}
	defer rows.Close()

	var odds []store.EventOdds
	for rows.Next() {
		var o store.EventOdds
		if err := rows.Scan(
			&o.ID, &o.EventID, &o.Market, &o.CreatedBy, &o.Odds1, &o.Odds2, &o.Probability, &o.Line,
			&o.IsTeam1Pick, &o.IsTeam2Pick, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning event odds: %w", err)
		}
		odds = append(odds, o)
	}
	return odds, rows.Err()
}

// UpcomingPredictions returns upcoming events with their model prices.
func (r *EventRepository) UpcomingPredictions(ctx context.Context, sport string, from time.Time) ([]store.Prediction, error) {
	events, err := r.Upcoming(ctx, sport, from)
	if err != nil {
		return nil, err
	}
	predictions := make([]store.Prediction, 0, len(events))
	for _, e := range events {
		odds, err := r.PredictionsFor(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, store.Prediction{Event: *e, Odds: odds})
	}
	return predictions, nil
}

func (r *EventRepository) query(ctx context.Context, query string, args ...interface{}) ([]*store.Event, error) {
	rows, err := r.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []*store.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanEvent(scanner interface {
	Scan(dest ...interface{}) error
}) (*store.Event, error) {
	e := &store.Event{}
	err := scanner.Scan(
		&e.ID, &e.Sport, &e.EventName, &e.EventDate, &e.EventDatetime, &e.Team1, &e.Team1Name,
		&e.Team2, &e.Team2Name, &e.BookOdds1, &e.BookOdds2, &e.Team1PicURL, &e.Team2PicURL,
		&e.Tournament, &e.Result, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}
