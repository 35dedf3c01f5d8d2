package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fortuna/augur/internal/store"
)

// OddsRepository handles scraped sportsbook quotes
type OddsRepository struct {
	db *store.Database
}

// NewOddsRepository creates a new odds repository
func NewOddsRepository(db *store.Database) *OddsRepository {
	return &OddsRepository{db: db}
}

// UpsertQuotes stores a scrape. Quotes are snapshots: a market scraped
// twice at the same instant keeps the last copy.
func (r *OddsRepository) UpsertQuotes(ctx context.Context, quotes []store.OddsQuote) (int, error) {
	if len(quotes) == 0 {
		return 0, nil
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning quote upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO odds_quotes (sport, book_event_id, event_name, tournament, start_date,
			market_id, market, market_name, participant, player1, player2,
			player1_odds, player2_odds, player1_points, player2_points, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (sport, market_id, scraped_at) DO UPDATE SET
			player1_odds = EXCLUDED.player1_odds,
			player2_odds = EXCLUDED.player2_odds,
			player1_points = EXCLUDED.player1_points,
			player2_points = EXCLUDED.player2_points
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing quote upsert: %w", err)
	}
	defer stmt.Close()

	for _, q := range quotes {
		if _, err := stmt.ExecContext(ctx,
			q.Sport, q.BookEventID, q.EventName, q.Tournament, q.StartDate,
			q.MarketID, q.Market, q.MarketName, q.Participant, q.Player1, q.Player2,
			q.Player1Odds, q.Player2Odds, q.Player1Points, q.Player2Points, q.ScrapedAt,
		); err != nil {
			return 0, fmt.Errorf("upserting quote %s: %w", q.MarketID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing quote upsert: %w", err)
	}
	return len(quotes), nil
}

// QuotesBetween returns quotes for events starting in [from, to), newest
// scrape first.
func (r *OddsRepository) QuotesBetween(ctx context.Context, sport string, from, to time.Time) ([]store.OddsQuote, error) {
	query := `
		SELECT id, sport, book_event_id, event_name, tournament, start_date,
			market_id, market, market_name, participant, player1, player2,
			player1_odds, player2_odds, player1_points, player2_points, scraped_at
		FROM odds_quotes
		WHERE sport = $1 AND start_date >= $2 AND start_date < $3
		ORDER BY scraped_at DESC
	`
	rows, err := r.db.DB().QueryContext(ctx, query, sport, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying quotes: %w", err)
	}
	defer rows.Close()

	var quotes []store.OddsQuote
	for rows.Next() {
		var q store.OddsQuote
		if err := rows.Scan(
			&q.ID, &q.Sport, &q.BookEventID, &q.EventName, &q.Tournament, &q.StartDate,
			&q.MarketID, &q.Market, &q.MarketName, &q.Participant, &q.Player1, &q.Player2,
			&q.Player1Odds, &q.Player2Odds, &q.Player1Points, &q.Player2Points, &q.ScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}
