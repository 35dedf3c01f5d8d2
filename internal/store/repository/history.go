package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fortuna/augur/internal/store"
)

// HistoryRepository handles game_history access: team games and tennis
// matches seen from one entity.
type HistoryRepository struct {
	db *store.Database
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *store.Database) *HistoryRepository {
	return &HistoryRepository{db: db}
}

const historyColumns = `id, sport, entity, opponent, game_date, home, win, played,
	stats, attrs, source, scraped_at`

// UpsertGames stores scraped games in one transaction. A game already
// stored for the same entity, opponent and date is replaced by the newer
// scrape.
func (r *HistoryRepository) UpsertGames(ctx context.Context, games []store.HistoryGame) (int, error) {
	if len(games) == 0 {
		return 0, nil
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning history upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO game_history (sport, entity, opponent, game_date, home, win, played,
			stats, attrs, source, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (sport, entity, opponent, game_date) DO UPDATE SET
			home = EXCLUDED.home,
			win = EXCLUDED.win,
			played = EXCLUDED.played,
			stats = EXCLUDED.stats,
			attrs = EXCLUDED.attrs,
			source = EXCLUDED.source,
			scraped_at = NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing history upsert: %w", err)
	}
	defer stmt.Close()

	for _, g := range games {
		if _, err := stmt.ExecContext(ctx,
			g.Sport, g.Entity, g.Opponent, g.GameDate, g.Home, g.Win, g.Played,
			g.Stats, g.Attrs, g.Source,
		); err != nil {
			return 0, fmt.Errorf("upserting game %s vs %s: %w", g.Entity, g.Opponent, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing history upsert: %w", err)
	}
	return len(games), nil
}

// History returns an entity's games, newest first.
func (r *HistoryRepository) History(ctx context.Context, sport, entity string) ([]store.HistoryGame, error) {
	query := `SELECT ` + historyColumns + `
		FROM game_history
		WHERE sport = $1 AND entity = $2
		ORDER BY game_date DESC
	`
	rows, err := r.db.DB().QueryContext(ctx, query, sport, entity)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// Since returns every game of a sport on or after a date, oldest first.
func (r *HistoryRepository) Since(ctx context.Context, sport string, since time.Time) ([]store.HistoryGame, error) {
	query := `SELECT ` + historyColumns + `
		FROM game_history
		WHERE sport = $1 AND game_date >= $2
		ORDER BY game_date, entity
	`
	rows, err := r.db.DB().QueryContext(ctx, query, sport, since)
	if err != nil {
		return nil, fmt.Errorf("querying games since %s: %w", since.Format("2006-01-02"), err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// Entities lists the distinct entities stored for a sport.
func (r *HistoryRepository) Entities(ctx context.Context, sport string) ([]string, error) {
	rows, err := r.db.DB().QueryContext(ctx,
		`SELECT DISTINCT entity FROM game_history WHERE sport = $1 ORDER BY entity`, sport)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// RecentForm returns an entity's last n played games with their record
// and averaged stats.
func (r *HistoryRepository) RecentForm(ctx context.Context, sport, entity string, n int) (*store.Form, error) {
	query := `SELECT ` + historyColumns + `
		FROM game_history
		WHERE sport = $1 AND entity = $2 AND played
		ORDER BY game_date DESC
		LIMIT $3
	`
	rows, err := r.db.DB().QueryContext(ctx, query, sport, entity, n)
	if err != nil {
		return nil, fmt.Errorf("querying form: %w", err)
	}
	defer rows.Close()

	games, err := scanHistory(rows)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, fmt.Errorf("form of %s %s: %w", sport, entity, store.ErrNotFound)
	}
	return store.NewForm(sport, entity, games), nil
}

// Result finds the played game between two entities on a date (or the day
// after, for late starts) and reports whether entity won.
func (r *HistoryRepository) Result(ctx context.Context, sport, entity, opponent string, date time.Time) (bool, error) {
	query := `
		SELECT win FROM game_history
		WHERE sport = $1 AND entity = $2 AND opponent = $3 AND played
			AND game_date >= $4 AND game_date <= $5
		ORDER BY game_date
		LIMIT 1
	`
	day := date.Truncate(24 * time.Hour)
	var win bool
	err := r.db.DB().QueryRowContext(ctx, query, sport, entity, opponent, day, day.AddDate(0, 0, 1)).Scan(&win)
	if errors.Is(err, sql.ErrNoRows) {
		return false, store.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("querying result: %w", err)
	}
	return win, nil
}

func scanHistory(rows *sql.Rows) ([]store.HistoryGame, error) {
	var games []store.HistoryGame
	for rows.Next() {
		var g store.HistoryGame
		if err := rows.Scan(
			&g.ID, &g.Sport, &g.Entity, &g.Opponent, &g.GameDate, &g.Home, &g.Win, &g.Played,
			&g.Stats, &g.Attrs, &g.Source, &g.ScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}
