package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fortuna/augur/internal/store"
)

// FightRepository handles ufc_fights access
type FightRepository struct {
	db *store.Database
}

// NewFightRepository creates a new fight repository
func NewFightRepository(db *store.Database) *FightRepository {
	return &FightRepository{db: db}
}

const fightColumns = `id, url, fight_date, fighter1, fighter2, result1, result2,
	weight_class, title_fight, method, round, clock, time_format, referee,
	stats1, stats2, scraped_at`

// UpsertFights stores fights keyed by their detail page URL.
func (r *FightRepository) UpsertFights(ctx context.Context, fights []store.Fight) (int, error) {
	if len(fights) == 0 {
		return 0, nil
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning fight upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ufc_fights (url, fight_date, fighter1, fighter2, result1, result2,
			weight_class, title_fight, method, round, clock, time_format, referee,
			stats1, stats2, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		ON CONFLICT (url) DO UPDATE SET
			result1 = EXCLUDED.result1,
			result2 = EXCLUDED.result2,
			method = EXCLUDED.method,
			round = EXCLUDED.round,
			clock = EXCLUDED.clock,
			referee = EXCLUDED.referee,
			stats1 = EXCLUDED.stats1,
			stats2 = EXCLUDED.stats2,
			scraped_at = NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing fight upsert: %w", err)
	}
	defer stmt.Close()

	for _, f := range fights {
		if _, err := stmt.ExecContext(ctx,
			f.URL, f.FightDate, f.Fighter1, f.Fighter2, f.Result1, f.Result2,
			f.WeightClass, f.TitleFight, f.Method, f.Round, f.Clock, f.TimeFormat, f.Referee,
			f.Stats1, f.Stats2,
		); err != nil {
			return 0, fmt.Errorf("upserting fight %s: %w", f.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing fight upsert: %w", err)
	}
	return len(fights), nil
}

// Since returns fights on or after a date, newest first.
func (r *FightRepository) Since(ctx context.Context, since time.Time) ([]store.Fight, error) {
	rows, err := r.db.DB().QueryContext(ctx, `SELECT `+fightColumns+`
		FROM ufc_fights
		WHERE fight_date >= $1
		ORDER BY fight_date DESC, url
	`, since)
	if err != nil {
		return nil, fmt.Errorf("querying fights: %w", err)
	}
	defer rows.Close()

	var fights []store.Fight
	for rows.Next() {
		var f store.Fight
		if err := rows.Scan(
			&f.ID, &f.URL, &f.FightDate, &f.Fighter1, &f.Fighter2, &f.Result1, &f.Result2,
			&f.WeightClass, &f.TitleFight, &f.Method, &f.Round, &f.Clock, &f.TimeFormat, &f.Referee,
			&f.Stats1, &f.Stats2, &f.ScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning fight: %w", err)
		}
		fights = append(fights, f)
	}
	return fights, rows.Err()
}

// Result reports whether fighter beat opponent in a fight on date or the
// day after. Draws and no contests return ErrNotFound.
func (r *FightRepository) Result(ctx context.Context, fighter, opponent string, date time.Time) (bool, error) {
	query := `
		SELECT fighter1, result1, result2 FROM ufc_fights
		WHERE ((fighter1 = $1 AND fighter2 = $2) OR (fighter1 = $2 AND fighter2 = $1))
			AND fight_date >= $3 AND fight_date <= $4
		LIMIT 1
	`
	day := date.Truncate(24 * time.Hour)
	var f1, r1, r2 string
	err := r.db.DB().QueryRowContext(ctx, query, fighter, opponent, day, day.AddDate(0, 0, 1)).Scan(&f1, &r1, &r2)
	if errors.Is(err, sql.ErrNoRows) {
		return false, store.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("querying fight result: %w", err)
	}

	own := r1
	if f1 != fighter {
		own = r2
	}
	switch own {
	case "W":
		return true, nil
	case "L":
		return false, nil
	}
	return false, store.ErrNotFound
}
