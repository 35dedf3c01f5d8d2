package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortuna/augur/internal/store"
)

// ProfileRepository handles fighter and player profiles
type ProfileRepository struct {
	db *store.Database
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *store.Database) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `id, sport, name, nickname, record, dob, height, weight, reach,
	stance, hand, backhand, country, url, updated_at`

// Upsert inserts or refreshes a profile
func (r *ProfileRepository) Upsert(ctx context.Context, p *store.Profile) error {
	query := `
		INSERT INTO profiles (sport, name, nickname, record, dob, height, weight, reach,
			stance, hand, backhand, country, url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (sport, name) DO UPDATE SET
			nickname = COALESCE(EXCLUDED.nickname, profiles.nickname),
			record = COALESCE(EXCLUDED.record, profiles.record),
			dob = COALESCE(EXCLUDED.dob, profiles.dob),
			height = COALESCE(EXCLUDED.height, profiles.height),
			weight = COALESCE(EXCLUDED.weight, profiles.weight),
			reach = COALESCE(EXCLUDED.reach, profiles.reach),
			stance = COALESCE(EXCLUDED.stance, profiles.stance),
			hand = COALESCE(EXCLUDED.hand, profiles.hand),
			backhand = COALESCE(EXCLUDED.backhand, profiles.backhand),
			country = COALESCE(EXCLUDED.country, profiles.country),
			url = COALESCE(EXCLUDED.url, profiles.url),
			updated_at = NOW()
		RETURNING id, updated_at
	`
	err := r.db.DB().QueryRowContext(ctx, query,
		p.Sport, p.Name, p.Nickname, p.Record, p.DOB, p.Height, p.Weight, p.Reach,
		p.Stance, p.Hand, p.Backhand, p.Country, p.URL,
	).Scan(&p.ID, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting profile %s: %w", p.Name, err)
	}
	return nil
}

// Get finds a profile by sport and name
func (r *ProfileRepository) Get(ctx context.Context, sport, name string) (*store.Profile, error) {
	row := r.db.DB().QueryRowContext(ctx, `SELECT `+profileColumns+`
		FROM profiles WHERE sport = $1 AND name = $2`, sport, name)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return p, nil
}

// All returns every profile of a sport keyed by name.
func (r *ProfileRepository) All(ctx context.Context, sport string) (map[string]store.Profile, error) {
	rows, err := r.db.DB().QueryContext(ctx, `SELECT `+profileColumns+`
		FROM profiles WHERE sport = $1`, sport)
	if err != nil {
		return nil, fmt.Errorf("querying profiles: %w", err)
	}
	defer rows.Close()

	profiles := make(map[string]store.Profile)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		profiles[p.Name] = *p
	}
	return profiles, rows.Err()
}

func scanProfile(scanner interface {
	Scan(dest ...interface{}) error
}) (*store.Profile, error) {
	p := &store.Profile{}
	err := scanner.Scan(
		&p.ID, &p.Sport, &p.Name, &p.Nickname, &p.Record, &p.DOB, &p.Height, &p.Weight, &p.Reach,
		&p.Stance, &p.Hand, &p.Backhand, &p.Country, &p.URL, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
