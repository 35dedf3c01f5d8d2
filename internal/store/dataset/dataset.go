// Package dataset keeps processed feature rows in a local SQLite file so
// training sets can be exported without re-running the scrapers.
package dataset

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/fortuna/augur/internal/features"
	"github.com/fortuna/augur/internal/sport"
)

// Split names which side of the upcoming cutoff a row fell on.
type Split string

const (
	Training Split = "training"
	Upcoming Split = "upcoming"
)

// Store persists processed rows per sport and split.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// Open creates or opens the dataset file.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dataset dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS dataset_rows (
			sport       TEXT    NOT NULL,
			split       TEXT    NOT NULL,
			entity      TEXT    NOT NULL,
			opponent    TEXT    NOT NULL,
			date        TEXT    NOT NULL,
			home        INTEGER NOT NULL DEFAULT 0,
			result      INTEGER NOT NULL DEFAULT 0,
			features    TEXT    NOT NULL,
			labels      TEXT    NOT NULL,
			updated_at  TEXT    NOT NULL,
			PRIMARY KEY (sport, split, entity, opponent, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dataset_sport_split ON dataset_rows(sport, split)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	return &Store{db: db, logger: logger.Named("dataset")}, nil
}

// Close closes the file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Replace swaps the stored rows of a sport's split for rows.
func (s *Store) Replace(ctx context.Context, sp sport.Sport, split Split, rows []features.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dataset replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_rows WHERE sport = ? AND split = ?`, string(sp), string(split)); err != nil {
		return fmt.Errorf("clear %s %s rows: %w", sp, split, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO dataset_rows (sport, split, entity, opponent, date, home, result, features, labels, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare dataset insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range rows {
		feats, err := json.Marshal(r.ModelInput())
		if err != nil {
			return fmt.Errorf("encode features of %s: %w", r, err)
		}
		labels, err := json.Marshal(nonNil(r.Labels))
		if err != nil {
			return fmt.Errorf("encode labels of %s: %w", r, err)
		}
		if _, err := stmt.ExecContext(ctx,
			string(sp), string(split), r.Entity, r.Opponent, r.Date.Format("2006-01-02"),
			boolInt(r.Home), boolInt(r.Result), string(feats), string(labels), now,
		); err != nil {
			return fmt.Errorf("insert %s: %w", r, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dataset replace: %w", err)
	}
	s.logger.Info("stored dataset rows",
		zap.String("sport", sp.String()),
		zap.String("split", string(split)),
		zap.Int("rows", len(rows)),
	)
	return nil
}

// Record is a stored row.
type Record struct {
	Entity   string
	Opponent string
	Date     time.Time
	Home     bool
	Result   bool
	Features map[string]float64
	Labels   map[string]float64
}

// Rows returns a split's records ordered by date, newest first.
func (s *Store) Rows(ctx context.Context, sp sport.Sport, split Split) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity, opponent, date, home, result, features, labels
		FROM dataset_rows
		WHERE sport = ? AND split = ?
		ORDER BY date DESC, entity`, string(sp), string(split))
	if err != nil {
		return nil, fmt.Errorf("query dataset: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec           Record
			date          string
			home, result  int
			feats, labels string
		)
		if err := rows.Scan(&rec.Entity, &rec.Opponent, &date, &home, &result, &feats, &labels); err != nil {
			return nil, fmt.Errorf("scan dataset row: %w", err)
		}
		rec.Date, _ = time.Parse("2006-01-02", date)
		rec.Home, rec.Result = home == 1, result == 1
		if err := json.Unmarshal([]byte(feats), &rec.Features); err != nil {
			return nil, fmt.Errorf("decode features: %w", err)
		}
		if err := json.Unmarshal([]byte(labels), &rec.Labels); err != nil {
			return nil, fmt.Errorf("decode labels: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ExportCSV writes a split with one column per feature and label. Missing
// values are left empty.
func (s *Store) ExportCSV(ctx context.Context, sp sport.Sport, split Split, w io.Writer) (int, error) {
	records, err := s.Rows(ctx, sp, split)
	if err != nil {
		return 0, err
	}

	featureNames := columns(records, func(r Record) map[string]float64 { return r.Features })
	labelNames := columns(records, func(r Record) map[string]float64 { return r.Labels })

	cw := csv.NewWriter(w)
	header := append([]string{"team", "opponent", "date", "result"}, featureNames...)
	header = append(header, labelNames...)
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	for _, rec := range records {
		line := []string{rec.Entity, rec.Opponent, rec.Date.Format("2006-01-02"), strconv.Itoa(boolInt(rec.Result))}
		line = appendValues(line, featureNames, rec.Features)
		line = appendValues(line, labelNames, rec.Labels)
		if err := cw.Write(line); err != nil {
			return 0, fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return len(records), cw.Error()
}

func columns(records []Record, pick func(Record) map[string]float64) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range pick(r) {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func appendValues(line, names []string, values map[string]float64) []string {
	for _, name := range names {
		if v, ok := values[name]; ok {
			line = append(line, strconv.FormatFloat(v, 'f', -1, 64))
		} else {
			line = append(line, "")
		}
	}
	return line
}

func nonNil(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
