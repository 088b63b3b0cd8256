package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/croptrace/soil-analysis/internal/soil"
)

// SQLiteStore implements soil.Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path, configures WAL mode
// and applies the schema.
func NewSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	coord_key  TEXT NOT NULL,
	latitude   REAL NOT NULL,
	longitude  REAL NOT NULL,
	quality    TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_coord_key ON analyses(coord_key);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
`

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// SaveResult inserts a finished analysis. The full document is stored as JSON
// beside the columns used for lookups.
func (s *SQLiteStore) SaveResult(ctx context.Context, res soil.AnalysisResult) error {
	doc, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, coord_key, latitude, longitude, quality, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		res.Coordinate.Key(),
		res.Coordinate.Latitude,
		res.Coordinate.Longitude,
		string(res.Quality),
		string(doc),
		res.Timestamp.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert analysis")
}

// GetLatest returns the most recent result for a coordinate.
func (s *SQLiteStore) GetLatest(ctx context.Context, c soil.Coordinate) (soil.AnalysisResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT result FROM analyses WHERE coord_key = ? ORDER BY created_at DESC LIMIT 1`,
		c.Key(),
	)

	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return soil.AnalysisResult{}, ErrNotFound
		}
		return soil.AnalysisResult{}, eris.Wrap(err, "sqlite: query latest analysis")
	}
	return decodeResult([]byte(doc))
}

// GetRange returns all results for a coordinate between from and to (inclusive).
func (s *SQLiteStore) GetRange(ctx context.Context, c soil.Coordinate, from, to time.Time) ([]soil.AnalysisResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT result FROM analyses
		 WHERE coord_key = ? AND created_at >= ? AND created_at <= ?
		 ORDER BY created_at ASC`,
		c.Key(), from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query analysis range")
	}
	defer rows.Close()

	var results []soil.AnalysisResult
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis row")
		}
		res, err := decodeResult([]byte(doc))
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate analysis rows")
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return results, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// decodeResult unmarshals a stored analysis document.
func decodeResult(doc []byte) (soil.AnalysisResult, error) {
	var res soil.AnalysisResult
	if err := json.Unmarshal(doc, &res); err != nil {
		return soil.AnalysisResult{}, eris.Wrap(err, "decode stored analysis")
	}
	return res, nil
}
