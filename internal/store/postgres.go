package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/croptrace/soil-analysis/internal/soil"
)

// Pool is the subset of pgxpool.Pool the store uses. A pgxmock pool satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements soil.Store on a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to the database at dsn and applies the schema.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresFromPool wraps an existing pool without running migrations.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id         UUID PRIMARY KEY,
	coord_key  TEXT NOT NULL,
	latitude   DOUBLE PRECISION NOT NULL,
	longitude  DOUBLE PRECISION NOT NULL,
	quality    TEXT NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_coord_key ON analyses(coord_key);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
`

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// SaveResult inserts a finished analysis.
func (s *PostgresStore) SaveResult(ctx context.Context, res soil.AnalysisResult) error {
	doc, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (id, coord_key, latitude, longitude, quality, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(),
		res.Coordinate.Key(),
		res.Coordinate.Latitude,
		res.Coordinate.Longitude,
		string(res.Quality),
		doc,
		res.Timestamp.UTC(),
	)
	return eris.Wrap(err, "postgres: insert analysis")
}

// GetLatest returns the most recent result for a coordinate.
func (s *PostgresStore) GetLatest(ctx context.Context, c soil.Coordinate) (soil.AnalysisResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT result FROM analyses WHERE coord_key = $1 ORDER BY created_at DESC LIMIT 1`,
		c.Key(),
	)

	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return soil.AnalysisResult{}, ErrNotFound
		}
		return soil.AnalysisResult{}, eris.Wrap(err, "postgres: query latest analysis")
	}
	return decodeResult(doc)
}

// GetRange returns all results for a coordinate between from and to (inclusive).
func (s *PostgresStore) GetRange(ctx context.Context, c soil.Coordinate, from, to time.Time) ([]soil.AnalysisResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT result FROM analyses
		 WHERE coord_key = $1 AND created_at >= $2 AND created_at <= $3
		 ORDER BY created_at ASC`,
		c.Key(), from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query analysis range")
	}
	defer rows.Close()

	var results []soil.AnalysisResult
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis row")
		}
		res, err := decodeResult(doc)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate analysis rows")
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return results, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
