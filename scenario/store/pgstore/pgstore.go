// Package pgstore keeps scenario records in Postgres as JSONB documents.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/sirupsen/logrus"

	"github.com/spektr-org/spektr-olap/scenario/store"
)

var _ store.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/spektr_olap?sslmode=disable"
)

type Store struct {
	db  *sql.DB
	log *logrus.Logger
}

// Open connects using dsn (falls back to a local default) and ensures the
// scenario table exists.
func Open(ctx context.Context, dsn string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open(defaultDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("scenario store opened")
	return &Store{db: db, log: logger}, nil
}

func ensureTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS scenarios (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure scenarios table: %w", err)
	}
	return nil
}

// DB exposes the underlying sql.DB for integration tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Put(ctx context.Context, r store.Record) error {
	b, err := store.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode scenario %s: %w", r.ID, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO scenarios (id, name, payload) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, payload = EXCLUDED.payload`,
		r.ID, r.Name, b); err != nil {
		return fmt.Errorf("upsert scenario %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (store.Record, error) {
	var b []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM scenarios WHERE id = $1`, id).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("select scenario %s: %w", id, err)
	}
	return store.Unmarshal(b)
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM scenarios ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select scenarios: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scenarios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete scenario %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

func (s *Store) Close() error {
	s.log.Info("scenario store closed")
	return s.db.Close()
}
