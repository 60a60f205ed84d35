// Package sqlitestore keeps scenario records in a SQLite table as JSON blobs.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/spektr-org/spektr-olap/scenario/store"
)

var _ store.Store = (*Store)(nil)

const defaultPath = "spektr-olap.db"

type Store struct {
	db   *sql.DB
	path string
	log  *logrus.Logger
}

// Open opens or creates the database file at path and ensures the scenario
// table exists. An empty path uses spektr-olap.db in the working directory.
func Open(path string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS scenarios (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create scenarios table: %w", err)
	}
	logger.WithField("path", path).Info("scenario store opened")
	return &Store{db: db, path: path, log: logger}, nil
}

// Path returns the database file in use.
func (s *Store) Path() string { return s.path }

func (s *Store) Put(ctx context.Context, r store.Record) error {
	b, err := store.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode scenario %s: %w", r.ID, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO scenarios(id,name,payload) VALUES(?,?,?) ON CONFLICT(id) DO UPDATE SET name=excluded.name, payload=excluded.payload`,
		r.ID, r.Name, b); err != nil {
		return fmt.Errorf("upsert scenario %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (store.Record, error) {
	var b []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM scenarios WHERE id = ?`, id).Scan(&b)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM scenarios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scenario %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

func (s *Store) Close() error {
	s.log.WithField("path", s.path).Info("scenario store closed")
	return s.db.Close()
}
