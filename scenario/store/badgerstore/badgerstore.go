// Package badgerstore keeps scenario records in an embedded Badger database.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/spektr-org/spektr-olap/scenario/store"
)

var _ store.Store = (*Store)(nil)

var keyPrefix = []byte("scenario:")

// Config configures the store. Path is the database directory and is
// created when missing.
type Config struct {
	Path       string
	SyncWrites bool
	Logger     *logrus.Logger
}

type Store struct {
	db  *badger.DB
	log *logrus.Logger
}

// Open opens or creates the database at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Path == "" {
		return nil, errors.New("badgerstore: no path provided in configuration")
	}
	if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
		return nil, fmt.Errorf("badgerstore: create dir: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open %s: %w", cfg.Path, err)
	}
	cfg.Logger.WithField("path", cfg.Path).Info("scenario store opened")
	return &Store{db: db, log: cfg.Logger}, nil
}

func key(id string) []byte {
	return append(append([]byte(nil), keyPrefix...), id...)
}

func (s *Store) Put(_ context.Context, r store.Record) error {
	b, err := store.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode scenario %s: %w", r.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(r.ID), b)
	})
}

func (s *Store) Get(_ context.Context, id string) (store.Record, error) {
	var b []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		b, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.Record{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("read scenario %s: %w", id, err)
	}
	return store.Unmarshal(b)
}

// List walks the key prefix; badger iterates keys in byte order.
func (s *Store) List(_ context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(keyPrefix):]))
		}
		return nil
	})
	return ids, err
}

func (s *Store) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", store.ErrNotFound, id)
			}
			return err
		}
		return txn.Delete(key(id))
	})
}

func (s *Store) Close() error {
	s.log.Info("scenario store closed")
	return s.db.Close()
}
