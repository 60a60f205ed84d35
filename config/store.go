package config

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/spektr-org/spektr-olap/scenario/store"
	"github.com/spektr-org/spektr-olap/scenario/store/badgerstore"
	"github.com/spektr-org/spektr-olap/scenario/store/memory"
	"github.com/spektr-org/spektr-olap/scenario/store/pgstore"
	"github.com/spektr-org/spektr-olap/scenario/store/sqlitestore"
)

// Open creates the configured scenario store.
func (s StoreConfig) Open(ctx context.Context, logger *logrus.Logger) (store.Store, error) {
	switch s.Driver {
	case "", DriverMemory:
		return memory.New(), nil
	case DriverBadger:
		return badgerstore.Open(badgerstore.Config{Path: s.Path, SyncWrites: true, Logger: logger})
	case DriverSQLite:
		return sqlitestore.Open(s.Path, logger)
	case DriverPostgres:
		return pgstore.Open(ctx, s.DSN, logger)
	}
	return nil, fmt.Errorf("unknown store driver %q", s.Driver)
}
