package app

import (
	"context"
	"fmt"
	"log/slog"

	"rendezvous-api/internal/config"
	"rendezvous-api/internal/store"
	"rendezvous-api/internal/store/memory"
	"rendezvous-api/internal/store/mongostore"
	"rendezvous-api/internal/store/postgres"
	"rendezvous-api/internal/store/sqlite"
)

// OpenStore connects the backend named by cfg.StoreDriver. Postgres schema
// migrations are applied before the pool is opened.
func OpenStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		st, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		slog.Info("connected to mongo")
		return st, nil
	case config.DriverPostgres:
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		st, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		slog.Info("connected to postgres")
		return st, nil
	case config.DriverSQLite:
		st, err := sqlite.Open(cfg.SQLiteDSN)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		slog.Info("opened sqlite", slog.String("dsn", cfg.SQLiteDSN))
		return st, nil
	case config.DriverMemory:
		slog.Warn("using in-memory store, data is lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
