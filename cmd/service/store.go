package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jsamuelsen/application-intake/internal/adapters/storage/memory"
	"github.com/jsamuelsen/application-intake/internal/adapters/storage/postgres"
	"github.com/jsamuelsen/application-intake/internal/adapters/storage/redis"
	"github.com/jsamuelsen/application-intake/internal/platform/config"
	"github.com/jsamuelsen/application-intake/internal/ports"
)

type storeDriver interface {
	ports.SubmissionStore
	ports.SettingsStore
	ports.HealthChecker
}

// intakeStore is what every store driver provides, plus connection cleanup.
type intakeStore interface {
	storeDriver
	io.Closer
}

type closingStore struct {
	storeDriver

	close func() error
}

func (s closingStore) Close() error {
	if s.close == nil {
		return nil
	}

	return s.close()
}

// openStore connects the configured driver. Postgres schemas are migrated
// before use.
func openStore(ctx context.Context, cfg *config.StoreConfig, defaultLimit int) (intakeStore, error) {
	switch cfg.Driver {
	case config.StoreDriverPostgres:
		db, err := postgres.Open(ctx, postgres.Options{
			DSN:          cfg.Postgres.DSN,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
			MaxIdleConns: cfg.Postgres.MaxIdleConns,
		})
		if err != nil {
			return nil, err
		}

		store := postgres.New(db, defaultLimit)
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}

		return closingStore{storeDriver: store, close: db.Close}, nil

	case config.StoreDriverRedis:
		rdb, err := redis.Open(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}

		return closingStore{storeDriver: redis.New(rdb, cfg.Redis.Prefix, defaultLimit), close: rdb.Close}, nil

	case config.StoreDriverMemory:
		return closingStore{storeDriver: memory.New(defaultLimit)}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
