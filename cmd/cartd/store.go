package main

import (
	"context"
	"fmt"

	"github.com/nursingcollective/cartengine/pkg/config"
	"github.com/nursingcollective/cartengine/pkg/db"
	"github.com/nursingcollective/cartengine/pkg/logger"
	"github.com/nursingcollective/cartengine/pkg/migrate"
	"github.com/nursingcollective/cartengine/pkg/storage"
	"github.com/nursingcollective/cartengine/pkg/storage/filestore"
	"github.com/nursingcollective/cartengine/pkg/storage/redisstore"
	"github.com/nursingcollective/cartengine/pkg/storage/sqlstore"
)

// localStore is the configured local storage plus whatever must be closed
// on shutdown.
type localStore struct {
	storage.Store
	close func() error
}

func (s localStore) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func openLocalStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (localStore, error) {
	driver := cfg.Storage.NormalizedDriver()
	ctx = logg.WithField(ctx, "storage_driver", driver)

	switch driver {
	case config.StorageDriverMemory:
		logg.Warn(ctx, "memory storage selected, guest carts will not survive a restart")
		return localStore{Store: storage.NewMemory()}, nil

	case config.StorageDriverFile:
		store, err := filestore.New(cfg.Storage.Path)
		if err != nil {
			return localStore{}, fmt.Errorf("opening file store: %w", err)
		}
		return localStore{Store: store}, nil

	case config.StorageDriverRedis:
		store, err := redisstore.New(ctx, cfg.Redis, logg)
		if err != nil {
			return localStore{}, fmt.Errorf("opening redis store: %w", err)
		}
		return localStore{Store: store, close: store.Close}, nil

	case config.StorageDriverSQLite, config.StorageDriverPostgres:
		client, err := db.New(ctx, driver, cfg.SQLDSN(), cfg.DB, logg)
		if err != nil {
			return localStore{}, fmt.Errorf("opening %s store: %w", driver, err)
		}
		if err := migrate.MaybeRun(ctx, cfg.DB, logg, client); err != nil {
			_ = client.Close()
			return localStore{}, err
		}
		return localStore{Store: sqlstore.New(client), close: client.Close}, nil
	}

	return localStore{}, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
}
