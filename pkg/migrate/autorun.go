package migrate

import (
	"context"
	"fmt"

	"github.com/nursingcollective/cartengine/pkg/config"
	"github.com/nursingcollective/cartengine/pkg/db"
	"github.com/nursingcollective/cartengine/pkg/logger"
)

// MaybeRun applies pending migrations when auto-migrate is enabled for the
// SQL-backed local store.
func MaybeRun(ctx context.Context, cfg config.DBConfig, logg *logger.Logger, client *db.Client) error {
	if !cfg.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"driver": client.Dialect(), "dir": embeddedDir})
	logg.Info(ctx, "running goose migrations")

	if err := Run(ctx, sqlDB, client.Dialect(), "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
