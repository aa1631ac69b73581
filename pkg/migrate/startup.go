package migrate

import (
	"context"
	"fmt"

	"github.com/sashimarconi/checkout-backend/pkg/config"
	"github.com/sashimarconi/checkout-backend/pkg/db"
	"github.com/sashimarconi/checkout-backend/pkg/logger"
)

// RunStartup applies pending migrations before the server starts accepting
// traffic. Schema changes happen here, once, instead of being smuggled into
// request handlers behind a flag.
func RunStartup(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.DB.MigrateOnStart {
		logg.Info(ctx, "startup migrations disabled, skipping")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta := map[string]any{"env": cfg.App.Env, "dir": DefaultDir}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "running Goose migrations")

	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}
