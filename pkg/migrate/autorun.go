package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/zerymnor-storefront/pkg/config"
	"github.com/angelmondragon/zerymnor-storefront/pkg/db"
	"github.com/angelmondragon/zerymnor-storefront/pkg/logger"
)

// MaybeAutoRun applies the embedded migrations when the SQL cart backend is
// active and auto-migrate is enabled (or the app runs in dev).
func MaybeAutoRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client == nil || cfg.Cart.Backend != config.CartBackendSQL {
		return nil
	}
	if !cfg.App.AutoMigrate && !cfg.App.IsDev() {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": client.Driver()})
	logg.Info(ctx, "running goose migrations (auto-run)")

	if err := Run(ctx, sqlDB, client.Driver(), "", "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
