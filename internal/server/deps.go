package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/content-dashboard/internal/config"
	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/platform"
	"github.com/sakif/content-dashboard/internal/platform/instagram"
	"github.com/sakif/content-dashboard/internal/platform/linkedin"
	"github.com/sakif/content-dashboard/internal/platform/youtube"
	"github.com/sakif/content-dashboard/internal/repository/sqlstore"
	"github.com/sakif/content-dashboard/internal/service"
)

// OpenStore opens the configured database and applies migrations. For
// sqlite it creates the parent directory of DB_PATH first.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sqlstore.DB, error) {
	if cfg.StoreDriver() == sqlstore.DriverSQLite && cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("server: creating database directory %s: %w", dir, err)
		}
	}
	return sqlstore.Open(ctx, sqlstore.Options{
		Driver: cfg.StoreDriver(),
		DSN:    cfg.DSN(),
		Logger: logger,
	})
}

// NewRegistry wires one factory per network. Each network gets its own
// limiter, shared by every adapter built from the registry, so pacing
// holds across syncs.
func NewRegistry(cfg *config.Config) platform.Registry {
	opts := func() platform.Options {
		return platform.Options{
			HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
			Limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		}
	}
	return platform.Registry{
		model.PlatformLinkedIn:  linkedin.NewFactory(opts()),
		model.PlatformYouTube:   youtube.NewFactory(opts()),
		model.PlatformInstagram: instagram.NewFactory(opts()),
	}
}

// NewReconciler builds the sync reconciler over store.
func NewReconciler(store service.SyncStore, cfg *config.Config, logger *slog.Logger) *service.Reconciler {
	return service.NewReconciler(store, NewRegistry(cfg), logger)
}
