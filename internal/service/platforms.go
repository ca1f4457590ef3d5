package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/repository"
)

// SeedPlatforms upserts one platform row per entry in creds, keyed by
// platform type. Existing rows get their credentials replaced and are
// marked active.
func SeedPlatforms(ctx context.Context, repo repository.PlatformRepository, creds map[model.PlatformType]map[string]string, logger *slog.Logger) error {
	for _, t := range model.PlatformTypes {
		c, ok := creds[t]
		if !ok || len(c) == 0 {
			continue
		}
		p := &model.Platform{
			Type:        t,
			Name:        string(t),
			Credentials: c,
			IsActive:    true,
		}
		if err := repo.UpsertPlatform(ctx, p); err != nil {
			return fmt.Errorf("service: seeding platform %s: %w", t, err)
		}
		logger.Info("platform credentials seeded", slog.String("platform", string(t)))
	}
	return nil
}

// ListPlatforms returns the configured platforms without credentials.
func ListPlatforms(ctx context.Context, repo repository.PlatformRepository) ([]model.Platform, error) {
	return repo.ListPlatforms(ctx)
}
