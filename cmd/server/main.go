// Package main is the entry point for the content dashboard.
//
// MAIN PACKAGE IN GO:
// main stays thin. It reads configuration, builds the logger and the store,
// and hands everything to internal/server. All logic lives in imported
// packages so it can be tested without a process.
//
// COMMANDS:
//
//	dashboard                 same as "serve"
//	dashboard serve           run the HTTP server (and the sync scheduler)
//	dashboard migrate         apply database migrations and exit
//	dashboard sync [type...]  sync the given platforms, or every active one
//	dashboard set-role <email> <role>
//
// set-role is how the first admin is made: every new account starts as
// "user", and only an admin can manage the allow-list.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/content-dashboard/internal/config"
	"github.com/sakif/content-dashboard/internal/model"
	"github.com/sakif/content-dashboard/internal/repository/sqlstore"
	"github.com/sakif/content-dashboard/internal/server"
	"github.com/sakif/content-dashboard/internal/service"
)

var version = "dev"

func main() {
	// signal.NotifyContext cancels ctx on Ctrl+C or SIGTERM; every command
	// shares it, so a long sync stops as cleanly as the server does.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "dashboard",
		Short:   "Social media content analytics dashboard",
		Version: version,
		Long: `dashboard serves the content analytics API: Google login, per-platform
post sync, dashboard metrics and optional AI analysis.

Configuration comes from the environment (and .env), optionally layered
over a YAML file named by CONFIG_FILE.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			Args:  cobra.NoArgs,
			RunE:  runMigrate,
		},
		&cobra.Command{
			Use:   "sync [platform...]",
			Short: "Sync posts from the given platforms, or from every active one",
			Long: `Sync posts once and exit.

Examples:
  # Sync every active platform
  dashboard sync

  # Sync only YouTube and LinkedIn
  dashboard sync youtube linkedin`,
			RunE: runSync,
		},
		&cobra.Command{
			Use:   "set-role <email> <role>",
			Short: "Change the role of an existing user (viewer, user, admin)",
			Args:  cobra.ExactArgs(2),
			RunE:  runSetRole,
		},
	)
	return root
}

// setup loads configuration and builds the logger every command uses.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		// No configured logger yet; report on stderr in the default format.
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("invalid configuration", slog.String("error", err.Error()))
		return nil, nil, err
	}
	return cfg, newLogger(cfg), nil
}

// newLogger builds the slog logger from LOG_LEVEL and LOG_FORMAT.
// Levels (least to most severe): debug → info → warn → error.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sqlstore.DB, error) {
	store, err := server.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open database",
			slog.String("driver", cfg.StoreDriver()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return store, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := service.SeedPlatforms(ctx, store, cfg.Platforms, logger); err != nil {
		logger.Error("failed to seed platforms", slog.String("error", err.Error()))
		return err
	}

	srv, err := server.New(cfg, store, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start blocks until ctx is cancelled and the server has drained.
	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	// Open applies every pending migration.
	store, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("migrations applied", slog.String("driver", cfg.StoreDriver()))
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	types := make([]model.PlatformType, 0, len(args))
	for _, a := range args {
		t, ok := model.ParsePlatformType(strings.ToLower(a))
		if !ok {
			return fmt.Errorf("unknown platform %q", a)
		}
		types = append(types, t)
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := service.SeedPlatforms(ctx, store, cfg.Platforms, logger); err != nil {
		return err
	}
	reconciler := server.NewReconciler(store, cfg, logger)

	var reports []service.SyncReport
	if len(types) == 0 {
		reports, err = reconciler.SyncAll(ctx)
		if err != nil {
			return err
		}
	} else {
		for _, t := range types {
			posts, err := reconciler.SyncPlatform(ctx, t)
			reports = append(reports, service.SyncReport{Platform: t, Synced: len(posts), Err: err})
		}
	}

	out := cmd.OutOrStdout()
	var failed error
	for _, r := range reports {
		if r.Err != nil {
			fmt.Fprintf(out, "%-10s failed: %v\n", r.Platform, r.Err)
			failed = errors.Join(failed, r.Err)
			continue
		}
		fmt.Fprintf(out, "%-10s %d posts\n", r.Platform, r.Synced)
	}
	return failed
}

func runSetRole(cmd *cobra.Command, args []string) error {
	email := model.NormalizeEmail(args[0])
	role := model.Role(strings.ToLower(args[1]))
	if !role.Valid() {
		return fmt.Errorf("unknown role %q (want viewer, user or admin)", args[1])
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	store, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SetUserRole(cmd.Context(), email, role); err != nil {
		return fmt.Errorf("setting role for %s: %w", email, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", email, role)
	return nil
}
