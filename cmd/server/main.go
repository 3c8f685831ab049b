package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Joshypeace/PharmaStore/internal/auth"
	"github.com/Joshypeace/PharmaStore/internal/config"
	"github.com/Joshypeace/PharmaStore/internal/core"
	"github.com/Joshypeace/PharmaStore/internal/database"
	"github.com/Joshypeace/PharmaStore/internal/logging"
	"github.com/Joshypeace/PharmaStore/internal/metrics"
	"github.com/Joshypeace/PharmaStore/internal/web"
)

func main() {
	// Overload lets .env win over the shell, matching local development.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration", "config", cfg.String())
	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"duplicate_policy", cfg.Import.DuplicatePolicy,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	policy, err := core.ParseDuplicatePolicy(cfg.Import.DuplicatePolicy)
	if err != nil {
		slog.Error("invalid import duplicate policy", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, cfg.Database.URL); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	store := database.New(pool)
	collector := metrics.New()
	service := core.NewService(store, core.Options{
		Duplicates: policy,
		Observer:   collector,
	})

	accounts := auth.NewService(store, cfg.Auth)
	if cfg.Auth.SeedAdmin {
		if _, err := accounts.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			slog.Error("failed to seed admin user", "error", err)
			os.Exit(1)
		}
	}

	imports := core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)
	server := web.NewServer(web.Deps{
		Inventory: service,
		Accounts:  accounts,
		Reports:   store,
		Imports:   imports,
		Metrics:   collector,
	}, cfg)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if st := imports.Status(); st.Active > 0 {
			slog.Info("waiting for imports to complete", "active", st.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	// Start returns as soon as Shutdown begins; keep the pool open until
	// running imports have drained.
	<-stopped
	slog.Info("server stopped")
}
