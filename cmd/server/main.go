package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/WvvvWv/csvsplit/internal/config"
	"github.com/WvvvWv/csvsplit/internal/core"
	"github.com/WvvvWv/csvsplit/internal/history"
	"github.com/WvvvWv/csvsplit/internal/logging"
	"github.com/WvvvWv/csvsplit/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
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

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"split_max_workers", cfg.Split.MaxWorkers,
		"split_max_concurrent", cfg.Split.MaxConcurrentRequests,
		"history_db", cfg.Database.URL != "",
	)

	ctx := context.Background()

	var store history.Store
	if cfg.Database.URL != "" {
		pool, err := openPool(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg, err := history.NewPostgresStore(ctx, pool)
		if err != nil {
			slog.Error("failed to prepare history table", "error", err)
			os.Exit(1)
		}
		store = pg
	} else {
		store = history.NewMemoryStore(cfg.History.Capacity)
	}

	service := core.NewService(cfg.ServiceOptions(), store)
	server := web.NewServer(service, cfg.Security)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Wait for in-flight splits (with timeout)
		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for splits to complete", "active", status.Active)
			if err := service.WaitForSplits(shutdownCtx); err != nil {
				slog.Warn("splits did not complete in time", "error", err)
			} else {
				slog.Info("all splits completed")
			}
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// openPool parses the database URL, applies the pool limits and verifies the
// connection.
func openPool(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(db.MaxConns)
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(db.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
