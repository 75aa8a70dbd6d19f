package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/pj-lytezen/obsidian-api-webhook/internal/adapter/driven/obsidian"
	"github.com/pj-lytezen/obsidian-api-webhook/internal/adapter/driven/postgres"
	"github.com/pj-lytezen/obsidian-api-webhook/internal/adapter/driven/sqlite"
	httphandler "github.com/pj-lytezen/obsidian-api-webhook/internal/adapter/driving/http"
	"github.com/pj-lytezen/obsidian-api-webhook/internal/application"
	"github.com/pj-lytezen/obsidian-api-webhook/internal/config"
	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// storage bundles the driver-specific pieces the rest of the wiring needs.
type storage struct {
	vaults driven.VaultStore
	queue  driven.NoteQueue
	pinger application.StorePinger
	close  func() error
}

func openStorage(cfg *config.Config) (*storage, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err := postgres.NewDB(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(db.Conn); err != nil {
			db.Close()
			return nil, err
		}
		return &storage{
			vaults: postgres.NewVaultRepo(db),
			queue:  postgres.NewQueueRepo(db),
			pinger: db,
			close:  db.Close,
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.NewDB(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.RunMigrations(db.Writer); err != nil {
			db.Close()
			return nil, err
		}
		return &storage{
			vaults: sqlite.NewVaultRepo(db),
			queue:  sqlite.NewQueueRepo(db),
			pinger: db,
			close:  db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_driver", cfg.DBDriver,
		"api_url", cfg.APIURL,
		"auth_enabled", cfg.AuthToken != "",
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open storage backend and run migrations.
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.close(); closeErr != nil {
			slog.Error("error closing storage", "error", closeErr)
		}
	}()
	slog.Info("storage ready", "driver", cfg.DBDriver)

	// 4. Wire adapters and services.
	deliverer := obsidian.NewClient(cfg.APIURL, cfg.APITimeout)
	deliverySvc := application.NewDeliveryService(store.vaults, store.queue, deliverer, slog.Default())
	healthSvc := application.NewHealthService(store.pinger)

	// 5. Create HTTP handler and register routes.
	apiHandler := httphandler.NewHandler(deliverySvc, healthSvc, store.vaults, store.queue, cfg.MaxNoteBytes, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, cfg.AuthToken, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("obsidian-webhook started", "listen_addr", cfg.ListenAddr)

	// 6. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 7. Graceful shutdown with 10s timeout to drain in-flight deliveries.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
