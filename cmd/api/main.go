package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

	"gopattern/adapters/db/postgres/migrations"
	"gopattern/adapters/excel"
	"gopattern/adapters/postgres"
	"gopattern/adapters/stats/engine"
	"gopattern/app"
	"gopattern/internal"
	"gopattern/internal/api"
	"gopattern/internal/config"
	"gopattern/internal/testkit"
	"gopattern/internal/web"
	"gopattern/ports"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runs, db, err := openRunRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize run storage: %v", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	service := app.NewDiscoveryService(excel.NewDataReader(logger), engine.NewDiscoveryEngine(logger), runs, logger)

	browser, err := web.NewApp(service, logger)
	if err != nil {
		logger.Error("failed to create report browser: %v", err)
		os.Exit(1)
	}
	apiRouter := api.NewRouter(api.NewRunHandler(service, cfg.Options, logger).WithDataDir(cfg.Server.DataDir))
	browser.Router().Handle("/api/*", apiRouter)

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     browser,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	go func() {
		logger.Info("starting API server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown: %v", err)
	}
	logger.Info("server stopped")
}

// openRunRepository uses PostgreSQL when DATABASE_URL is set and an in-memory store otherwise.
func openRunRepository(ctx context.Context, cfg *config.Config, logger *internal.Logger) (ports.RunRepository, *sqlx.DB, error) {
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set; runs are kept in memory until the server stops")
		return testkit.NewInMemoryRunRepository(), nil, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	defer cancel()
	db, err := postgres.Open(connectCtx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	if _, err := migrations.NewMigrator(db, logger).Up(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return postgres.NewRunRepository(db), db, nil
}
