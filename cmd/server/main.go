package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"taximeter/internal/app"
	"taximeter/internal/config"
	"taximeter/internal/handler"
	"taximeter/internal/logger"
	internalRedis "taximeter/internal/redis"
	"taximeter/internal/repository/sqlstore"
	"taximeter/internal/service"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			log.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	log.Info("connected to settings store", zap.String("driver", cfg.Database.Driver))

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	server, sessions, err := wireServer(db, redisClient, nrApp, cfg, log)
	if err != nil {
		log.Fatal("failed to wire server", zap.Error(err))
	}

	go func() {
		log.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	// Sessions get their own deadline so a slow HTTP drain cannot leave
	// meter locks behind.
	sessionCtx, sessionCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer sessionCancel()
	sessions.Shutdown(sessionCtx)

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server along with
// the session manager so open sessions can be closed on shutdown.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	cfg *config.Config,
	log *zap.Logger,
) (*http.Server, *service.SessionManager, error) {
	catalog, err := service.NewRateCatalog(cfg.Rates)
	if err != nil {
		return nil, nil, err
	}
	if !catalog.Has(cfg.Meter.DefaultCity) {
		return nil, nil, fmt.Errorf("default city %q: %w", cfg.Meter.DefaultCity, service.ErrUnknownCity)
	}

	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	settingsRepo := sqlstore.NewSettingsRepository(db, sqlstore.DialectFor(cfg.Database.Driver))

	// Initialize services.
	settingsService := service.NewSettingsService(settingsRepo, cacheStore, catalog, cfg.Meter.DefaultCity, log)
	receiptService := service.NewReceiptService()
	sessions := service.NewSessionManager(
		catalog,
		settingsService,
		lockStore,
		cfg.Meter.LockTTL,
		service.SessionOptions{
			TickSource:   service.IntervalTicker(cfg.Meter.TickInterval),
			SampleBuffer: cfg.Meter.SampleBuffer,
			Events:       service.NewEventLogger(log, nrApp),
		},
		log,
	)

	// Initialize handlers.
	sessionHandler := handler.NewSessionHandler(sessions, settingsService, receiptService)
	settingsHandler := handler.NewSettingsHandler(settingsService)
	rateHandler := handler.NewRateHandler(catalog)

	router := app.NewRouter(app.RouterDeps{
		SessionHandler:  sessionHandler,
		SettingsHandler: settingsHandler,
		RateHandler:     rateHandler,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
		Logger:          log,
	})

	// The meter display is served from a different origin.
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Idempotent-Replayed"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      corsHandler(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, sessions, nil
}
