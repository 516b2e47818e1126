package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/auth"
	"github.com/ukydev/fleetmasterpro/internal/config"
	"github.com/ukydev/fleetmasterpro/internal/db"
	"github.com/ukydev/fleetmasterpro/internal/events"
	"github.com/ukydev/fleetmasterpro/internal/fleet"
	"github.com/ukydev/fleetmasterpro/internal/handlers"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid config")
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, nil); err != nil {
		logger.WithError(err).Fatal("Server stopped")
	}
	logger.Info("Server stopped")
}

// run serves the API until ctx is cancelled. ready, when not nil, receives
// the bound address once the listener is open.
func run(ctx context.Context, cfg *config.Config, logger log.FieldLogger, ready chan<- string) error {
	bus := events.NewBus()

	store, err := openStore(ctx, cfg, logger, bus)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.WithError(err).Warn("Failed to close storage")
		}
	}()

	if cfg.MQTTBroker != "" {
		client, err := events.ConnectMQTT(cfg.MQTTBroker, "fleetmasterpro-"+uuid.NewString()[:8])
		if err != nil {
			logger.WithError(err).Warn("MQTT unavailable, events stay in-process")
		} else {
			sink := events.NewMQTTSink(client, cfg.MQTTTopicPrefix, logger)
			unsubscribe := bus.Subscribe(sink.Handle)
			defer func() {
				unsubscribe()
				client.Disconnect(250)
			}()
			logger.WithField("broker", cfg.MQTTBroker).Info("Publishing events to MQTT")
		}
	}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		return err
	}

	regulations := fleet.NewRegulationService(store, catalog, logger)
	plans := fleet.NewPlanBuilder(store, regulations, bus, logger)
	reconciler := fleet.NewReconciler(store, logger)

	if _, err := reconciler.Reconcile(ctx); err != nil {
		logger.WithError(err).Warn("Startup reconciliation failed")
	}

	sessions := fleet.NewEditorSessions(plans, cfg.AutosaveInterval, logger)
	defer sessions.CloseAll()

	router := handlers.NewRouter(handlers.Dependencies{
		Store:       store,
		Backend:     cfg.StorageBackend,
		Auth:        authService,
		Cars:        fleet.NewCarService(store, logger),
		Alerts:      fleet.NewAlertManager(store, bus, logger),
		Plans:       plans,
		Sessions:    sessions,
		Status:      fleet.NewStatusCalculator(store, logger),
		Records:     fleet.NewServiceRecordService(store, logger),
		Shops:       fleet.NewShopService(store, logger),
		Regulations: regulations,
		Reconciler:  reconciler,
		Logger:      logger,
		MainAppURL:  cfg.MainAppURL,
		RateLimit:   cfg.RateLimit,
	})

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.WithFields(log.Fields{
		"addr":    ln.Addr().String(),
		"storage": cfg.StorageBackend,
		"env":     cfg.Env,
	}).Info("HTTP server listening")
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// openStore opens the storage provider selected by the config.
func openStore(ctx context.Context, cfg *config.Config, logger log.FieldLogger, publisher events.Publisher) (db.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendLocal:
		store, err := db.NewLocalStore(cfg.BoltPath,
			db.WithLogger(logger),
			db.WithResetHook(func(key string) {
				publisher.Publish(events.Event{Type: events.StorageReset, EntityID: key})
			}),
		)
		if err != nil {
			return nil, err
		}
		logger.WithField("path", cfg.BoltPath).Info("Using local storage")
		return store, nil

	case config.BackendRemote:
		client, err := db.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		store := db.NewMongoStore(client, cfg.MongoDB, cfg.MongoTransactions)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, err
		}
		logger.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// loadCatalog returns the regulation catalog file named in the config, or
// the built-in one.
func loadCatalog(cfg *config.Config) ([]models.Regulation, error) {
	if cfg.RegulationsPath == "" {
		return fleet.DefaultRegulations(), nil
	}
	return fleet.LoadCatalogFile(cfg.RegulationsPath)
}
