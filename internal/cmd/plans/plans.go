// Package plans parses plans service flags and launches the service.
package plans

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	entrypoint "github.com/plansocial/plans/internal/platform/cmd"
	api "github.com/plansocial/plans/internal/services/plans/api/http"
	"github.com/plansocial/plans/internal/services/plans/app"
	"github.com/plansocial/plans/internal/services/plans/domain"
	"github.com/plansocial/plans/internal/services/plans/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

// Config holds plans command configuration.
type Config struct {
	Port      int    `env:"PLANS_PORT" envDefault:"8080"`
	DBPath    string `env:"PLANS_DB_PATH" envDefault:"plans.db"`
	JWTSecret string `env:"PLANS_JWT_SECRET"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The plans HTTP server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path to the plans SQLite database")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the plans HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePlans, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return fmt.Errorf("PLANS_JWT_SECRET is required")
	}

	logger := slog.Default()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	adapter := app.NewStoreAdapter(store, nil)
	connectivity := app.NewConnectivity()

	prober := app.NewProber(store.Ping, connectivity, logger)
	stopProber := prober.Start(ctx)
	defer stopProber()

	events := domain.NewEventService(adapter, nil, nil)
	notifications := domain.NewNotificationService(adapter, nil, nil)
	profiles := domain.NewProfileService(adapter, nil, nil)
	membership := domain.NewMembershipService(adapter, adapter, notifications, logger)

	queue := app.NewOperationQueue(store, app.NewMembershipExecutor(membership), connectivity, logger, nil)
	stopQueue := queue.Start(ctx)
	defer stopQueue()

	broker := app.NewBroker(api.NewFetcher(events, notifications, profiles), store, connectivity, logger)
	broker.Start()
	defer broker.Stop()

	server := api.NewServer(api.Options{
		Events:        events,
		Membership:    membership,
		Notifications: notifications,
		Profiles:      profiles,
		Queue:         queue,
		Broker:        broker,
		JWTSecret:     []byte(cfg.JWTSecret),
		Logger:        logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	logger.Info("plans service listening", "port", cfg.Port, "db", cfg.DBPath)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
