package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/restaurant-voice/backend/internal/config"
	"github.com/restaurant-voice/backend/internal/db"
	"github.com/restaurant-voice/backend/internal/dialogue"
	httpapi "github.com/restaurant-voice/backend/internal/http"
	"github.com/restaurant-voice/backend/internal/http/handlers"
	"github.com/restaurant-voice/backend/internal/notify"
	"github.com/restaurant-voice/backend/internal/service"
	"github.com/restaurant-voice/backend/internal/session"
	"github.com/restaurant-voice/backend/internal/telemetry"
)

const serviceName = "restaurant-voice"

// storage is what every backend (postgres, sqlite, memory) provides.
type storage interface {
	service.ReservationStore
	handlers.Store
	session.CallRecorder
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := log.Level(level).With().Str("service", serviceName).Logger()

	p, err := cfg.RestaurantPolicy()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid restaurant policy")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer(serviceName, cfg.Env, os.Stdout, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init tracing")
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to open storage")
	}
	defer store.Close()

	var notifier notify.Notifier = notify.Nop{}
	if cfg.MQTTBrokerURL != "" {
		mq := notify.NewMQTTNotifier(notify.MQTTConfig{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, logger)
		if err := mq.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("mqtt unavailable, staff notifications disabled")
		} else {
			notifier = mq
		}
	}

	registry := service.NewIdempotencyRegistry()
	reservations := service.NewValidator(p, registry, cfg.DefaultCountryCode)
	bookings := service.NewBookingService(store, service.NewAvailabilityChecker(store, p), registry, notifier, logger)
	if n, err := bookings.RebuildRegistry(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to rebuild idempotency registry")
	} else {
		logger.Info().Int("fingerprints", n).Msg("idempotency registry rebuilt")
	}

	menu, err := service.LoadMenu(cfg.MenuPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.MenuPath).Msg("failed to load menu")
	}

	engine := dialogue.NewEngine(p, reservations, bookings, menu, dialogue.Config{
		RestaurantName: cfg.RestaurantName,
		CountryCode:    cfg.DefaultCountryCode,
		MaxRetries:     cfg.MaxSlotRetries,
	}, logger)

	sessions, err := openSessions(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open session store")
	}
	if c, ok := sessions.(interface{ Close() error }); ok {
		defer c.Close()
	}
	manager := session.NewManager(sessions, engine, store, logger)
	manager.Notifier = notifier

	router := httpapi.Router(cfg, httpapi.Deps{
		Store:        store,
		Bookings:     bookings,
		Reservations: reservations,
		Sessions:     manager,
		Menu:         menu,
		Policy:       p,
	}, logger)

	var handler http.Handler = router
	if cfg.TracingEnabled {
		handler = otelhttp.NewHandler(router, serviceName)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("storage", cfg.StorageDriver).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}

func openStorage(ctx context.Context, cfg config.Config, logger zerolog.Logger) (storage, error) {
	switch cfg.StorageDriver {
	case "postgres":
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return store, nil
	case "sqlite":
		store, err := db.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory", "":
		logger.Warn().Msg("using in-memory storage, reservations are lost on restart")
		return db.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

func openSessions(ctx context.Context, cfg config.Config, logger zerolog.Logger) (dialogue.SessionStore, error) {
	if cfg.RedisURL != "" {
		store, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.SessionTTL)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("addr", cfg.RedisURL).Msg("using redis session store")
		return store, nil
	}
	store := session.NewMemoryStore(cfg.SessionTTL)
	go store.StartCleanup(ctx, time.Minute)
	return store, nil
}
