package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salonbook/internal/api"
	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/logging"
	"salonbook/internal/metrics"
	"salonbook/internal/recaptcha"
	"salonbook/internal/repository"
	"salonbook/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	quota := initQuota(cfg, logger)
	captcha := recaptcha.New(cfg.Recaptcha, *logger)
	eventBus := initEventBus(logger)

	scheduleSvc := service.NewScheduleService(db, db, eventBus, domain.RealClock{}, cfg.Booking.SameDayLeadMinutes, logger)
	bookingSvc := service.NewBookingService(db, scheduleSvc, quota, captcha, eventBus, domain.RealClock{}, logger).
		WithLimits(cfg.Booking.MaxPerIP, cfg.Booking.WindowSeconds, cfg.Booking.MaxPendingPerPhone, cfg.Recaptcha.MinScore)

	httpServer := api.NewHTTPServer(cfg.Server, scheduleSvc, bookingSvc, db, *logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, logger)
	go backup.Start(ctx)

	startMetrics(ctx, cfg, logger)

	return serve(ctx, httpServer, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, &logger, closer, nil
}

// initQuota picks the admission-quota backend: Redis behind a memory
// failover when an address is configured, plain memory otherwise.
func initQuota(cfg *config.Config, logger *zerolog.Logger) domain.QuotaRepository {
	memory := repository.NewMemoryQuotaRepository(domain.RealClock{})

	if cfg.Redis.Address == "" {
		logger.Info().Msg("no redis configured, using in-memory booking quota")
		return memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, falling back to in-memory booking quota")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	return repository.NewFailoverQuotaRepository(repository.NewRedisQuotaRepository(client), memory, logger)
}

// initEventBus wires the in-process subscribers: admission metrics and
// an audit log line per booking event.
func initEventBus(logger *zerolog.Logger) *events.EventBus {
	bus := events.NewEventBus()
	auditLogger := logger.With().Str("component", "audit").Logger()

	bookingEvents := []string{
		events.EventBookingCreated,
		events.EventBookingConfirmed,
		events.EventBookingCancelled,
		events.EventBookingCompleted,
		events.EventBookingDeleted,
		events.EventBookingRejected,
	}
	for _, eventType := range bookingEvents {
		bus.Subscribe(eventType, func(e *events.Event) error {
			var payload events.BookingEventPayload
			if err := json.Unmarshal(e.Payload, &payload); err != nil {
				return err
			}
			if payload.Outcome != "" {
				metrics.IncAdmission(payload.Outcome)
			}
			auditLogger.Info().
				Str("event", e.Type).
				Str("booking_id", payload.BookingID).
				Str("date", payload.Date).
				Str("slot", payload.SlotLabel).
				Str("outcome", payload.Outcome).
				Msg("booking event")
			return nil
		})
	}

	scheduleEvents := []string{
		events.EventScheduleUpdated,
		events.EventOverrideUpserted,
		events.EventOverrideDeleted,
	}
	for _, eventType := range scheduleEvents {
		bus.Subscribe(eventType, func(e *events.Event) error {
			auditLogger.Info().Str("event", e.Type).RawJSON("payload", e.Payload).Msg("schedule event")
			return nil
		})
	}

	return bus
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func serve(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}

	logger.Info().Msg("server stopped")
	return nil
}
