package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pixelcraft/concierge/cmd/mainconfig"
	"github.com/pixelcraft/concierge/internal/api/router"
	"github.com/pixelcraft/concierge/internal/appointments"
	"github.com/pixelcraft/concierge/internal/booking"
	"github.com/pixelcraft/concierge/internal/chat"
	appconfig "github.com/pixelcraft/concierge/internal/config"
	"github.com/pixelcraft/concierge/internal/http/handlers"
	"github.com/pixelcraft/concierge/internal/notify"
	"github.com/pixelcraft/concierge/internal/observability/metrics"
	"github.com/pixelcraft/concierge/internal/schedule"
	"github.com/pixelcraft/concierge/internal/webchat"
	"github.com/pixelcraft/concierge/pkg/logging"
	"github.com/pixelcraft/concierge/web"
)

func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting concierge API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := connectRedis(ctx, cfg, logger)
	defer func() { _ = redisClient.Close() }()

	// Stores.
	settingsStore := schedule.NewCachedSettingsStore(schedule.NewPostgresSettingsStore(pool), redisClient, logger)
	blockedStore := schedule.NewPostgresBlockedSlotStore(pool)
	apptStore := appointments.NewPostgresStore(pool)
	sessionStore := booking.NewRedisSessionStore(redisClient, nil)
	historyStore := chat.NewHistoryStore(redisClient, nil)

	// Notifications.
	sender := setupEmailSender(ctx, cfg, logger)
	notifier := notify.NewService(sender, cfg.OwnerEmail, logger)

	// Metrics.
	metricsHandler, bookingMetrics, chatMetrics := setupMetrics()

	flow := booking.NewFlow(booking.FlowConfig{
		Sessions:     sessionStore,
		Settings:     settingsStore,
		BlockedSlots: blockedStore,
		Appointments: apptStore,
		Notifier:     notifier,
		Metrics:      bookingMetrics,
		Logger:       logger,
	})

	gateway := chat.NewGatewayClient(cfg.ChatGatewayURL, cfg.ChatGatewayAPIKey, cfg.ChatModel, cfg.ChatRequestTimeout)
	chatService := chat.NewService(gateway, historyStore, flow, chatMetrics, logger)

	routerCfg := &router.Config{
		Logger:          logger,
		ChatHandler:     chat.NewHandler(chatService, logger),
		WebchatHandler:  webchat.NewHandler(chatService, historyStore, web.WidgetJS, logger),
		ScheduleHandler: schedule.NewHandler(settingsStore, blockedStore, logger),
		Availability:    handlers.NewAvailabilityHandler(settingsStore, blockedStore, apptStore, logger),
		Appointments:    handlers.NewAppointmentsHandler(apptStore, settingsStore, notifier, logger),
		MetricsHandler:  metricsHandler,

		AdminJWTSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSec:    cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// No write timeout: chat responses stream over long-lived
		// connections and must outlive a fixed deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// connectPostgresPool returns nil when no URL is configured so callers can
// decide whether the database is mandatory.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres not reachable", "error", err)
		os.Exit(1)
	}
	return pool
}

func connectRedis(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("redis not reachable", "error", err, "addr", cfg.RedisAddr)
		os.Exit(1)
	}
	return client
}

// setupEmailSender picks the configured provider, falling back to the logging
// stub so local development never needs real credentials.
func setupEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			return s
		}
		logger.Warn("sendgrid selected but not configured, using stub sender")
	case "ses":
		if cfg.SESFromEmail == "" {
			logger.Warn("ses selected but SES_FROM_EMAIL is unset, using stub sender")
			break
		}
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}
	return notify.NewStubEmailSender(logger)
}

func setupMetrics() (http.Handler, *metrics.BookingMetrics, *metrics.ChatMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return handler, metrics.NewBookingMetrics(reg), metrics.NewChatMetrics(reg)
}
