package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/avirajsharma-ops/DTPS-sub006/internal/activity"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/api/router"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/appointments"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/calendar"
	appconfig "github.com/avirajsharma-ops/DTPS-sub006/internal/config"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/meetings"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/notify"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/observability/metrics"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/push"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/realtime"
	"github.com/avirajsharma-ops/DTPS-sub006/internal/users"
	"github.com/avirajsharma-ops/DTPS-sub006/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting nutripractice booking API",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.AuthJWTSecret == "" {
		logger.Error("AUTH_JWT_SECRET is required")
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		os.Exit(1)
	}

	// Separate database/sql handle for the activity trail.
	activityDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open activity database", "error", err)
		os.Exit(1)
	}
	defer activityDB.Close()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, slot caching disabled", "error", err)
		redisClient = nil
	}

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)

	usersRepo := users.NewRepository(pool)
	apptRepo := appointments.NewRepository(pool)
	slotCache := appointments.NewSlotCache(redisClient, cfg.SlotCacheTTL, logger)
	slotCalc := appointments.NewSlotCalculator(usersRepo, apptRepo, cfg.DefaultWorkdayStart, cfg.DefaultWorkdayEnd, cfg.DefaultSlotMinutes)

	hub := realtime.NewHub(logger)

	orchestrator := appointments.NewOrchestrator(appointments.OrchestratorConfig{
		Store:       apptRepo,
		Meetings:    buildMeetingProvider(cfg, logger),
		Mailer:      notify.NewMailer(buildEmailSender(ctx, cfg, logger), cfg.SendGridFromName, logger),
		Calendar:    buildCalendarSyncer(cfg, logger),
		Activity:    activity.NewService(activityDB),
		Realtime:    hub,
		Push:        buildPushSender(cfg, logger),
		Timeout:     cfg.EnrichmentTimeout,
		TopicPrefix: cfg.MeetingTopicPrefix,
		Metrics:     bookingMetrics,
	}, logger)

	svc := appointments.NewService(apptRepo, usersRepo, orchestrator, slotCache, bookingMetrics, logger)
	apptHandler := appointments.NewHandler(svc, slotCalc, slotCache, bookingMetrics, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		AppointmentsHandler: apptHandler,
		RealtimeHandler:     hub.Handler(),
		MetricsHandler:      promhttp.Handler(),
		AuthJWTSecret:       cfg.AuthJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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
	fmt.Println("Server exited gracefully")
}

func buildMeetingProvider(cfg *appconfig.Config, logger *logging.Logger) meetings.LinkProvider {
	if cfg.MeetingLinkDisabled {
		return nil
	}
	if cfg.MeetingProvider == "zoom" {
		if client := meetings.NewZoomClient(meetings.ZoomConfig{
			AccountID:    cfg.ZoomAccountID,
			ClientID:     cfg.ZoomClientID,
			ClientSecret: cfg.ZoomClientSecret,
		}, logger, meetings.WithEndpoints("", cfg.ZoomBaseURL)); client != nil {
			return client
		}
		logger.Warn("zoom credentials missing, using stub meeting provider")
	}
	return meetings.NewStubLinkProvider(logger)
}

func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
		logger.Warn("sendgrid api key missing, using stub email sender")
	case "ses":
		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
		if cfg.AWSAccessKeyID != "" && cfg.AWSSecretKey != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, "")))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			logger.Warn("failed to load AWS config, using stub email sender", "error", err)
			break
		}
		if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger); sender != nil {
			return sender
		}
	}
	return notify.NewStubEmailSender(logger)
}

func buildCalendarSyncer(cfg *appconfig.Config, logger *logging.Logger) calendar.Syncer {
	if client := calendar.NewClient(cfg.CalendarBaseURL, cfg.CalendarAPIToken, logger); client != nil {
		return client
	}
	return calendar.NewStubSyncer(logger)
}

func buildPushSender(cfg *appconfig.Config, logger *logging.Logger) push.Sender {
	if client := push.NewGatewayClient(cfg.PushGatewayURL, cfg.PushAPIKey, logger); client != nil {
		return client
	}
	return push.NewStubSender(logger)
}
