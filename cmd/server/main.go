package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"eventcheckin/config"
	_ "eventcheckin/docs"
	"eventcheckin/internal/adapters/auth"
	"eventcheckin/internal/adapters/broker"
	"eventcheckin/internal/adapters/email"
	"eventcheckin/internal/adapters/qrcode"
	"eventcheckin/internal/clock"
	httpDelivery "eventcheckin/internal/delivery/http"
	"eventcheckin/internal/delivery/http/controllers"
	"eventcheckin/internal/delivery/http/middleware"
	"eventcheckin/internal/domain"
	"eventcheckin/internal/queue"
	"eventcheckin/internal/repository/memory"
	"eventcheckin/internal/repository/postgres"
	"eventcheckin/internal/services"
	"eventcheckin/internal/worker"
)

const (
	memoryQueueCapacity = 1024
	rateLimitSweepEvery = time.Minute
	shutdownTimeout     = 10 * time.Second
)

// @title           Event Check-in API
// @version         1.0
// @description     Event registration, organizer review and QR check-in.
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Organizer token. Format: Bearer {token}
func main() {
	logger := config.NewLogger()
	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.NewSystem()

	eventRepo, registrationRepo, closeStore, err := openStore(ctx, cfg, clk, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	codec, err := auth.NewTicketCodec(cfg.QRTokenSecret, cfg.QRTokenTTL, clk)
	if err != nil {
		return fmt.Errorf("ticket codec: %w", err)
	}
	encoder := qrcode.NewEncoder(qrcode.DefaultSize)

	notifications, closeQueue, err := openQueue(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeQueue()

	var publisher domain.EventPublisher = broker.NewNoopPublisher(logger)
	if cfg.RabbitMQURL != "" {
		amqpPublisher, err := broker.NewAMQPPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.EmailProvider,
		FromAddress: cfg.EmailFromAddress,
		FromName:    cfg.EmailFromName,
		SES: email.SESConfig{
			Region:             cfg.AWSRegion,
			AccessKeyID:        cfg.AWSAccessKeyID,
			SecretAccessKey:    cfg.AWSSecretAccessKey,
			InsecureSkipVerify: cfg.SESInsecureSkipVerify,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	emailService := services.NewEmailService(mailer, email.NewTemplateRenderer(), logger)

	registrationService := services.NewRegistrationService(
		eventRepo, registrationRepo, codec, encoder, notifications, publisher, clk, logger,
	)
	attendanceService := services.NewAttendanceService(eventRepo, registrationRepo)

	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	notificationWorker := worker.NewNotificationWorker(registrationRepo, eventRepo, emailService, notifications, logger)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		notificationWorker.Run(workerCtx)
	}()

	limiter := middleware.NewRateLimiter(cfg.SubmitRateLimitRPS, cfg.SubmitRateLimitBurst)
	go sweepLimiter(workerCtx, limiter)

	mux := httpDelivery.NewRouter(httpDelivery.RouterDeps{
		Logger:       logger,
		Verifier:     auth.NewJWTVerifier(cfg.AdminJWTSecret),
		Registration: controllers.NewRegistrationController(logger, registrationService),
		Attendance:   controllers.NewAttendanceController(logger, attendanceService),
		SubmitLimit:  limiter,
	})
	handler := middleware.CORS(cfg.AllowedOrigins, middleware.LoggingMiddleware(logger, mux))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "store", cfg.Store, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	workerCancel()
	<-workerDone
	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger) (domain.EventRepository, domain.RegistrationRepository, func(), error) {
	if cfg.Store == config.StoreMemory {
		events := memory.NewEventRepository()
		demo := demoEvent(clk.Now())
		events.Put(demo)
		logger.Warn("using in-memory store; data is lost on restart", "demo_event_id", demo.ID)
		return events, memory.NewRegistrationRepository(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("ping database: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	logger.Info("connected to database")
	return postgres.NewEventRepository(db), postgres.NewRegistrationRepository(db), func() { db.Close() }, nil
}

func openQueue(ctx context.Context, cfg *config.Config, logger *slog.Logger) (queue.Queue, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info("using in-process notification queue")
		return queue.NewMemoryQueue(memoryQueueCapacity, logger), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("redis connected", "addr", cfg.RedisAddr)
	return queue.NewRedisQueue(client, logger), func() { client.Close() }, nil
}

func sweepLimiter(ctx context.Context, rl *middleware.RateLimiter) {
	ticker := time.NewTicker(rateLimitSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}

// demoEvent is a published event with an open registration window, so the
// memory store is usable without a database.
func demoEvent(now time.Time) *domain.Event {
	deadline := now.Add(30 * 24 * time.Hour)
	return &domain.Event{
		ID:                   uuid.NewString(),
		Title:                "Demo Event",
		Description:          "Seeded by the in-memory store.",
		Location:             "Online",
		Status:               domain.EventStatusPublished,
		StartDate:            deadline.Add(24 * time.Hour),
		EndDate:              deadline.Add(26 * time.Hour),
		RegistrationDeadline: &deadline,
		CreatedAt:            now,
	}
}
