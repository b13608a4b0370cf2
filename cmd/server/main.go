package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/enrolment-backend/internal/cache"
	"github.com/stemsi/enrolment-backend/internal/config"
	"github.com/stemsi/enrolment-backend/internal/database"
	"github.com/stemsi/enrolment-backend/internal/gateway"
	"github.com/stemsi/enrolment-backend/internal/handler"
	"github.com/stemsi/enrolment-backend/internal/logger"
	"github.com/stemsi/enrolment-backend/internal/middleware"
	"github.com/stemsi/enrolment-backend/internal/notify"
	"github.com/stemsi/enrolment-backend/internal/repository"
	"github.com/stemsi/enrolment-backend/internal/router"
	"github.com/stemsi/enrolment-backend/internal/service"
	"github.com/stemsi/enrolment-backend/internal/validator"
	"github.com/stemsi/enrolment-backend/internal/worker"
	"golang.org/x/sync/errgroup"
)

const paperCacheTTL = 24 * time.Hour

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("paypal_base_url", cfg.PayPal.BaseURL).
		Msg("Starting Enrolment Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Apply Migrations ──────────────────────────────────────────────
	if cfg.AutoMigrate {
		if err := database.MigrateUp(cfg.DatabaseURL, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	accountRepo := repository.NewAccountRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	paymentEventRepo := repository.NewPaymentEventRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// ─── Initialize Redis-backed Stores ────────────────────────────────
	revocations := cache.NewRevocationStore(rdb, cfg.JWTExpiry)
	eventQueue := cache.NewEventQueue(rdb)
	paperCache := cache.NewPaperCache(rdb, paperCacheTTL)

	// ─── Payment Gateway ───────────────────────────────────────────────
	paypal, err := gateway.New(gateway.Config{
		BaseURL:      cfg.PayPal.BaseURL,
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		Timeout:      cfg.PayPal.Timeout,
		ReturnURL:    cfg.PayPal.FrontendURL + "/payment-success",
		CancelURL:    cfg.PayPal.FrontendURL + "/payment-cancelled",
		BrandName:    cfg.PayPal.BrandName,
		Description:  "Registration fee",
	}, cache.NewGatewayTokenCache(rdb, cfg.PayPal.ClientID), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure payment gateway")
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, accountRepo, revocations, log)
	accountService := service.NewAccountService(accountRepo, authService, log)
	registrationService := service.NewRegistrationService(
		accountRepo, paypal, authService, eventQueue,
		notify.NewMailer(cfg.Mail, log), cfg.Registration, log,
	)
	examService := service.NewExamService(examRepo, questionRepo, accountRepo, paperCache, log)
	questionService := service.NewQuestionService(questionRepo, examService)
	dashboardService := service.NewDashboardService(dashboardRepo)

	// ─── Seed Superadmin ───────────────────────────────────────────────
	if cfg.SeedSuperadminEmail != "" {
		created, err := accountService.EnsureSuperadmin(ctx, cfg.SeedSuperadminEmail, cfg.SeedSuperadminPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed superadmin")
		}
		if !created {
			log.Debug().Msg("Superadmin already present, seeding skipped")
		}
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, accountService),
		Student:       handler.NewStudentHandler(registrationService, accountService),
		Exam:          handler.NewExamHandler(examService),
		Question:      handler.NewQuestionHandler(questionService),
		PaymentEvents: handler.NewPaymentEventHandler(paymentEventRepo),
		System:        handler.NewSystemHandler(pool, rdb, log),
		Dashboard:     handler.NewDashboardHandler(dashboardService),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workers, workerCtx := errgroup.WithContext(workerCtx)

	eventWorker := worker.NewPaymentEventWorker(eventQueue, paymentEventRepo, log)
	workers.Go(func() error {
		eventWorker.Start(workerCtx)
		return nil
	})

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Published papers go into Redis before the server accepts traffic.
	if err := examService.PrewarmPapers(ctx); err != nil {
		log.Warn().Err(err).Msg("Paper prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	limiter := middleware.NewRateLimiter(cache.NewRateCounter(rdb), cfg.RateLimitPerMinute, time.Minute, log)
	r := router.SetupRouter(authService, limiter, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests and let in-flight captures finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracePeriod())
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for their final flush.
	workerCancel()
	if err := workers.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
