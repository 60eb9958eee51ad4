package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/lanecrew/tournament-system/config"
	"github.com/lanecrew/tournament-system/db"
	"github.com/lanecrew/tournament-system/handlers"
	"github.com/lanecrew/tournament-system/live"
	"github.com/lanecrew/tournament-system/metrics"
	"github.com/lanecrew/tournament-system/middleware"
	"github.com/lanecrew/tournament-system/migrations"
	"github.com/lanecrew/tournament-system/repositories"
	api "github.com/lanecrew/tournament-system/routes"
	"github.com/lanecrew/tournament-system/scheduler"
	"github.com/lanecrew/tournament-system/services"
	"github.com/lanecrew/tournament-system/storage"
)

var skipMigrations bool

func init() {
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply database migrations on startup")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	if !skipMigrations {
		if err := migrations.Up(dbConn); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("database migrations applied")
	}

	// Файловое хранилище (Cloudflare R2), опционально
	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 storage is not configured, logo uploads are disabled")
	}

	// WebSocket hub для live-обновлений
	hub := live.NewHub(logger)
	go hub.Run()

	// Метрики Prometheus
	m := metrics.NewService()

	// Репозитории
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	squadRepo := repositories.NewPostgresSquadRepository(dbConn)
	stageRepo := repositories.NewPostgresStageRepository(dbConn)
	registrationRepo := repositories.NewPostgresRegistrationRepository(dbConn)
	reservationRepo := repositories.NewPostgresReservationRepository(dbConn)
	bowlerRepo := repositories.NewPostgresBowlerRepository(dbConn)

	// Почта, опционально
	var emailSender services.EmailSender
	if cfg.SMTPConfigured() {
		emailSender = services.NewEmailService(cfg)
		logger.Info("SMTP email sender initialized", slog.String("host", cfg.SMTPHost))
	} else {
		logger.Warn("SMTP is not configured, confirmation emails are disabled")
	}

	// Сервисы
	authService := services.NewAuthService(userRepo)
	availabilityService := services.NewAvailabilityService(tournamentRepo, squadRepo, registrationRepo, reservationRepo)
	reservationService := services.NewReservationService(
		dbConn, tournamentRepo, squadRepo, reservationRepo, availabilityService, hub, m, logger)
	registrationService := services.NewRegistrationService(
		dbConn, tournamentRepo, squadRepo, registrationRepo, reservationRepo, bowlerRepo,
		availabilityService, emailSender, hub, m, logger)
	tournamentService := services.NewTournamentService(
		dbConn, tournamentRepo, squadRepo, stageRepo, uploader, hub, logger)
	bowlerService := services.NewBowlerService(bowlerRepo)
	scoreService := services.NewScoreService(
		tournamentRepo, stageRepo, registrationRepo, bowlerService, hub, m, logger)
	advancementService := services.NewAdvancementService(
		dbConn, tournamentRepo, stageRepo, registrationRepo, hub, m, logger)

	// Фоновые задачи: автопереходы статусов и чистка истёкших холдов
	backgroundScheduler, err := scheduler.New(tournamentService, reservationRepo, m, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	backgroundScheduler.Start()
	defer func() {
		if err := backgroundScheduler.Shutdown(); err != nil {
			logger.Error("failed to shut down scheduler", slog.Any("error", err))
		}
	}()

	// HTTP-обработчики
	authenticator := middleware.NewAuthenticator([]byte(cfg.JWTSecretKey))
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer rateLimiter.Stop()
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Deps{
		Auth:          handlers.NewAuthHandler(authService, []byte(cfg.JWTSecretKey)),
		Tournaments:   handlers.NewTournamentHandler(tournamentService, availabilityService),
		Reservations:  handlers.NewReservationHandler(reservationService),
		Registrations: handlers.NewRegistrationHandler(registrationService),
		Scores:        handlers.NewScoreHandler(scoreService, advancementService),
		Bowlers:       handlers.NewBowlerHandler(bowlerService),
		WebSocket:     handlers.NewWebSocketHandler(hub, tournamentService, logger),

		Authenticator:  authenticator,
		RateLimiter:    rateLimiter,
		Observe:        middleware.Observe(m, logger),
		MetricsHandler: metrics.NewMetricsHandler(),

		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return err
		}
		logger.Info("server shutdown complete")
	}
	return nil
}
