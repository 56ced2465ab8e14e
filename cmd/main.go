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

	"github.com/Dosada05/club-ladder/config"
	"github.com/Dosada05/club-ladder/db"
	"github.com/Dosada05/club-ladder/events"
	"github.com/Dosada05/club-ladder/handlers"
	"github.com/Dosada05/club-ladder/repositories"
	api "github.com/Dosada05/club-ladder/routes"
	"github.com/Dosada05/club-ladder/scheduler"
	"github.com/Dosada05/club-ladder/services"
	"github.com/Dosada05/club-ladder/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.Bool("archive", cfg.ArchiveEnabled()))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx, dbConn)
	cancelMigrate()
	if err != nil {
		logger.Error("failed to apply schema", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database connection established")

	// Снимки сезонов перед удалением (Cloudflare R2), если настроено
	var archiver storage.SeasonArchiver
	if cfg.ArchiveEnabled() {
		uploader, err := storage.NewCloudflareR2Uploader(context.Background(), storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = storage.NewSeasonArchiver(uploader)
		logger.Info("season archive enabled", slog.String("bucket", cfg.R2BucketName))
	}

	// WebSocket hub получает события шины
	wsHub := events.NewHub(logger)
	bus := events.NewBus(logger)
	unsubscribe := bus.Subscribe(wsHub.Relay)

	seasonRepo := repositories.NewPostgresSeasonRepository(dbConn)
	playerRepo := repositories.NewPostgresSeasonPlayerRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	fixtureRepo := repositories.NewPostgresFixtureRepository(dbConn)
	resultRepo := repositories.NewPostgresResultRepository(dbConn)
	availabilityRepo := repositories.NewPostgresAvailabilityRepository(dbConn)
	historyRepo := repositories.NewPostgresRatingHistoryRepository(dbConn)
	trophyRepo := repositories.NewPostgresTrophyRepository(dbConn)

	clock := services.ClockFunc(time.Now)
	deps := services.Deps{
		DB:          dbConn,
		Logger:      logger,
		Publisher:   bus,
		Cache:       services.NewStandingsCache(cfg.CacheTTL, clock),
		Clock:       clock,
		CallTimeout: cfg.DBCallTimeout,
	}

	rankingService := services.NewRankingService(deps, seasonRepo, playerRepo, fixtureRepo, resultRepo)
	seasonService := services.NewSeasonService(deps, seasonRepo, playerRepo, matchRepo)
	matchService := services.NewMatchService(deps, seasonRepo, playerRepo, matchRepo, fixtureRepo, availabilityRepo)
	resultService := services.NewResultService(deps, seasonRepo, playerRepo, fixtureRepo, resultRepo, historyRepo, rankingService)
	deletionService := services.NewSeasonDeletionService(deps, services.DeletionRepositories{
		Seasons:       seasonRepo,
		Players:       playerRepo,
		Matches:       matchRepo,
		Fixtures:      fixtureRepo,
		Results:       resultRepo,
		Availability:  availabilityRepo,
		RatingHistory: historyRepo,
		Trophies:      trophyRepo,
	}, archiver)
	logger.Info("Services initialized")

	jobs, err := scheduler.New(cfg.StandingsCron, rankingService, time.Minute, logger)
	if err != nil {
		logger.Error("failed to configure scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	jobs.Start()

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.AllowedOrigins,
		handlers.NewSeasonHandler(seasonService, rankingService, deletionService),
		handlers.NewMatchHandler(matchService),
		handlers.NewResultHandler(resultService),
		handlers.NewWebSocketHandler(wsHub, logger),
	)
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		}
		jobs.Stop(shutdownCtx)
	}

	unsubscribe()
	wsHub.Close()
	logger.Info("application exited")
}
