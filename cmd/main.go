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
	_ "github.com/lib/pq"

	"github.com/Dosada05/bracket-engine/brackets"
	"github.com/Dosada05/bracket-engine/config"
	"github.com/Dosada05/bracket-engine/db"
	"github.com/Dosada05/bracket-engine/handlers"
	"github.com/Dosada05/bracket-engine/integration"
	"github.com/Dosada05/bracket-engine/repositories"
	api "github.com/Dosada05/bracket-engine/routes"
	"github.com/Dosada05/bracket-engine/services"
	"github.com/Dosada05/bracket-engine/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
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
	logger.Info("database connection established")

	// Архив снапшотов (Cloudflare R2), если сконфигурирован
	var snapshotStore storage.SnapshotStore
	if cfg.R2Enabled() {
		snapshotStore, err = storage.NewCloudflareR2Store(storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 snapshot store", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 snapshot store initialized")
	} else {
		logger.Info("snapshot archival disabled")
	}

	// Зеркалирование результатов на внешнюю платформу, если сконфигурировано
	var scoreReporter integration.ScoreReporter
	if cfg.ReporterEnabled() {
		scoreReporter, err = integration.NewHTTPReporter(integration.HTTPReporterConfig{
			BaseURL:  cfg.ReporterBaseURL,
			APIToken: cfg.ReporterAPIToken,
			Timeout:  cfg.ReporterTimeout,
		})
		if err != nil {
			logger.Error("failed to initialize score reporter", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("score reporter initialized", slog.String("base_url", cfg.ReporterBaseURL))
	} else {
		logger.Info("external score mirroring disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	phaseRepo := repositories.NewPostgresPhaseRepository(dbConn)
	seedingRepo := repositories.NewPostgresSeedingRepository(dbConn)
	setRepo := repositories.NewPostgresSetRepository(dbConn)
	entrantRepo := repositories.NewPostgresEntrantRepository(dbConn)
	leaseRepo := repositories.NewPostgresLeaseRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	seedingService := services.NewSeedingService(phaseRepo, seedingRepo, entrantRepo)
	bracketService := services.NewBracketService(dbConn, phaseRepo, seedingRepo, setRepo, logger)
	setService := services.NewSetService(dbConn, phaseRepo, setRepo, scoreReporter, logger)
	phaseService := services.NewPhaseService(
		phaseRepo,
		seedingRepo,
		setRepo,
		leaseRepo,
		bracketService,
		setService,
		wsHub,
		snapshotStore,
		logger,
	)
	logger.Info("Services initialized")

	// Инициализация обработчиков HTTP
	phaseHandler := handlers.NewPhaseHandler(phaseService, seedingService)
	setHandler := handlers.NewSetHandler(phaseService, setService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, logger)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, phaseHandler, setHandler, webSocketHandler, []byte(cfg.JWTSecretKey))
	logger.Info("Routes configured")

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
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
