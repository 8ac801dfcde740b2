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

	"github.com/bracketlab/bracket-engine/brackets"
	"github.com/bracketlab/bracket-engine/config"
	"github.com/bracketlab/bracket-engine/db"
	"github.com/bracketlab/bracket-engine/handlers"
	"github.com/bracketlab/bracket-engine/repositories"
	api "github.com/bracketlab/bracket-engine/routes"
	"github.com/bracketlab/bracket-engine/services"
	"github.com/bracketlab/bracket-engine/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

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

	// Внешнее хранилище снапшотов (опционально)
	var snapshotStore storage.ObjectStore
	if cfg.R2Configured() {
		snapshotStore, err = storage.NewCloudflareR2Store(cfg.R2)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 store", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 store initialized")
	} else {
		logger.Info("snapshot export disabled: R2 is not configured")
	}

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	txManager := repositories.NewTxManager(dbConn)
	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	templateRepo := repositories.NewPostgresBracketTemplateRepository(dbConn)
	bracketRepo := repositories.NewPostgresBracketRepository(dbConn)
	entryRepo := repositories.NewPostgresBracketEntryRepository(dbConn)
	gameRepo := repositories.NewPostgresBracketGameRepository(dbConn)
	seedingRepo := repositories.NewPostgresSeedingScoreRepository(dbConn)
	submissionRepo := repositories.NewPostgresSubmissionRepository(dbConn)
	queueRepo := repositories.NewPostgresGameQueueRepository(dbConn)
	auditRepo := repositories.NewPostgresAuditLogRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	bracketService := services.NewBracketService(
		txManager,
		eventRepo,
		teamRepo,
		templateRepo,
		bracketRepo,
		entryRepo,
		gameRepo,
		queueRepo,
		auditRepo,
		wsHub,
		logger,
	)
	scoreService := services.NewScoreService(
		txManager,
		submissionRepo,
		seedingRepo,
		gameRepo,
		bracketRepo,
		queueRepo,
		auditRepo,
		bracketService,
		wsHub,
		logger,
	)
	revertService := services.NewRevertService(
		txManager,
		submissionRepo,
		seedingRepo,
		gameRepo,
		bracketRepo,
		queueRepo,
		auditRepo,
		wsHub,
		logger,
	)
	queueService := services.NewQueueService(eventRepo, queueRepo)
	eventService := services.NewEventService(
		txManager,
		eventRepo,
		teamRepo,
		gameRepo,
		bracketRepo,
		submissionRepo,
		seedingRepo,
		queueRepo,
		auditRepo,
		logger,
	)

	var exportService services.ExportService
	if snapshotStore != nil {
		exportService = services.NewExportService(bracketRepo, entryRepo, gameRepo, snapshotStore, logger)
	}
	logger.Info("Services initialized")

	// Фоновый проход резолвера по активным сеткам: подбирает работу,
	// не доделанную после коммита (процесс упал между коммитом и
	// пост-обработкой).
	go func() {
		ticker := time.NewTicker(cfg.ResolveInterval)
		defer ticker.Stop()
		logger.Info("bracket resolve scheduler started", slog.Duration("interval", cfg.ResolveInterval))

		if err := bracketService.ResolveActiveBrackets(context.Background()); err != nil {
			logger.Error("scheduler: initial resolve pass failed", slog.Any("error", err))
		}

		for range ticker.C {
			if err := bracketService.ResolveActiveBrackets(context.Background()); err != nil {
				logger.Error("scheduler: resolve pass failed", slog.Any("error", err))
			}
		}
	}()

	// Инициализация обработчиков HTTP
	eventHandler := handlers.NewEventHandler(eventService)
	bracketHandler := handlers.NewBracketHandler(bracketService, exportService)
	scoreHandler := handlers.NewScoreHandler(scoreService, revertService)
	queueHandler := handlers.NewQueueHandler(queueService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, queueService)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		eventHandler,
		bracketHandler,
		scoreHandler,
		queueHandler,
		webSocketHandler,
	)
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
