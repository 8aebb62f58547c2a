package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	database "github.com/wayfarer-labs/wayfarer-api/app/db"
	appMiddleware "github.com/wayfarer-labs/wayfarer-api/app/middleware"
	"github.com/wayfarer-labs/wayfarer-api/app/tracer"
	"github.com/wayfarer-labs/wayfarer-api/config"
	"github.com/wayfarer-labs/wayfarer-api/internal/api/amap"
	"github.com/wayfarer-labs/wayfarer-api/internal/api/auth"
	generativeAI "github.com/wayfarer-labs/wayfarer-api/internal/api/generative_ai"
	"github.com/wayfarer-labs/wayfarer-api/internal/api/planner"
	"github.com/wayfarer-labs/wayfarer-api/internal/api/plans"
	"github.com/wayfarer-labs/wayfarer-api/internal/api/search"
	"github.com/wayfarer-labs/wayfarer-api/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails.
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}
	secrets := config.LoadSecrets()
	if secrets.JWTSecret != "" {
		appMiddleware.JwtSecretKey = []byte(secrets.JWTSecret)
	}

	logger := setupLogger(cfg.Mode)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracer.InitTracingAndMetrics(cfg.Handlers.Prometheus.Port)
	tracer.InitAppMetrics()

	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}
	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// Providers.
	mapClient := amap.NewClientImpl(
		cfg.Providers.Amap.BaseURL,
		cfg.Providers.Amap.OpenMeteo,
		secrets.AmapWebKey,
		cfg.Providers.Amap.CallTimeout,
		tracer.Get(),
		logger,
	)

	chatKey := secrets.DeepSeekAPIKey
	if cfg.Providers.Chat.Backend == "gemini" {
		chatKey = secrets.GeminiAPIKey
	}
	chatClient, err := generativeAI.NewChatClient(ctx, generativeAI.Options{
		Backend:     cfg.Providers.Chat.Backend,
		Model:       cfg.Providers.Chat.Model,
		BaseURL:     cfg.Providers.Chat.BaseURL,
		APIKey:      chatKey,
		Temperature: cfg.Providers.Chat.Temperature,
		MaxTokens:   cfg.Providers.Chat.MaxTokens,
		CallTimeout: cfg.Providers.Chat.CallTimeout,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize chat client", slog.Any("error", err))
		os.Exit(1)
	}

	imageResolver := search.NewServiceImpl(
		secrets.UnsplashKey,
		cfg.Providers.Search.BlockedDomains,
		cfg.Providers.Search.TrustedSuffix,
		cfg.Providers.Search.CallTimeout,
		cfg.Providers.Search.VerifyTimeout,
		mapClient,
		logger,
	)

	// Services and handlers.
	authRepo := auth.NewPostgresAuthRepo(pool, logger)
	authService := auth.NewAuthServiceImpl(authRepo, logger)
	authHandler := auth.NewHandlerImpl(authService, logger)

	plansRepo := plans.NewPostgresPlansRepo(pool, logger)
	plansService := plans.NewPlansServiceImpl(plansRepo, logger)
	plansHandler := plans.NewHandlerImpl(plansService, logger)

	plannerService := planner.NewServiceImpl(
		chatClient,
		mapClient,
		imageResolver,
		cfg.Planner.GatherConcurrency,
		nil,
		tracer.Get(),
		logger,
	)
	plannerHandler := planner.NewHandlerImpl(plannerService, chatClient, plansService, logger)

	mainRouter := router.SetupRouter(&router.Config{
		Logger:         logger,
		AuthHandler:    authHandler,
		PlansHandler:   plansHandler,
		PlannerHandler: plannerHandler,
	})

	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      mainRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received, starting graceful shutdown...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}
	logger.Info("Application shut down complete.")
}

// setupLogger configures the application logger for the given mode.
func setupLogger(mode string) *slog.Logger {
	var logger *slog.Logger
	if mode == "development" || mode == "" {
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		jsonOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
