package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	httpapi "github.com/croptrace/soil-analysis/internal/api/http"
	"github.com/croptrace/soil-analysis/internal/config"
	"github.com/croptrace/soil-analysis/internal/fetcher"
	"github.com/croptrace/soil-analysis/internal/scheduler"
	"github.com/croptrace/soil-analysis/internal/soil"
	"github.com/croptrace/soil-analysis/internal/soil/sources"
	"github.com/croptrace/soil-analysis/internal/store"
)

func main() {
	// Load configuration (reads .env when present).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := config.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	// Shared HTTP client for outbound source calls. The client timeout caps a
	// single attempt; the fetcher enforces the overall per-call ceiling.
	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}

	// Result store per configured driver.
	ctx := context.Background()
	var resultStore soil.Store
	switch cfg.StoreDriver {
	case "sqlite":
		resultStore, err = store.NewSQLite(ctx, cfg.StoreDSN)
	case "postgres":
		resultStore, err = store.NewPostgres(ctx, cfg.StoreDSN)
	case "memory", "":
		resultStore = store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	default:
		zlog.Fatal("unknown STORE_DRIVER", zap.String("driver", cfg.StoreDriver))
	}
	if err != nil {
		zlog.Fatal("failed to open store",
			zap.String("driver", cfg.StoreDriver),
			zap.Error(err))
	}
	defer resultStore.Close()

	fetchCfg := fetcher.Config{
		MaxAttempts: cfg.FetchMaxAttempts,
		BaseDelay:   cfg.FetchBaseDelay,
		Timeout:     cfg.SourceTimeout,
	}

	// The three upstream sources, each with its own resilience stack.
	weatherSrc := sources.NewOpenWeather(httpClient, sources.OpenWeatherConfig{
		APIKey: cfg.OpenWeatherAPIKey,
		Fetch:  fetchCfg,
	})
	atmosphericSrc := sources.NewNasaPower(httpClient, sources.NasaPowerConfig{
		APIKey: cfg.NASAPowerAPIKey,
		Fetch:  fetchCfg,
	})
	soilSrc := sources.NewSoilGrids(httpClient, sources.SoilGridsConfig{
		Fetch: fetchCfg,
	})

	analyzer := soil.NewAnalyzer(weatherSrc, atmosphericSrc, soilSrc, cfg.SourceTimeout)
	service := soil.NewService(analyzer, resultStore)

	// Scheduler that periodically re-analyzes configured sites.
	sched := scheduler.New(cfg.Sites, cfg.MonitorInterval, 0, service)
	if err := sched.Start(); err != nil {
		zlog.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	// Basic app configuration. The write timeout leaves room for an analysis
	// that rides out upstream retries.
	app := fiber.New(fiber.Config{
		AppName:               "soil-analysis",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "soil-analysis",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zlog.Error("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zlog.Error("error during shutdown", zap.Error(err))
	}
}
