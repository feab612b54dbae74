package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/greenway/internal/adapters/geodata"
	"github.com/samirrijal/greenway/internal/adapters/http"
	natsadapter "github.com/samirrijal/greenway/internal/adapters/nats"
	"github.com/samirrijal/greenway/internal/adapters/postgres"
	"github.com/samirrijal/greenway/internal/adapters/valkey"
	"github.com/samirrijal/greenway/internal/core/ports"
	"github.com/samirrijal/greenway/internal/core/usecases"
	"github.com/samirrijal/greenway/internal/pkg/config"
	"github.com/samirrijal/greenway/internal/pkg/logging"
	"github.com/samirrijal/greenway/internal/pkg/metrics"
	"github.com/samirrijal/greenway/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("greenway-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("greenway-api", logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	// NATS
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
		nc = nil
	} else {
		defer nc.Close()
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Traffic light geodata
	lights := geodata.NewStore(cfg.Geofence.LightsFile)

	// Repos
	clickRepo := postgres.NewClickRepo(db)
	passRepo := postgres.NewPassRepo(db)
	rangeRepo := postgres.NewRangeRepo(db)

	// Use cases. Typed nils must not leak into the interfaces.
	var events ports.EventPublisher
	if nc != nil {
		events = nc
	}
	var cacheSvc ports.CacheService
	if cache != nil {
		cacheSvc = cache
	}

	geofenceSvc := usecases.NewGeofenceService(lights, cfg.Geofence.MaxDistanceMeters)
	clickSvc := usecases.NewClickService(clickRepo, geofenceSvc, events)
	aggSvc := usecases.NewAggregationService(passRepo, rangeRepo, events)
	rangeSvc := usecases.NewRangeService(rangeRepo, cacheSvc)

	deps := &http.Dependencies{
		Clicks:      clickSvc,
		Ranges:      rangeSvc,
		Aggregation: aggSvc,
		Lights:      lights,
		NATS:        natsConn,
		DB:          db,
		Cache:       cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "GreenWay API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Report pool stats alongside request metrics
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
