package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimitrije/raidroom-api/internal/cache"
	"github.com/dimitrije/raidroom-api/internal/config"
	"github.com/dimitrije/raidroom-api/internal/database"
	"github.com/dimitrije/raidroom-api/internal/events"
	"github.com/dimitrije/raidroom-api/internal/handlers"
	"github.com/dimitrije/raidroom-api/internal/logging"
	authmw "github.com/dimitrije/raidroom-api/internal/middleware"
	"github.com/dimitrije/raidroom-api/internal/repository"
	"github.com/dimitrije/raidroom-api/internal/services"
	"github.com/dimitrije/raidroom-api/internal/worker"
	"github.com/hibiken/asynq"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.IsProduction())

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatalf("Failed to load timezone: %v", err)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	var snapshots services.SnapshotCache = cache.Noop{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable, snapshot cache will retry per request")
		}
		snapshots = cache.NewRoomCache(rdb, cfg.Redis.SnapshotCacheTTL)
	} else {
		logger.Info("REDIS_ADDR not set, snapshot cache and sweep worker disabled")
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.RabbitMQ.URL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	} else {
		logger.Info("RABBITMQ_URL not set, room events will not be published")
	}

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessExpiry)
	roomService := services.NewRoomService(repository.NewRoomRepository(db), snapshots, publisher, logger)

	roomHandler := handlers.NewRoomHandler(roomService, loc, logger)
	healthHandler := handlers.NewHealthHandler(db)
	limiter := authmw.NewRateLimiter(cfg.Poll.Rate, cfg.Poll.Burst)

	app := drift.New()

	if cfg.IsProduction() {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())

	api := app.Group("/api/v1")

	protected := api.Group("")
	protected.Use(authmw.Auth(jwtService))
	protected.Use(limiter.Middleware())

	protected.Get("/rooms", roomHandler.List)
	protected.Post("/rooms", roomHandler.Create)
	protected.Get("/rooms/:roomId", roomHandler.Get)
	protected.Post("/rooms/:roomId/join", roomHandler.Join)
	protected.Post("/rooms/:roomId/leave", roomHandler.Leave)
	protected.Post("/rooms/:roomId/ready", roomHandler.SetReady)
	protected.Post("/rooms/:roomId/invite", roomHandler.Invite)
	protected.Post("/rooms/:roomId/cancel", roomHandler.Cancel)
	protected.Post("/rooms/:roomId/close", roomHandler.Close)
	protected.Post("/rooms/:roomId/reviews", roomHandler.Review)

	api.Get("/health", healthHandler.Check)

	var sweeper *worker.Server
	if cfg.Redis.Addr != "" {
		sweeper = worker.NewServer(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, roomService, cfg.Worker.Concurrency, cfg.Worker.SweepInterval, logger)
		if err := sweeper.Start(); err != nil {
			logger.Fatalf("Failed to start sweep worker: %v", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	if sweeper != nil {
		sweeper.Shutdown()
	}
}
