package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/dimitrije/raidroom-api/internal/cache"
	"github.com/dimitrije/raidroom-api/internal/config"
	"github.com/dimitrije/raidroom-api/internal/database"
	"github.com/dimitrije/raidroom-api/internal/events"
	"github.com/dimitrije/raidroom-api/internal/logging"
	"github.com/dimitrije/raidroom-api/internal/repository"
	"github.com/dimitrije/raidroom-api/internal/services"
	"github.com/redis/go-redis/v9"
)

// reconcile-rooms closes every invited room whose members have all reviewed.
// It is the one-shot form of the worker's periodic sweep.
func main() {
	limit := flag.Int("limit", 500, "maximum number of rooms to reconcile")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.IsProduction())
	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	var snapshots services.SnapshotCache = cache.Noop{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		snapshots = cache.NewRoomCache(rdb, cfg.Redis.SnapshotCacheTTL)
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.RabbitMQ.URL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	roomService := services.NewRoomService(repository.NewRoomRepository(db), snapshots, publisher, logger)

	ids, err := roomService.ReconcileCandidates(ctx, *limit)
	if err != nil {
		log.Fatalf("Failed to list rooms: %v", err)
	}

	closed, failed := 0, 0
	for _, id := range ids {
		_, didClose, err := roomService.Reconcile(ctx, id)
		if err != nil {
			logger.WithError(err).WithField("room_id", id).Error("reconcile failed")
			failed++
			continue
		}
		if didClose {
			closed++
		}
	}

	fmt.Printf("Checked %d rooms: %d closed, %d failed\n", len(ids), closed, failed)
}
