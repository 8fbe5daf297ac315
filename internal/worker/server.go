package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/dimitrije/raidroom-api/internal/tasks"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const sweepBatchSize = 100

// Server runs the reconcile worker and the scheduler that feeds it.
type Server struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	client    *asynq.Client
	mux       *asynq.ServeMux
	interval  time.Duration
	log       *logrus.Entry
}

func NewServer(redisOpt asynq.RedisClientOpt, rooms Reconciler, concurrency int, interval time.Duration, logger *logrus.Logger) *Server {
	logEntry := logger.WithField("component", "worker")

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{"default": 1},
		Logger:      logEntry,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retryCount, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logEntry.WithFields(logrus.Fields{
				"task_type": task.Type(),
				"retries":   retryCount,
				"max_retry": maxRetry,
			}).WithError(err).Error("task failed")
		}),
	})

	client := asynq.NewClient(redisOpt)

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeRoomSweep, NewSweepHandler(rooms, client, sweepBatchSize, logEntry))
	mux.Handle(tasks.TypeRoomReconcile, NewReconcileHandler(rooms, logEntry))

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   logEntry,
	})

	return &Server{
		server:    server,
		scheduler: scheduler,
		client:    client,
		mux:       mux,
		interval:  interval,
		log:       logEntry,
	}
}

// Start registers the periodic sweep and starts processing. It does not block.
func (s *Server) Start() error {
	schedule := fmt.Sprintf("@every %s", s.interval)
	entryID, err := s.scheduler.Register(schedule, tasks.NewSweepTask(), asynq.Queue("default"))
	if err != nil {
		return fmt.Errorf("failed to register room sweep: %w", err)
	}
	s.log.WithFields(logrus.Fields{"schedule": schedule, "entry_id": entryID}).Info("room sweep registered")

	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	if err := s.server.Start(s.mux); err != nil {
		s.scheduler.Shutdown()
		return fmt.Errorf("failed to start worker: %w", err)
	}

	s.log.Info("worker started")
	return nil
}

func (s *Server) Shutdown() {
	s.log.Info("shutting down worker")
	s.scheduler.Shutdown()
	s.server.Shutdown()
	_ = s.client.Close()
}
