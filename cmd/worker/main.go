package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/taskhub/taskhub-api/internal/app"
	"github.com/taskhub/taskhub-api/internal/config"
	"github.com/taskhub/taskhub-api/internal/jobs"
	"github.com/taskhub/taskhub-api/internal/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().Str("env", cfg.Env).Msg("Starting TaskHub worker")

	if cfg.RedisURL == "" {
		log.Fatal().Msg("REDIS_URL is required by the worker")
	}
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid REDIS_URL")
	}

	a, err := app.New(context.Background(), cfg, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start")
	}
	defer a.Close()

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      jobs.Queues(),
		Logger:      asynqLogger{},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Error().
				Err(err).
				Str("task", task.Type()).
				Int("retry", retried).
				Int("max_retry", maxRetry).
				Msg("Task failed")
		}),
	})

	mux := asynq.NewServeMux()
	jobs.NewProcessor(a.Escrow, a.Deposits).Register(mux)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: asynqLogger{}})
	if err := jobs.RegisterPeriodic(scheduler); err != nil {
		log.Fatal().Err(err).Msg("Failed to register periodic tasks")
	}

	if err := srv.Start(mux); err != nil {
		log.Fatal().Err(err).Msg("Failed to start task server")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	log.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("Worker running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker...")
	scheduler.Shutdown()
	srv.Shutdown()
	log.Info().Msg("Worker exited properly")
}
