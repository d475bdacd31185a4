package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"touris/api/internal/cache"
	"touris/api/internal/config"
	"touris/api/internal/database"
	"touris/api/internal/jobs"
	"touris/api/internal/log"
	"touris/api/internal/notify"
	"touris/api/internal/queue"
	"touris/api/internal/repository"
	"touris/api/internal/security"
	"touris/api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.Component(log.New(cfg.Environment), "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	authService := service.NewAuthService(
		repository.NewUserRepository(dbPool),
		repository.NewPartnerRepository(dbPool),
		security.NewTokenIssuer(security.TokenConfigFrom(cfg.Security)),
		nil,
		cfg,
		log.Component(logger, "auth"),
	)

	scheduler := jobs.NewScheduler(authService, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}
	defer scheduler.Stop()

	processor := notify.NewProcessor(notify.NewMailer(cfg.SMTP), logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Notify.Stream,
		cfg.Notify.Group,
		cfg.Notify.Consumer,
		cfg.Notify.ClaimInterval,
		logger,
		processor,
	).WithMaxDeliveries(cfg.Notify.MaxDeliveries)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
