package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"touris/api/internal/cache"
	"touris/api/internal/config"
	"touris/api/internal/database"
	"touris/api/internal/handlers"
	"touris/api/internal/log"
	"touris/api/internal/notify"
	"touris/api/internal/oauth"
	"touris/api/internal/ratelimit"
	"touris/api/internal/repository"
	"touris/api/internal/security"
	"touris/api/internal/server"
	"touris/api/internal/service"
	"touris/api/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	users := repository.NewUserRepository(dbPool)
	partners := repository.NewPartnerRepository(dbPool)

	tokens := security.NewTokenIssuer(security.TokenConfigFrom(cfg.Security))

	publisher := notify.NewStreamPublisher(redisClient, cfg.Notify.Stream)

	var uploader service.Uploader
	if cfg.Storage.Endpoint != "" {
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure bucket failed")
		}
		uploader = objectStore
	} else {
		logger.Warn().Msg("storage endpoint not configured, avatar uploads disabled")
	}

	var verifier service.IdentityVerifier
	if len(cfg.OAuth.GoogleClientIDs) > 0 {
		google, err := oauth.NewGoogleVerifier(ctx, cfg.OAuth.GoogleIssuer, cfg.OAuth.GoogleClientIDs)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init google verifier")
		}
		verifier = google
	} else {
		logger.Warn().Msg("no google client ids configured, google login disabled")
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.NewRedisCounter(redisClient), cfg.RateLimit.Limit, cfg.RateLimit.Window)
	}

	authService := service.NewAuthService(users, partners, tokens, publisher, cfg, log.Component(logger, "auth"))
	accountService := service.NewAccountService(users, partners, uploader, cfg, log.Component(logger, "accounts"))
	federationService := service.NewFederationService(authService, verifier, log.Component(logger, "federation"))

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Dependencies{
		Auth:       authService,
		Federation: federationService,
		Accounts:   accountService,
		Tokens:     tokens,
		Limiter:    limiter,
		DB:         dbPool,
		Cache:      redisClient,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
