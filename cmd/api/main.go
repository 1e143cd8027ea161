// @title                      VideoTube Account Service
// @version                    1.0
// @description                User registration, login, logout and session refresh.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/videotube/account-service/internal/api"
	"github.com/videotube/account-service/internal/api/handler"
	"github.com/videotube/account-service/internal/core/ports"
	"github.com/videotube/account-service/internal/core/service"
	"github.com/videotube/account-service/internal/infrastructure/config"
	mongodb "github.com/videotube/account-service/internal/infrastructure/db/mongo"
	redisdb "github.com/videotube/account-service/internal/infrastructure/db/redis"
	"github.com/videotube/account-service/internal/infrastructure/password"
	"github.com/videotube/account-service/internal/infrastructure/queue"
	"github.com/videotube/account-service/internal/infrastructure/storage"
	"github.com/videotube/account-service/pkg/logger"
)

const serviceName = "account-service"

func main() {
	_ = godotenv.Load() // load .env if present

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.Init(logger.Options{Service: serviceName})
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
	})
	log := logger.Get()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("service stopped")
	}
	log.Info().Msg("server exited properly")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// MongoDB
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:         cfg.Mongo.URI,
		Database:    cfg.Mongo.Database,
		AppName:     serviceName,
		MaxPoolSize: cfg.Mongo.MaxPoolSize,
		Timeout:     cfg.Mongo.Timeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(shutdownCtx)
	}()

	users := mongodb.NewUserRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		return err
	}

	// Redis
	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	// Media storage and orphan cleanup
	uploader, closeUploader, err := newUploader(ctx, cfg.Media)
	if err != nil {
		return err
	}
	defer func() { _ = closeUploader() }()

	cleanup := queue.NewDispatcher(cfg.Media.CleanupWorkers, uploader, log.With().Str("component", "media_cleanup").Logger())
	cleanup.Start(ctx)

	// Core
	issuer := service.NewTokenIssuer(users, service.TokenConfig{
		AccessSecret:  cfg.Tokens.AccessSecret,
		RefreshSecret: cfg.Tokens.RefreshSecret,
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
	}, log.With().Str("component", "token_issuer").Logger())

	sessions := service.NewSessionService(service.SessionDeps{
		Users:     users,
		Issuer:    issuer,
		Hasher:    password.NewBcryptHasher(cfg.BcryptCost),
		Uploader:  uploader,
		Reclaimer: cleanup,
		Lock:      redisdb.NewRegistrationLock(rdb, cfg.RegistrationLockTTL, log),
	}, log.With().Str("component", "sessions").Logger())

	e := api.NewRouter(api.Dependencies{
		Sessions: sessions,
		Verifier: issuer,
		Checks: map[string]handler.Check{
			"mongodb": mongodb.Ping(db),
			"redis":   redisdb.Ping(rdb),
		},
		Cookies:     handler.CookieConfig{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain},
		CORSOrigins: cfg.CORSOrigins,
		BodyLimit:   cfg.BodyLimit,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newUploader builds the media backend selected by cfg. The returned func
// releases its client.
func newUploader(ctx context.Context, cfg config.MediaConfig) (ports.MediaUploader, func() error, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.MediaBackendGCS:
		u, err := storage.NewGCSUploader(ctx, storage.GCSConfig{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.GCSCredentialsFile,
			PublicBaseURL:   cfg.PublicBaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return u, u.Close, nil
	default:
		u, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.PublicBaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return u, func() error { return nil }, nil
	}
}
