package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mailpost/newsletter/internal/api"
	"github.com/mailpost/newsletter/internal/auth"
	"github.com/mailpost/newsletter/internal/config"
	"github.com/mailpost/newsletter/internal/idempotency"
	"github.com/mailpost/newsletter/internal/logger"
	"github.com/mailpost/newsletter/internal/mailer"
	"github.com/mailpost/newsletter/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewFromConfig(logger.Config{
		Level:     cfg.Logging.Level,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	log.Info().Msg("starting API server")

	// Connect to database
	ctx := context.Background()
	db, err := storage.NewDB(
		ctx,
		cfg.Database.URL,
		cfg.Database.PoolMin,
		cfg.Database.PoolMax,
		cfg.Database.ConnectTimeout,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	log.Info().Msg("database connection established")

	queries := storage.New(db.Pool)
	publishStore := idempotency.NewStore(db.Pool)

	// Initialize mail client for subscription confirmations
	mail, err := mailer.NewFromConfig(mailer.Config{
		Mode:        cfg.Mailer.Mode,
		SenderEmail: cfg.Mailer.SenderEmail,
		SenderName:  cfg.Mailer.SenderName,
		SMTPHost:    cfg.Mailer.SMTPHost,
		SMTPPort:    cfg.Mailer.SMTPPort,
		SMTPUser:    cfg.Mailer.SMTPUser,
		SMTPPass:    cfg.Mailer.SMTPPass,
		SendTimeout: cfg.Mailer.SendTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize mailer")
	}

	// Initialize JWT service
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey:  cfg.Auth.SigningKey,
		TokenExpiry: cfg.Auth.TokenExpiry,
		Issuer:      cfg.Auth.Issuer,
	})

	if cfg.Auth.SigningKey == "" || cfg.Auth.SigningKey == "change-me-in-production-use-a-strong-secret" {
		log.Warn().Msg("JWT signing key is not set or using default value; set NEWSLETTER_AUTH_SIGNING_KEY in production")
	}

	// Initialize login rate limiter. Without Redis, limiting is disabled.
	var redisClient *redis.Client
	if cfg.Auth.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Auth.RedisAddr,
			Password: cfg.Auth.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisClient.Close()
		log.Info().Str("addr", cfg.Auth.RedisAddr).Msg("login rate limiting enabled")
	} else {
		log.Warn().Msg("Redis not configured; login rate limiting disabled")
	}
	rateLimiter := auth.NewRateLimiter(redisClient, auth.RateLimitConfig{
		LoginAttemptsLimit: cfg.Auth.LoginAttemptsLimit,
		LoginWindow:        cfg.Auth.LoginWindow,
	})

	// Build router
	router := api.NewRouter(api.RouterConfig{
		Queries:     queries,
		DB:          db,
		Publish:     publishStore,
		Mailer:      mail,
		JWTService:  jwtService,
		RateLimiter: rateLimiter,
		Log:         log,
		BaseURL:     cfg.API.BaseURL,
	})

	// Configure HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down server")

	// Graceful shutdown with 30-second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
