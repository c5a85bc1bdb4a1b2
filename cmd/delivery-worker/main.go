package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mailpost/newsletter/internal/config"
	"github.com/mailpost/newsletter/internal/delivery"
	"github.com/mailpost/newsletter/internal/logger"
	"github.com/mailpost/newsletter/internal/mailer"
	"github.com/mailpost/newsletter/internal/storage"
)

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewFromConfig(logger.Config{
		Level:     cfg.Logging.Level,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	log.Info().Msg("starting delivery worker")

	// Initialize database connection pool.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.NewDB(ctx, cfg.Database.URL, cfg.Database.PoolMin, cfg.Database.PoolMax, cfg.Database.ConnectTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	queries := storage.New(db.Pool)
	queue := delivery.NewQueue(db.Pool)

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

	workerCount := cfg.Worker.Concurrency
	if workerCount <= 0 {
		workerCount = 1
	}

	// Each worker loop claims its own rows; SKIP LOCKED keeps them from
	// stepping on each other.
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		workerLog := log.With().Int("worker", i).Logger()
		worker := delivery.NewWorker(queue, queries, mail, workerLog, delivery.Config{
			PollInterval: cfg.Worker.PollInterval,
			ErrorBackoff: cfg.Worker.ErrorBackoff,
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	}

	log.Info().Int("workers", workerCount).Msg("delivery worker pool started")

	// Wait for interrupt signal for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("shutting down delivery worker")
	cancel()
	wg.Wait()

	log.Info().Msg("delivery worker stopped")
}
