package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/speaksense/speaksense/internal/cache"
	"github.com/speaksense/speaksense/internal/config"
	"github.com/speaksense/speaksense/internal/database"
	"github.com/speaksense/speaksense/internal/logging"
	"github.com/speaksense/speaksense/internal/pipeline"
	"github.com/speaksense/speaksense/internal/queue"
	"github.com/speaksense/speaksense/internal/storage"
	"github.com/speaksense/speaksense/internal/tracing"
	"github.com/speaksense/speaksense/internal/transcribe"
	"github.com/speaksense/speaksense/pkg/models"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Initialize tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer("speaksense-worker", cfg.Tracing.Endpoint)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer closer.Close()
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	// Initialize storage
	stor, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize cache
	c, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer c.Close()

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	if err := q.SetupDeadLetterQueue(); err != nil {
		log.Fatalf("Failed to set up dead letter queue: %v", err)
	}

	// Job services
	annotationService := pipeline.NewService(cfg.Pipeline, stor, repo, c, log)
	transcriptionService := transcribe.NewService(cfg.Transcribe, stor, repo, c, log)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutting down worker gracefully...")
		cancel()
	}()

	// Job handler dispatches on job kind
	jobHandler := func(job *models.AnalysisJob) error {
		jobLog := log.WithJobID(job.ID).WithSessionID(job.SessionID)
		jobLog.Infof("Processing %s job", job.Kind)

		var procErr error
		switch job.Kind {
		case models.JobKindAnnotation:
			procErr = annotationService.ProcessJob(ctx, job)
		case models.JobKindTranscription:
			procErr = transcriptionService.ProcessJob(ctx, job)
		default:
			jobLog.Errorf("Unknown job kind %q, discarding", job.Kind)
			return q.PublishToDeadLetterQueue(ctx, job, "unknown job kind")
		}

		if procErr != nil {
			jobLog.ErrorWithErr("Job failed", procErr)
			// Failed jobs are already recorded; do not requeue
			return nil
		}

		jobLog.Info("Job completed")
		return nil
	}

	// Start consuming jobs
	log.Info("Worker started, waiting for jobs...")
	if err := q.ConsumeJobs(ctx, jobHandler); err != nil {
		log.Fatalf("Failed to consume jobs: %v", err)
	}

	// Wait for shutdown
	<-ctx.Done()
	log.Info("Worker stopped")
}
