package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/speaksense/speaksense/internal/cache"
	"github.com/speaksense/speaksense/internal/config"
	"github.com/speaksense/speaksense/internal/database"
	"github.com/speaksense/speaksense/internal/fetch"
	"github.com/speaksense/speaksense/internal/logging"
	"github.com/speaksense/speaksense/internal/metrics"
	"github.com/speaksense/speaksense/internal/middleware"
	"github.com/speaksense/speaksense/internal/queue"
	"github.com/speaksense/speaksense/internal/storage"
	"github.com/speaksense/speaksense/internal/tracing"
	"github.com/speaksense/speaksense/internal/video"
	"github.com/speaksense/speaksense/pkg/models"
)

// Repo is the subset of repository operations the API uses.
type Repo interface {
	Health(ctx context.Context) error
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, session *models.Session) error
	ListSessions(ctx context.Context, limit, offset int) ([]*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	CreateJob(ctx context.Context, job *models.AnalysisJob) error
	GetJob(ctx context.Context, id string) (*models.AnalysisJob, error)
	CancelJob(ctx context.Context, id string) error
	GetJobsBySessionID(ctx context.Context, sessionID string) ([]*models.AnalysisJob, error)
	GetResultBySessionID(ctx context.Context, sessionID string) (*models.PipelineResult, error)
	GetResultByJobID(ctx context.Context, jobID string) (*models.PipelineResult, error)
	GetTranscriptBySessionID(ctx context.Context, sessionID string) (*models.Transcript, error)
}

// ObjectStore is the subset of storage operations the API uses.
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName, filePath string) error
	DeletePrefix(ctx context.Context, prefix string) error
	GetURL(ctx context.Context, objectName string) (string, error)
}

// JobQueue publishes analysis jobs for the workers.
type JobQueue interface {
	PublishJob(ctx context.Context, job *models.AnalysisJob) error
}

// Cache serves hot session and job state plus live progress so read
// paths don't hit the database per poll. Workers write job state through
// on every status change; session entries are invalidated on change.
type Cache interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	SetSession(ctx context.Context, session *models.Session, ttl time.Duration) error
	DeleteSession(ctx context.Context, sessionID string) error
	GetJob(ctx context.Context, jobID string) (*models.AnalysisJob, error)
	SetJob(ctx context.Context, job *models.AnalysisJob, ttl time.Duration) error
	DeleteJob(ctx context.Context, jobID string) error
	GetJobProgress(ctx context.Context, jobID string) (float64, error)
	CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

// Downloader fetches remote videos to local disk.
type Downloader interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Prober extracts container metadata from a local video file.
type Prober interface {
	Describe(ctx context.Context, path string, session *models.Session) error
}

type API struct {
	repo    Repo
	storage ObjectStore
	queue   JobQueue
	cache   Cache
	fetcher Downloader
	prober  Prober
	cfg     *config.Config
	log     *logging.Logger
}

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
	var tracerCloser io.Closer
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer("speaksense-api", cfg.Tracing.Endpoint)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		tracerCloser = closer
		defer tracerCloser.Close()
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

	api := &API{
		repo:    repo,
		storage: stor,
		queue:   q,
		cache:   c,
		fetcher: fetch.New(cfg.Fetch),
		prober:  video.NewProber(cfg.Pipeline.FFprobePath),
		cfg:     cfg,
		log:     log,
	}

	// Start metrics server
	metricsServer := metrics.NewServer(cfg.Metrics.Port)
	go func() {
		if err := metricsServer.Start(); err != nil {
			log.Errorf("Metrics server error: %v", err)
		}
	}()

	// Setup router
	router := setupRouter(api)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		log.Errorf("Metrics server shutdown: %v", err)
	}

	log.Info("Server stopped")
}

func setupRouter(api *API) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if api.log != nil {
		router.Use(middleware.RequestLogger(api.log))
	}
	router.Use(middleware.RateLimit(middleware.NewRateLimiter(50, 100)))

	// Health check
	router.GET("/health", api.healthCheck)

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Sessions
		v1.POST("/sessions/upload", api.uploadSession)
		v1.POST("/sessions/fetch", api.fetchSession)
		v1.GET("/sessions/:id", api.getSession)
		v1.GET("/sessions", api.listSessions)
		v1.DELETE("/sessions/:id", api.deleteSession)

		// Jobs
		v1.POST("/sessions/:id/annotate", api.createAnnotationJob)
		v1.POST("/sessions/:id/transcribe", api.createTranscriptionJob)
		v1.GET("/sessions/:id/jobs", api.getSessionJobs)
		v1.GET("/jobs/:id", api.getJob)
		v1.GET("/jobs/:id/progress", api.getJobProgress)
		v1.GET("/jobs/:id/result", api.getJobResult)
		v1.POST("/jobs/:id/cancel", api.cancelJob)

		// Results
		v1.GET("/sessions/:id/result", api.getResult)
		v1.GET("/sessions/:id/summary", api.getSummary)
		v1.GET("/sessions/:id/transcript", api.getTranscript)
		v1.GET("/sessions/:id/artifact", api.getArtifactURL)
	}

	return router
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.repo.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}
