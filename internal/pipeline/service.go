package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/speaksense/speaksense/internal/annotate"
	"github.com/speaksense/speaksense/internal/cache"
	"github.com/speaksense/speaksense/internal/config"
	"github.com/speaksense/speaksense/internal/database"
	"github.com/speaksense/speaksense/internal/detect"
	"github.com/speaksense/speaksense/internal/logging"
	"github.com/speaksense/speaksense/internal/metrics"
	"github.com/speaksense/speaksense/internal/storage"
	"github.com/speaksense/speaksense/internal/tracing"
	"github.com/speaksense/speaksense/internal/video"
	"github.com/speaksense/speaksense/pkg/models"
)

// jobCacheTTL bounds how long job state may be served from cache after
// the worker stops refreshing it.
const jobCacheTTL = time.Hour

// Service runs annotation jobs end to end: fetch the source from object
// storage, run the frame pipeline, upload the artifact and persist the
// result.
type Service struct {
	cfg      config.PipelineConfig
	storage  *storage.Storage
	repo     *database.Repository
	cache    *cache.Cache
	detector detect.Detector
	log      *logging.Logger
	workerID string
}

// NewService creates a new annotation job service
func NewService(
	cfg config.PipelineConfig,
	stor *storage.Storage,
	repo *database.Repository,
	c *cache.Cache,
	log *logging.Logger,
) *Service {
	return &Service{
		cfg:      cfg,
		storage:  stor,
		repo:     repo,
		cache:    c,
		detector: detect.NewHTTPDetector(cfg.DetectorURL, cfg.DetectorTimeout),
		log:      log,
		workerID: uuid.New().String(),
	}
}

// ProcessJob processes one annotation job.
func (s *Service) ProcessJob(ctx context.Context, job *models.AnalysisJob) error {
	span, ctx := tracing.StartSpan(ctx, "pipeline.ProcessJob")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "job_id", job.ID)

	// Update job status to processing
	job.Status = models.JobStatusProcessing
	job.WorkerID = s.workerID
	now := time.Now()
	job.StartedAt = &now
	job.Progress = 0

	if err := s.repo.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	s.cache.SetJob(ctx, job, jobCacheTTL)

	metrics.JobsInProgress.Inc()
	defer metrics.JobsInProgress.Dec()

	session, err := s.repo.GetSession(ctx, job.SessionID)
	if err != nil {
		return s.failJob(ctx, job, fmt.Errorf("failed to get session: %w", err))
	}

	// Create temporary directory
	tempDir := filepath.Join(s.cfg.TempDir, job.ID)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return s.failJob(ctx, job, fmt.Errorf("failed to create temp directory: %w", err))
	}
	defer os.RemoveAll(tempDir)

	// Download source video
	inputPath := filepath.Join(tempDir, "input"+filepath.Ext(session.Filename))
	if err := s.storage.DownloadFile(ctx, session.SourceKey, inputPath); err != nil {
		return s.failJob(ctx, job, fmt.Errorf("failed to download source: %w", err))
	}

	format := job.Config.OutputFormat
	if format == "" {
		format = s.cfg.OutputFormat
	}
	fourcc := job.Config.OutputFourCC
	if fourcc == "" {
		fourcc = s.cfg.OutputFourCC
	}

	outputFilename := "annotated." + format
	outputPath := filepath.Join(tempDir, outputFilename)

	// Cancellation requests take effect at frame boundaries only.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.watchCancellation(runCtx, job.ID, cancel)

	runner := NewRunner(
		s.detector,
		annotate.New(s.cfg.LabelFontScale, s.cfg.LabelThickness),
		s.log,
		job.ID,
		func(p float64) {
			s.cache.SetJobProgress(ctx, job.ID, p, time.Hour)
		},
	)

	start := time.Now()
	result, err := runner.Run(runCtx,
		func() (FrameSource, error) {
			return video.OpenSource(inputPath)
		},
		func(meta video.Metadata) (FrameSink, error) {
			return video.OpenSink(outputPath, fourcc, meta.FrameRate, meta.Width, meta.Height)
		},
	)
	if err != nil {
		tracing.LogError(span, err)
		return s.failJob(ctx, job, fmt.Errorf("pipeline run failed: %w", err))
	}

	metrics.PipelineDurationSeconds.Observe(time.Since(start).Seconds())

	if result.Cancelled {
		job.Status = models.JobStatusCancelled
		completed := time.Now()
		job.CompletedAt = &completed
		metrics.RecordJobCompleted(job.Kind, job.Status)
		if err := s.repo.UpdateJob(ctx, job); err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}
		s.cache.SetJob(ctx, job, jobCacheTTL)
		return s.finishSessionJob(ctx, job)
	}

	// Upload artifact
	storageKey := storage.OutputKey(session.ID, job.ID, outputFilename)
	if err := s.storage.UploadFile(ctx, storageKey, outputPath); err != nil {
		return s.failJob(ctx, job, fmt.Errorf("failed to upload artifact: %w", err))
	}

	// Persist result
	pipelineResult := &models.PipelineResult{
		JobID:           job.ID,
		SessionID:       session.ID,
		OutputKey:       storageKey,
		FramesProcessed: result.FramesProcessed,
		FramesFailed:    result.FramesFailed,
		FacesDetected:   result.Histogram.Total(),
		Histogram:       result.Histogram,
	}

	if err := s.repo.CreatePipelineResult(ctx, pipelineResult); err != nil {
		return s.failJob(ctx, job, fmt.Errorf("failed to persist result: %w", err))
	}

	// Update job as completed
	job.Status = models.JobStatusCompleted
	job.Progress = 1.0
	completed := time.Now()
	job.CompletedAt = &completed

	if err := s.repo.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	s.cache.SetJob(ctx, job, jobCacheTTL)

	metrics.RecordJobCompleted(job.Kind, job.Status)

	return s.finishSessionJob(ctx, job)
}

// finishSessionJob re-derives the session status now that one of its
// jobs reached a terminal state, and drops the stale cached session.
func (s *Service) finishSessionJob(ctx context.Context, job *models.AnalysisJob) error {
	if err := s.repo.RecomputeSessionStatus(ctx, job.SessionID); err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	s.cache.DeleteSession(ctx, job.SessionID)
	return nil
}

// failJob marks a job as failed and updates the database
func (s *Service) failJob(ctx context.Context, job *models.AnalysisJob, err error) error {
	job.Status = models.JobStatusFailed
	job.ErrorMsg = err.Error()
	completed := time.Now()
	job.CompletedAt = &completed

	metrics.RecordJobCompleted(job.Kind, job.Status)

	if updateErr := s.repo.UpdateJob(ctx, job); updateErr != nil {
		return fmt.Errorf("failed to update job: %w (original error: %v)", updateErr, err)
	}
	s.cache.SetJob(ctx, job, jobCacheTTL)

	if recErr := s.finishSessionJob(ctx, job); recErr != nil {
		s.log.WithJobID(job.ID).Warnf("Failed to update session status: %v", recErr)
	}

	return err
}

// watchCancellation polls the job record and cancels the run context when
// the user has requested cancellation. The runner only honors it at the
// next frame boundary.
func (s *Service) watchCancellation(ctx context.Context, jobID string, cancel context.CancelFunc) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := s.repo.GetJob(ctx, jobID)
			if err != nil {
				continue
			}
			if job.Status == models.JobStatusCancelled {
				cancel()
				return
			}
		}
	}
}
