package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/speaksense/speaksense/internal/cache"
	"github.com/speaksense/speaksense/internal/config"
	"github.com/speaksense/speaksense/internal/database"
	"github.com/speaksense/speaksense/internal/logging"
	"github.com/speaksense/speaksense/internal/metrics"
	"github.com/speaksense/speaksense/internal/storage"
	"github.com/speaksense/speaksense/internal/tracing"
	"github.com/speaksense/speaksense/pkg/models"
)

// jobCacheTTL bounds how long job state may be served from cache after
// the worker stops refreshing it.
const jobCacheTTL = time.Hour

// Service runs transcription jobs end to end: fetch the source from
// object storage, transcribe the audio track and persist the transcript.
type Service struct {
	cfg      config.TranscribeConfig
	engine   Engine
	storage  *storage.Storage
	repo     *database.Repository
	cache    *cache.Cache
	log      *logging.Logger
	workerID string
}

// NewService creates a new transcription job service
func NewService(
	cfg config.TranscribeConfig,
	stor *storage.Storage,
	repo *database.Repository,
	c *cache.Cache,
	log *logging.Logger,
) *Service {
	return &Service{
		cfg:      cfg,
		engine:   NewWhisper(cfg),
		storage:  stor,
		repo:     repo,
		cache:    c,
		log:      log,
		workerID: uuid.New().String(),
	}
}

// ProcessJob processes one transcription job.
func (s *Service) ProcessJob(ctx context.Context, job *models.AnalysisJob) error {
	span, ctx := tracing.StartSpan(ctx, "transcribe.ProcessJob")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "job_id", job.ID)

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

	tempDir, err := os.MkdirTemp("", "speaksense-transcribe-")
	if err != nil {
		return s.failJob(ctx, job, fmt.Errorf("failed to create temp directory: %w", err))
	}
	defer os.RemoveAll(tempDir)

	inputPath := filepath.Join(tempDir, "input"+filepath.Ext(session.Filename))
	if err := s.storage.DownloadFile(ctx, session.SourceKey, inputPath); err != nil {
		return s.failJob(ctx, job, fmt.Errorf("failed to download source: %w", err))
	}

	s.cache.SetJobProgress(ctx, job.ID, 0.1, time.Hour)

	segments, language, err := s.engine.Transcribe(ctx, inputPath)
	if err != nil {
		tracing.LogError(span, err)
		metrics.TranscriptionsTotal.WithLabelValues("failed").Inc()
		return s.failJob(ctx, job, err)
	}

	metrics.TranscriptionsTotal.WithLabelValues("completed").Inc()
	metrics.TranscriptionSegmentsTotal.Add(float64(len(segments)))

	transcript := &models.Transcript{
		JobID:     job.ID,
		SessionID: session.ID,
		Language:  language,
		Segments:  segments,
	}

	if err := s.repo.CreateTranscript(ctx, transcript); err != nil {
		return s.failJob(ctx, job, fmt.Errorf("failed to persist transcript: %w", err))
	}

	job.Status = models.JobStatusCompleted
	job.Progress = 1.0
	completed := time.Now()
	job.CompletedAt = &completed

	if err := s.repo.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	s.cache.SetJob(ctx, job, jobCacheTTL)

	s.cache.SetJobProgress(ctx, job.ID, 1.0, time.Hour)
	metrics.RecordJobCompleted(job.Kind, job.Status)

	s.log.WithJobID(job.ID).WithFields(map[string]interface{}{
		"segments": len(segments),
		"language": language,
	}).Info("Transcription completed")

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
