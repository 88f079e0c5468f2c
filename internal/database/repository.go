package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/speaksense/speaksense/pkg/models"
)

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health checks database connectivity
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// Sessions

// CreateSession creates a new session record
func (r *Repository) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	query := `
		INSERT INTO sessions (id, filename, source_url, source_key, size, duration, width, height, frame_rate, codec, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		session.ID, session.Filename, session.SourceURL, session.SourceKey,
		session.Size, session.Duration, session.Width, session.Height,
		session.FrameRate, session.Codec, session.Status,
	).Scan(&session.CreatedAt, &session.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSession retrieves a session by ID
func (r *Repository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session

	query := `
		SELECT id, filename, source_url, source_key, size, duration, width, height,
		       frame_rate, codec, status, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&session.ID, &session.Filename, &session.SourceURL, &session.SourceKey,
		&session.Size, &session.Duration, &session.Width, &session.Height,
		&session.FrameRate, &session.Codec, &session.Status,
		&session.CreatedAt, &session.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

// UpdateSession updates a session record
func (r *Repository) UpdateSession(ctx context.Context, session *models.Session) error {
	query := `
		UPDATE sessions
		SET filename = $2, source_url = $3, source_key = $4, size = $5, duration = $6,
		    width = $7, height = $8, frame_rate = $9, codec = $10, status = $11
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query,
		session.ID, session.Filename, session.SourceURL, session.SourceKey,
		session.Size, session.Duration, session.Width, session.Height,
		session.FrameRate, session.Codec, session.Status,
	)

	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return nil
}

// ListSessions retrieves all sessions with pagination
func (r *Repository) ListSessions(ctx context.Context, limit, offset int) ([]*models.Session, error) {
	query := `
		SELECT id, filename, source_url, source_key, size, duration, width, height,
		       frame_rate, codec, status, created_at, updated_at
		FROM sessions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		var session models.Session
		err := rows.Scan(
			&session.ID, &session.Filename, &session.SourceURL, &session.SourceKey,
			&session.Size, &session.Duration, &session.Width, &session.Height,
			&session.FrameRate, &session.Codec, &session.Status,
			&session.CreatedAt, &session.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &session)
	}

	return sessions, nil
}

// DeleteSession deletes a session and its dependent records
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	statements := []string{
		`DELETE FROM transcripts WHERE session_id = $1`,
		`DELETE FROM pipeline_results WHERE session_id = $1`,
		`DELETE FROM analysis_jobs WHERE session_id = $1`,
		`DELETE FROM sessions WHERE id = $1`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Jobs

// CreateJob creates a new analysis job record
func (r *Repository) CreateJob(ctx context.Context, job *models.AnalysisJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}

	query := `
		INSERT INTO analysis_jobs (id, session_id, kind, status, progress, config)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		job.ID, job.SessionID, job.Kind, job.Status, job.Progress, job.Config,
	).Scan(&job.CreatedAt, &job.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJob retrieves a job by ID
func (r *Repository) GetJob(ctx context.Context, id string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob

	query := `
		SELECT id, session_id, kind, status, progress, error_msg, worker_id,
		       started_at, completed_at, created_at, updated_at, config
		FROM analysis_jobs
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.SessionID, &job.Kind, &job.Status, &job.Progress,
		&job.ErrorMsg, &job.WorkerID, &job.StartedAt, &job.CompletedAt,
		&job.CreatedAt, &job.UpdatedAt, &job.Config,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// UpdateJob updates a job record
func (r *Repository) UpdateJob(ctx context.Context, job *models.AnalysisJob) error {
	query := `
		UPDATE analysis_jobs
		SET status = $2, progress = $3, error_msg = $4, worker_id = $5,
		    started_at = $6, completed_at = $7, config = $8
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query,
		job.ID, job.Status, job.Progress, job.ErrorMsg, job.WorkerID,
		job.StartedAt, job.CompletedAt, job.Config,
	)

	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return nil
}

// CancelJob marks a queued or processing job as cancelled. The worker
// picks the status change up at the next frame boundary.
func (r *Repository) CancelJob(ctx context.Context, id string) error {
	query := `
		UPDATE analysis_jobs
		SET status = $2, completed_at = NOW()
		WHERE id = $1 AND status IN ($3, $4)
	`

	tag, err := r.db.Pool.Exec(ctx, query, id,
		models.JobStatusCancelled, models.JobStatusQueued, models.JobStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job is not cancellable")
	}

	return nil
}

// GetJobsBySessionID retrieves all jobs for a session
func (r *Repository) GetJobsBySessionID(ctx context.Context, sessionID string) ([]*models.AnalysisJob, error) {
	query := `
		SELECT id, session_id, kind, status, progress, error_msg, worker_id,
		       started_at, completed_at, created_at, updated_at, config
		FROM analysis_jobs
		WHERE session_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.AnalysisJob
	for rows.Next() {
		var job models.AnalysisJob
		err := rows.Scan(
			&job.ID, &job.SessionID, &job.Kind, &job.Status, &job.Progress,
			&job.ErrorMsg, &job.WorkerID, &job.StartedAt, &job.CompletedAt,
			&job.CreatedAt, &job.UpdatedAt, &job.Config,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, &job)
	}

	return jobs, nil
}

// RecomputeSessionStatus re-derives a session's status from its jobs and
// persists it. Called whenever any job, annotation or transcription,
// reaches a terminal status, so the session converges regardless of
// which job finishes last.
func (r *Repository) RecomputeSessionStatus(ctx context.Context, sessionID string) error {
	jobs, err := r.GetJobsBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}

	status, ok := models.SessionStatusForJobs(jobs)
	if !ok {
		return nil
	}

	session, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	session.Status = status
	return r.UpdateSession(ctx, session)
}

// Pipeline results

// CreatePipelineResult creates a new pipeline result record
func (r *Repository) CreatePipelineResult(ctx context.Context, result *models.PipelineResult) error {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}

	query := `
		INSERT INTO pipeline_results (id, job_id, session_id, output_key, frames_processed,
		                              frames_failed, faces_detected, histogram)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		result.ID, result.JobID, result.SessionID, result.OutputKey,
		result.FramesProcessed, result.FramesFailed, result.FacesDetected, result.Histogram,
	).Scan(&result.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create pipeline result: %w", err)
	}

	return nil
}

// GetResultBySessionID retrieves the most recent pipeline result for a session
func (r *Repository) GetResultBySessionID(ctx context.Context, sessionID string) (*models.PipelineResult, error) {
	var result models.PipelineResult

	query := `
		SELECT id, job_id, session_id, output_key, frames_processed, frames_failed,
		       faces_detected, histogram, created_at
		FROM pipeline_results
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.Pool.QueryRow(ctx, query, sessionID).Scan(
		&result.ID, &result.JobID, &result.SessionID, &result.OutputKey,
		&result.FramesProcessed, &result.FramesFailed, &result.FacesDetected,
		&result.Histogram, &result.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("result not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	return &result, nil
}

// GetResultByJobID retrieves the pipeline result for a job
func (r *Repository) GetResultByJobID(ctx context.Context, jobID string) (*models.PipelineResult, error) {
	var result models.PipelineResult

	query := `
		SELECT id, job_id, session_id, output_key, frames_processed, frames_failed,
		       faces_detected, histogram, created_at
		FROM pipeline_results
		WHERE job_id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, jobID).Scan(
		&result.ID, &result.JobID, &result.SessionID, &result.OutputKey,
		&result.FramesProcessed, &result.FramesFailed, &result.FacesDetected,
		&result.Histogram, &result.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("result not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	return &result, nil
}

// Transcripts

// CreateTranscript creates a new transcript record
func (r *Repository) CreateTranscript(ctx context.Context, transcript *models.Transcript) error {
	if transcript.ID == "" {
		transcript.ID = uuid.New().String()
	}

	query := `
		INSERT INTO transcripts (id, job_id, session_id, language, segments)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		transcript.ID, transcript.JobID, transcript.SessionID,
		transcript.Language, transcript.Segments,
	).Scan(&transcript.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create transcript: %w", err)
	}

	return nil
}

// GetTranscriptBySessionID retrieves the most recent transcript for a session
func (r *Repository) GetTranscriptBySessionID(ctx context.Context, sessionID string) (*models.Transcript, error) {
	var transcript models.Transcript

	query := `
		SELECT id, job_id, session_id, language, segments, created_at
		FROM transcripts
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.Pool.QueryRow(ctx, query, sessionID).Scan(
		&transcript.ID, &transcript.JobID, &transcript.SessionID,
		&transcript.Language, &transcript.Segments, &transcript.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("transcript not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}

	return &transcript, nil
}
