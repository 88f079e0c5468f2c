package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/speaksense/speaksense/internal/metrics"
	"github.com/speaksense/speaksense/pkg/models"
)

// Job entries fetched here only bridge the gap until the worker's next
// write-through; keep them short-lived.
const jobCacheTTL = time.Minute

// Create annotation job endpoint
func (api *API) createAnnotationJob(c *gin.Context) {
	sessionID := c.Param("id")

	var req struct {
		OutputFormat string `json:"output_format"`
		OutputFourCC string `json:"output_fourcc"`
	}

	// Body is optional; defaults come from server configuration
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	session, err := api.repo.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if session.Status != models.SessionStatusReady &&
		session.Status != models.SessionStatusProcessing &&
		session.Status != models.SessionStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Session source is not ready"})
		return
	}

	job := &models.AnalysisJob{
		SessionID: sessionID,
		Kind:      models.JobKindAnnotation,
		Status:    models.JobStatusQueued,
		Config: models.AnalysisConfig{
			OutputFormat: req.OutputFormat,
			OutputFourCC: req.OutputFourCC,
		},
	}

	api.enqueueJob(c, job)
}

// Create transcription job endpoint
func (api *API) createTranscriptionJob(c *gin.Context) {
	sessionID := c.Param("id")

	var req struct {
		Language string `json:"language"`
	}

	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	session, err := api.repo.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if session.Status == models.SessionStatusPending || session.Status == models.SessionStatusFetching {
		c.JSON(http.StatusConflict, gin.H{"error": "Session source is not ready"})
		return
	}

	job := &models.AnalysisJob{
		SessionID: sessionID,
		Kind:      models.JobKindTranscription,
		Status:    models.JobStatusQueued,
		Config: models.AnalysisConfig{
			Language: req.Language,
		},
	}

	api.enqueueJob(c, job)
}

// enqueueJob persists a job and publishes it for the workers.
func (api *API) enqueueJob(c *gin.Context, job *models.AnalysisJob) {
	if err := api.repo.CreateJob(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create job: %v", err)})
		return
	}

	if err := api.queue.PublishJob(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to queue job: %v", err)})
		return
	}

	metrics.RecordJobCreated(job.Kind)

	c.JSON(http.StatusCreated, job)
}

// Get job endpoint. Cache-first: workers write job state through on
// every status change.
func (api *API) getJob(c *gin.Context) {
	jobID := c.Param("id")

	if job, err := api.cache.GetJob(c.Request.Context(), jobID); err == nil && job != nil {
		c.JSON(http.StatusOK, job)
		return
	}

	job, err := api.repo.GetJob(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	api.cache.SetJob(c.Request.Context(), job, jobCacheTTL)

	c.JSON(http.StatusOK, job)
}

// Get job progress endpoint. Live progress is served from the cache; the
// database copy only updates at job completion.
func (api *API) getJobProgress(c *gin.Context) {
	jobID := c.Param("id")

	job, err := api.repo.GetJob(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	progress := job.Progress
	indeterminate := false

	if job.Status == models.JobStatusProcessing {
		if p, err := api.cache.GetJobProgress(c.Request.Context(), jobID); err == nil {
			progress = p
		} else {
			indeterminate = true
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":        jobID,
		"status":        job.Status,
		"progress":      progress,
		"indeterminate": indeterminate,
	})
}

// Get session jobs endpoint
func (api *API) getSessionJobs(c *gin.Context) {
	sessionID := c.Param("id")

	jobs, err := api.repo.GetJobsBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// Cancel job endpoint. Cancellation is a request: a running pipeline
// honors it at the next frame boundary.
func (api *API) cancelJob(c *gin.Context) {
	jobID := c.Param("id")

	if err := api.repo.CancelJob(c.Request.Context(), jobID); err != nil {
		if err.Error() == "job is not cancellable" {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to cancel job: %v", err)})
		return
	}

	// Drop the cached copy so polls don't keep seeing the old status.
	api.cache.DeleteJob(c.Request.Context(), jobID)

	c.JSON(http.StatusOK, gin.H{"message": "Job cancellation requested", "job_id": jobID})
}
