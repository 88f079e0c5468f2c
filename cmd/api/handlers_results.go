package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/speaksense/speaksense/internal/summary"
	"github.com/speaksense/speaksense/internal/transcribe"
)

// Get result endpoint returns the latest pipeline result for a session.
func (api *API) getResult(c *gin.Context) {
	sessionID := c.Param("id")

	result, err := api.repo.GetResultBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No result for session"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Get job result endpoint returns the pipeline result of a specific job.
func (api *API) getJobResult(c *gin.Context) {
	jobID := c.Param("id")

	result, err := api.repo.GetResultByJobID(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No result for job"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Get summary endpoint returns the emotion distribution as chart bars and
// a readable description.
func (api *API) getSummary(c *gin.Context) {
	sessionID := c.Param("id")

	result, err := api.repo.GetResultBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No result for session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":       sessionID,
		"faces_detected":   result.FacesDetected,
		"frames_processed": result.FramesProcessed,
		"frames_failed":    result.FramesFailed,
		"chart":            summary.Chart(result.Histogram),
		"text":             summary.Text(result.Histogram),
	})
}

// Get transcript endpoint. With ?format=text the transcript renders as
// timestamped lines instead of JSON segments.
func (api *API) getTranscript(c *gin.Context) {
	sessionID := c.Param("id")

	transcript, err := api.repo.GetTranscriptBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No transcript for session"})
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, transcribe.FormatSegments(transcript.Segments))
		return
	}

	c.JSON(http.StatusOK, transcript)
}

// Get artifact URL endpoint returns a presigned URL for the annotated
// video.
func (api *API) getArtifactURL(c *gin.Context) {
	sessionID := c.Param("id")

	result, err := api.repo.GetResultBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No result for session"})
		return
	}

	url, err := api.storage.GetURL(c.Request.Context(), result.OutputKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"url":        url,
	})
}
