package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/speaksense/speaksense/internal/metrics"
	"github.com/speaksense/speaksense/internal/storage"
	"github.com/speaksense/speaksense/pkg/models"
)

const sessionCacheTTL = 5 * time.Minute

// Remote fetches shell out to a downloader; cap them per client IP.
const (
	fetchRateLimit  = 5
	fetchRateWindow = time.Minute
)

// Upload session endpoint
func (api *API) uploadSession(c *gin.Context) {
	file, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No video file provided"})
		return
	}

	tempPath := filepath.Join(os.TempDir(), uuid.New().String())
	if err := c.SaveUploadedFile(file, tempPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}
	defer os.Remove(tempPath)

	session := &models.Session{
		ID:       uuid.New().String(),
		Filename: file.Filename,
		Size:     file.Size,
		Status:   models.SessionStatusPending,
	}

	// Extract container metadata
	if err := api.prober.Describe(c.Request.Context(), tempPath, session); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unreadable video: %v", err)})
		return
	}

	// Upload to storage
	storageKey := storage.SourceKey(session.ID, file.Filename)
	if err := api.storage.UploadFile(c.Request.Context(), storageKey, tempPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to upload: %v", err)})
		return
	}

	session.SourceKey = storageKey
	session.Status = models.SessionStatusReady

	if err := api.repo.CreateSession(c.Request.Context(), session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create session: %v", err)})
		return
	}

	api.cache.SetSession(c.Request.Context(), session, sessionCacheTTL)

	metrics.SessionsCreatedTotal.WithLabelValues("upload").Inc()
	metrics.VideoUploadSizeBytes.Observe(float64(file.Size))

	c.JSON(http.StatusCreated, session)
}

// Fetch session endpoint downloads a remote video and registers it as a
// session.
func (api *API) fetchSession(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	allowed, err := api.cache.CheckRateLimit(c.Request.Context(),
		"fetch:"+c.ClientIP(), fetchRateLimit, fetchRateWindow)
	if err == nil && !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many fetch requests"})
		return
	}

	localPath, err := api.fetcher.Fetch(c.Request.Context(), req.URL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("Failed to fetch video: %v", err)})
		return
	}
	defer os.Remove(localPath)

	session := &models.Session{
		ID:        uuid.New().String(),
		Filename:  filepath.Base(localPath),
		SourceURL: req.URL,
		Status:    models.SessionStatusFetching,
	}

	if err := api.prober.Describe(c.Request.Context(), localPath, session); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("Unreadable video: %v", err)})
		return
	}

	storageKey := storage.SourceKey(session.ID, session.Filename)
	if err := api.storage.UploadFile(c.Request.Context(), storageKey, localPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to upload: %v", err)})
		return
	}

	session.SourceKey = storageKey
	session.Status = models.SessionStatusReady

	if err := api.repo.CreateSession(c.Request.Context(), session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create session: %v", err)})
		return
	}

	api.cache.SetSession(c.Request.Context(), session, sessionCacheTTL)

	metrics.SessionsCreatedTotal.WithLabelValues("fetch").Inc()

	c.JSON(http.StatusCreated, session)
}

// Get session endpoint. Reads are cache-first; entries are invalidated
// whenever the session changes.
func (api *API) getSession(c *gin.Context) {
	sessionID := c.Param("id")

	if session, err := api.cache.GetSession(c.Request.Context(), sessionID); err == nil && session != nil {
		c.JSON(http.StatusOK, session)
		return
	}

	session, err := api.repo.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	api.cache.SetSession(c.Request.Context(), session, sessionCacheTTL)

	c.JSON(http.StatusOK, session)
}

// List sessions endpoint
func (api *API) listSessions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	sessions, err := api.repo.ListSessions(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"limit":    limit,
		"offset":   offset,
	})
}

// Delete session endpoint
func (api *API) deleteSession(c *gin.Context) {
	sessionID := c.Param("id")

	if _, err := api.repo.GetSession(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	// Remove stored objects first; database records go in one transaction
	if err := api.storage.DeletePrefix(c.Request.Context(), storage.SessionPrefix(sessionID)); err != nil {
		api.log.WithSessionID(sessionID).Warnf("Failed to delete stored objects: %v", err)
	}

	if err := api.repo.DeleteSession(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to delete session: %v", err)})
		return
	}

	api.cache.DeleteSession(c.Request.Context(), sessionID)

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully", "session_id": sessionID})
}
