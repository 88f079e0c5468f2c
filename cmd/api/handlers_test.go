package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/speaksense/speaksense/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockRepo is a mock implementation of Repo
type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRepo) CreateSession(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockRepo) GetSession(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockRepo) UpdateSession(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockRepo) ListSessions(ctx context.Context, limit, offset int) ([]*models.Session, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Session), args.Error(1)
}

func (m *MockRepo) DeleteSession(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepo) CreateJob(ctx context.Context, job *models.AnalysisJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockRepo) GetJob(ctx context.Context, id string) (*models.AnalysisJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalysisJob), args.Error(1)
}

func (m *MockRepo) CancelJob(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepo) GetJobsBySessionID(ctx context.Context, sessionID string) ([]*models.AnalysisJob, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AnalysisJob), args.Error(1)
}

func (m *MockRepo) GetResultBySessionID(ctx context.Context, sessionID string) (*models.PipelineResult, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PipelineResult), args.Error(1)
}

func (m *MockRepo) GetResultByJobID(ctx context.Context, jobID string) (*models.PipelineResult, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PipelineResult), args.Error(1)
}

func (m *MockRepo) GetTranscriptBySessionID(ctx context.Context, sessionID string) (*models.Transcript, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transcript), args.Error(1)
}

// MockQueue is a mock implementation of JobQueue
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) PublishJob(ctx context.Context, job *models.AnalysisJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockObjectStore is a mock implementation of ObjectStore
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) UploadFile(ctx context.Context, objectName, filePath string) error {
	args := m.Called(ctx, objectName, filePath)
	return args.Error(0)
}

func (m *MockObjectStore) DeletePrefix(ctx context.Context, prefix string) error {
	args := m.Called(ctx, prefix)
	return args.Error(0)
}

func (m *MockObjectStore) GetURL(ctx context.Context, objectName string) (string, error) {
	args := m.Called(ctx, objectName)
	return args.String(0), args.Error(1)
}

// MockCache is a mock implementation of Cache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockCache) SetSession(ctx context.Context, session *models.Session, ttl time.Duration) error {
	args := m.Called(ctx, session, ttl)
	return args.Error(0)
}

func (m *MockCache) DeleteSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockCache) GetJob(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalysisJob), args.Error(1)
}

func (m *MockCache) SetJob(ctx context.Context, job *models.AnalysisJob, ttl time.Duration) error {
	args := m.Called(ctx, job, ttl)
	return args.Error(0)
}

func (m *MockCache) DeleteJob(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockCache) GetJobProgress(ctx context.Context, jobID string) (float64, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockCache) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func setupTestRouter(api *API) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.GET("/health", api.healthCheck)
	v1 := router.Group("/api/v1")
	{
		v1.POST("/sessions/fetch", api.fetchSession)
		v1.GET("/sessions/:id", api.getSession)
		v1.POST("/sessions/:id/annotate", api.createAnnotationJob)
		v1.POST("/sessions/:id/transcribe", api.createTranscriptionJob)
		v1.GET("/jobs/:id", api.getJob)
		v1.GET("/jobs/:id/progress", api.getJobProgress)
		v1.GET("/jobs/:id/result", api.getJobResult)
		v1.POST("/jobs/:id/cancel", api.cancelJob)
		v1.GET("/sessions/:id/summary", api.getSummary)
		v1.GET("/sessions/:id/transcript", api.getTranscript)
		v1.GET("/sessions/:id/artifact", api.getArtifactURL)
	}

	return router
}

func TestCreateAnnotationJob(t *testing.T) {
	mockRepo := new(MockRepo)
	mockQueue := new(MockQueue)
	api := &API{repo: mockRepo, queue: mockQueue}
	router := setupTestRouter(api)

	session := &models.Session{
		ID:     "session-1",
		Status: models.SessionStatusReady,
	}

	mockRepo.On("GetSession", mock.Anything, "session-1").Return(session, nil)
	mockRepo.On("CreateJob", mock.Anything, mock.MatchedBy(func(job *models.AnalysisJob) bool {
		return job.Kind == models.JobKindAnnotation && job.SessionID == "session-1"
	})).Return(nil)
	mockQueue.On("PublishJob", mock.Anything, mock.Anything).Return(nil)

	body := bytes.NewBufferString(`{"output_format":"mp4"}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/sessions/session-1/annotate", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var job models.AnalysisJob
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, models.JobKindAnnotation, job.Kind)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, "mp4", job.Config.OutputFormat)

	mockRepo.AssertExpectations(t)
	mockQueue.AssertExpectations(t)
}

func TestCreateAnnotationJobSessionNotReady(t *testing.T) {
	mockRepo := new(MockRepo)
	api := &API{repo: mockRepo}
	router := setupTestRouter(api)

	session := &models.Session{
		ID:     "session-1",
		Status: models.SessionStatusPending,
	}

	mockRepo.On("GetSession", mock.Anything, "session-1").Return(session, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/sessions/session-1/annotate", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	mockRepo.AssertExpectations(t)
}

func TestCreateTranscriptionJob(t *testing.T) {
	mockRepo := new(MockRepo)
	mockQueue := new(MockQueue)
	api := &API{repo: mockRepo, queue: mockQueue}
	router := setupTestRouter(api)

	session := &models.Session{
		ID:     "session-1",
		Status: models.SessionStatusReady,
	}

	mockRepo.On("GetSession", mock.Anything, "session-1").Return(session, nil)
	mockRepo.On("CreateJob", mock.Anything, mock.MatchedBy(func(job *models.AnalysisJob) bool {
		return job.Kind == models.JobKindTranscription
	})).Return(nil)
	mockQueue.On("PublishJob", mock.Anything, mock.Anything).Return(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/sessions/session-1/transcribe", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockRepo.AssertExpectations(t)
	mockQueue.AssertExpectations(t)
}

func TestGetJobProgressProcessing(t *testing.T) {
	mockRepo := new(MockRepo)
	mockCache := new(MockCache)
	api := &API{repo: mockRepo, cache: mockCache}
	router := setupTestRouter(api)

	job := &models.AnalysisJob{
		ID:       "job-1",
		Status:   models.JobStatusProcessing,
		Progress: 0,
	}

	mockRepo.On("GetJob", mock.Anything, "job-1").Return(job, nil)
	mockCache.On("GetJobProgress", mock.Anything, "job-1").Return(0.42, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/jobs/job-1/progress", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 0.42, response["progress"])
	assert.Equal(t, false, response["indeterminate"])
}

func TestCancelJobNotCancellable(t *testing.T) {
	mockRepo := new(MockRepo)
	api := &API{repo: mockRepo}
	router := setupTestRouter(api)

	mockRepo.On("CancelJob", mock.Anything, "job-1").
		Return(assertableError("job is not cancellable"))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/jobs/job-1/cancel", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetSummary(t *testing.T) {
	mockRepo := new(MockRepo)
	api := &API{repo: mockRepo}
	router := setupTestRouter(api)

	result := &models.PipelineResult{
		ID:              "result-1",
		SessionID:       "session-1",
		FramesProcessed: 100,
		FacesDetected:   42,
		Histogram:       models.EmotionHistogram{"happy": 30, "sad": 12},
	}

	mockRepo.On("GetResultBySessionID", mock.Anything, "session-1").Return(result, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/sessions/session-1/summary", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, float64(42), response["faces_detected"])

	chart := response["chart"].([]interface{})
	assert.Len(t, chart, 2)
	first := chart[0].(map[string]interface{})
	assert.Equal(t, "happy", first["label"])

	text := response["text"].(string)
	assert.Contains(t, text, `"happy" was detected 30 times`)
}

func TestGetTranscriptTextFormat(t *testing.T) {
	mockRepo := new(MockRepo)
	api := &API{repo: mockRepo}
	router := setupTestRouter(api)

	transcript := &models.Transcript{
		ID:        "transcript-1",
		SessionID: "session-1",
		Language:  "english",
		Segments: models.TranscriptSegments{
			{Start: 0, End: 2, Text: "Hello."},
		},
	}

	mockRepo.On("GetTranscriptBySessionID", mock.Anything, "session-1").Return(transcript, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/sessions/session-1/transcript?format=text", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[0.00s - 2.00s]: Hello.\n", w.Body.String())
}

func TestGetArtifactURL(t *testing.T) {
	mockRepo := new(MockRepo)
	mockStore := new(MockObjectStore)
	api := &API{repo: mockRepo, storage: mockStore}
	router := setupTestRouter(api)

	result := &models.PipelineResult{
		ID:        "result-1",
		SessionID: "session-1",
		OutputKey: "sessions/session-1/outputs/job-1/annotated.mp4",
	}

	mockRepo.On("GetResultBySessionID", mock.Anything, "session-1").Return(result, nil)
	mockStore.On("GetURL", mock.Anything, result.OutputKey).
		Return("https://storage.example.com/signed", nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/sessions/session-1/artifact", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "https://storage.example.com/signed", response["url"])
}

func TestGetSessionNotFound(t *testing.T) {
	mockRepo := new(MockRepo)
	mockCache := new(MockCache)
	api := &API{repo: mockRepo, cache: mockCache}
	router := setupTestRouter(api)

	mockCache.On("GetSession", mock.Anything, "missing").Return(nil, nil)
	mockRepo.On("GetSession", mock.Anything, "missing").
		Return(nil, assertableError("session not found"))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/sessions/missing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSessionServedFromCache(t *testing.T) {
	mockRepo := new(MockRepo)
	mockCache := new(MockCache)
	api := &API{repo: mockRepo, cache: mockCache}
	router := setupTestRouter(api)

	session := &models.Session{ID: "session-1", Status: models.SessionStatusCompleted}
	mockCache.On("GetSession", mock.Anything, "session-1").Return(session, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/sessions/session-1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var got models.Session
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "session-1", got.ID)

	mockRepo.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
}

func TestGetJobFillsCacheOnMiss(t *testing.T) {
	mockRepo := new(MockRepo)
	mockCache := new(MockCache)
	api := &API{repo: mockRepo, cache: mockCache}
	router := setupTestRouter(api)

	job := &models.AnalysisJob{ID: "job-1", Status: models.JobStatusQueued}

	mockCache.On("GetJob", mock.Anything, "job-1").Return(nil, nil)
	mockRepo.On("GetJob", mock.Anything, "job-1").Return(job, nil)
	mockCache.On("SetJob", mock.Anything, job, mock.Anything).Return(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/jobs/job-1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockCache.AssertExpectations(t)
}

func TestGetJobResult(t *testing.T) {
	mockRepo := new(MockRepo)
	api := &API{repo: mockRepo}
	router := setupTestRouter(api)

	result := &models.PipelineResult{
		ID:        "result-1",
		JobID:     "job-1",
		SessionID: "session-1",
		OutputKey: "sessions/session-1/outputs/job-1/annotated.mp4",
	}

	mockRepo.On("GetResultByJobID", mock.Anything, "job-1").Return(result, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/jobs/job-1/result", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var got models.PipelineResult
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, result.OutputKey, got.OutputKey)
}

func TestFetchSessionRateLimited(t *testing.T) {
	mockCache := new(MockCache)
	api := &API{cache: mockCache}
	router := setupTestRouter(api)

	mockCache.On("CheckRateLimit", mock.Anything, mock.Anything, int64(fetchRateLimit), fetchRateWindow).
		Return(false, nil)

	body := bytes.NewBufferString(`{"url":"https://example.com/video"}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/sessions/fetch", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	mockCache.AssertExpectations(t)
}

type assertableError string

func (e assertableError) Error() string { return string(e) }
