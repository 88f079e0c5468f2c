package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speaksense_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "speaksense_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Session Metrics
	SessionsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speaksense_sessions_created_total",
			Help: "Total number of sessions created",
		},
		[]string{"source"}, // upload, fetch
	)

	VideoUploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "speaksense_video_upload_size_bytes",
			Help:    "Size of uploaded videos in bytes",
			Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 12), // 1MB to 2GB
		},
	)

	// Job Metrics
	JobsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speaksense_jobs_created_total",
			Help: "Total number of analysis jobs created",
		},
		[]string{"kind"},
	)

	JobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speaksense_jobs_completed_total",
			Help: "Total number of finished analysis jobs",
		},
		[]string{"kind", "status"},
	)

	JobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "speaksense_jobs_in_progress",
			Help: "Number of analysis jobs currently processing",
		},
	)

	// Pipeline Metrics
	FramesProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "speaksense_frames_processed_total",
			Help: "Total number of frames written through the annotation pipeline",
		},
	)

	DetectionFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "speaksense_detection_failures_total",
			Help: "Total number of per-frame detection failures (frames still written unannotated)",
		},
	)

	FacesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speaksense_faces_detected_total",
			Help: "Total number of face detections, by dominant emotion",
		},
		[]string{"emotion"},
	)

	PipelineDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "speaksense_pipeline_duration_seconds",
			Help:    "Wall-clock duration of annotation pipeline runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1h
		},
	)

	// Transcription Metrics
	TranscriptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speaksense_transcriptions_total",
			Help: "Total number of transcription runs",
		},
		[]string{"status"},
	)

	TranscriptionSegmentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "speaksense_transcription_segments_total",
			Help: "Total number of transcript segments produced",
		},
	)

	// Fetch Metrics
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speaksense_fetches_total",
			Help: "Total number of remote video downloads",
		},
		[]string{"status"},
	)
)

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordJobCreated records a new analysis job
func RecordJobCreated(kind string) {
	JobsCreatedTotal.WithLabelValues(kind).Inc()
}

// RecordJobCompleted records a finished analysis job
func RecordJobCompleted(kind, status string) {
	JobsCompletedTotal.WithLabelValues(kind, status).Inc()
}

// RecordFetch records a remote download attempt
func RecordFetch(status string) {
	FetchesTotal.WithLabelValues(status).Inc()
}
