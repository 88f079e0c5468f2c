package models

import (
	"time"
)

// Session represents one user interaction with the dashboard: a single
// source video plus whatever flows (annotation, transcription) the user
// launched against it. It replaces any process-wide "current video" state.
type Session struct {
	ID        string    `json:"id" db:"id"`
	Filename  string    `json:"filename" db:"filename"`
	SourceURL string    `json:"source_url,omitempty" db:"source_url"`
	SourceKey string    `json:"source_key" db:"source_key"`
	Size      int64     `json:"size" db:"size"`
	Duration  float64   `json:"duration" db:"duration"`
	Width     int       `json:"width" db:"width"`
	Height    int       `json:"height" db:"height"`
	FrameRate float64   `json:"frame_rate" db:"frame_rate"`
	Codec     string    `json:"codec" db:"codec"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SessionStatus constants
const (
	SessionStatusPending    = "pending"
	SessionStatusFetching   = "fetching"
	SessionStatusReady      = "ready"
	SessionStatusProcessing = "processing"
	SessionStatusCompleted  = "completed"
	SessionStatusFailed     = "failed"
)

// SessionStatusForJobs derives a session's status from its jobs:
// processing while any job is still queued or running, failed once all
// jobs finished and at least one failed, completed otherwise. The second
// return is false when there are no jobs to judge by.
func SessionStatusForJobs(jobs []*AnalysisJob) (string, bool) {
	if len(jobs) == 0 {
		return "", false
	}

	allFinished := true
	anyFailed := false
	for _, job := range jobs {
		if job.Status == JobStatusQueued || job.Status == JobStatusProcessing {
			allFinished = false
		}
		if job.Status == JobStatusFailed {
			anyFailed = true
		}
	}

	switch {
	case !allFinished:
		return SessionStatusProcessing, true
	case anyFailed:
		return SessionStatusFailed, true
	default:
		return SessionStatusCompleted, true
	}
}
