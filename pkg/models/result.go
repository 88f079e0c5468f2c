package models

import (
	"time"
)

// PipelineResult is what one completed annotation run produces: the output
// artifact plus the aggregate emotion histogram.
type PipelineResult struct {
	ID              string           `json:"id" db:"id"`
	JobID           string           `json:"job_id" db:"job_id"`
	SessionID       string           `json:"session_id" db:"session_id"`
	OutputKey       string           `json:"output_key" db:"output_key"`
	FramesProcessed int              `json:"frames_processed" db:"frames_processed"`
	FramesFailed    int              `json:"frames_failed" db:"frames_failed"`
	FacesDetected   int64            `json:"faces_detected" db:"faces_detected"`
	Histogram       EmotionHistogram `json:"histogram" db:"histogram"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}
