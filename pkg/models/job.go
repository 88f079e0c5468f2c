package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// AnalysisJob represents one queued run over a session's source video:
// either an emotion-annotation pipeline run or a transcription run.
type AnalysisJob struct {
	ID          string         `json:"id" db:"id"`
	SessionID   string         `json:"session_id" db:"session_id"`
	Kind        string         `json:"kind" db:"kind"`
	Status      string         `json:"status" db:"status"`
	Progress    float64        `json:"progress" db:"progress"`
	ErrorMsg    string         `json:"error_msg,omitempty" db:"error_msg"`
	WorkerID    string         `json:"worker_id,omitempty" db:"worker_id"`
	StartedAt   *time.Time     `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
	Config      AnalysisConfig `json:"config" db:"config"`
}

// AnalysisConfig holds per-job settings.
type AnalysisConfig struct {
	OutputFourCC string `json:"output_fourcc,omitempty"`
	OutputFormat string `json:"output_format,omitempty"`
	Language     string `json:"language,omitempty"`
}

// Value implements driver.Valuer for database storage
func (ac AnalysisConfig) Value() (driver.Value, error) {
	return json.Marshal(ac)
}

// Scan implements sql.Scanner for database retrieval
func (ac *AnalysisConfig) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, ac)
}

// JobKind constants
const (
	JobKindAnnotation    = "annotation"
	JobKindTranscription = "transcription"
)

// JobStatus constants
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)
