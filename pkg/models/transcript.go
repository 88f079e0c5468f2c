package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// TranscriptSegment is one timestamped span of transcribed speech.
// Segments cover the audio track in chronological, non-overlapping order.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptSegments is the ordered segment list for a whole track.
type TranscriptSegments []TranscriptSegment

// Value implements driver.Valuer for database storage
func (ts TranscriptSegments) Value() (driver.Value, error) {
	return json.Marshal(ts)
}

// Scan implements sql.Scanner for database retrieval
func (ts *TranscriptSegments) Scan(value interface{}) error {
	if value == nil {
		*ts = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, ts)
}

// Transcript is the stored result of one transcription run.
type Transcript struct {
	ID        string             `json:"id" db:"id"`
	JobID     string             `json:"job_id" db:"job_id"`
	SessionID string             `json:"session_id" db:"session_id"`
	Language  string             `json:"language,omitempty" db:"language"`
	Segments  TranscriptSegments `json:"segments" db:"segments"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
}
