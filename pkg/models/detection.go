package models

import (
	"database/sql/driver"
	"encoding/json"
)

// UnknownEmotion is the fallback label for detections whose dominant
// emotion is missing or not recognized.
const UnknownEmotion = "Unknown"

// Region is the pixel rectangle of one detected face. Coordinates may lie
// partially or fully outside frame bounds; consumers must tolerate that.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"w"`
	Height int `json:"h"`
}

// FaceDetection is one detected face in one frame, tagged with its
// dominant emotion. It is consumed within that frame's processing and
// never persisted individually.
type FaceDetection struct {
	Region          Region `json:"region"`
	DominantEmotion string `json:"dominant_emotion"`
}

// Emotion returns the detection's dominant emotion, defaulting to
// UnknownEmotion when the detector left it empty.
func (d FaceDetection) Emotion() string {
	if d.DominantEmotion == "" {
		return UnknownEmotion
	}
	return d.DominantEmotion
}

// EmotionHistogram maps emotion label to occurrence count across a whole
// video. Labels are open vocabulary: unseen labels are added on first
// occurrence.
type EmotionHistogram map[string]int64

// Total returns the number of detections counted, across all labels.
func (h EmotionHistogram) Total() int64 {
	var total int64
	for _, n := range h {
		total += n
	}
	return total
}

// Value implements driver.Valuer for database storage
func (h EmotionHistogram) Value() (driver.Value, error) {
	return json.Marshal(h)
}

// Scan implements sql.Scanner for database retrieval
func (h *EmotionHistogram) Scan(value interface{}) error {
	if value == nil {
		*h = make(EmotionHistogram)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, h)
}
