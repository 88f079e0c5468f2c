package pipeline

import (
	"github.com/speaksense/speaksense/pkg/models"
)

// Aggregator tallies dominant-emotion occurrences across all processed
// frames. It is owned exclusively by one pipeline run; no concurrent
// writers exist by construction.
type Aggregator struct {
	counts models.EmotionHistogram
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{counts: make(models.EmotionHistogram)}
}

// Record counts each detection's dominant emotion. Unresolved labels fall
// back to "Unknown"; labels never seen before are added on first
// occurrence.
func (a *Aggregator) Record(detections []models.FaceDetection) {
	for _, d := range detections {
		a.counts[d.Emotion()]++
	}
}

// Snapshot returns a copy of the current totals. Valid at any time,
// including before any frame was processed.
func (a *Aggregator) Snapshot() models.EmotionHistogram {
	out := make(models.EmotionHistogram, len(a.counts))
	for label, n := range a.counts {
		out[label] = n
	}
	return out
}

// Total returns the number of detections recorded so far.
func (a *Aggregator) Total() int64 {
	return a.counts.Total()
}
