package pipeline

import (
	"testing"

	"github.com/speaksense/speaksense/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestAggregatorEmptySnapshot(t *testing.T) {
	agg := NewAggregator()

	snap := agg.Snapshot()
	assert.Empty(t, snap)
	assert.Equal(t, int64(0), agg.Total())
}

func TestAggregatorCountsDetectionsNotFrames(t *testing.T) {
	agg := NewAggregator()

	// One frame with three faces.
	agg.Record([]models.FaceDetection{
		{DominantEmotion: "happy"},
		{DominantEmotion: "happy"},
		{DominantEmotion: "sad"},
	})
	// One frame with no faces.
	agg.Record(nil)

	snap := agg.Snapshot()
	assert.Equal(t, models.EmotionHistogram{"happy": 2, "sad": 1}, snap)
	assert.Equal(t, int64(3), agg.Total())
}

func TestAggregatorUnknownFallback(t *testing.T) {
	agg := NewAggregator()

	agg.Record([]models.FaceDetection{
		{DominantEmotion: ""},
		{DominantEmotion: ""},
	})

	assert.Equal(t, models.EmotionHistogram{models.UnknownEmotion: 2}, agg.Snapshot())
}

func TestAggregatorOpenVocabulary(t *testing.T) {
	agg := NewAggregator()

	// A label outside any fixed vocabulary is counted on first occurrence,
	// not dropped.
	agg.Record([]models.FaceDetection{{DominantEmotion: "contempt"}})

	assert.Equal(t, models.EmotionHistogram{"contempt": 1}, agg.Snapshot())
}

func TestAggregatorSnapshotIsACopy(t *testing.T) {
	agg := NewAggregator()
	agg.Record([]models.FaceDetection{{DominantEmotion: "happy"}})

	snap := agg.Snapshot()
	snap["happy"] = 99

	assert.Equal(t, models.EmotionHistogram{"happy": 1}, agg.Snapshot())
}
