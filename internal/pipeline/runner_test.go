package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/speaksense/speaksense/internal/logging"
	"github.com/speaksense/speaksense/internal/video"
	"github.com/speaksense/speaksense/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// fakeSource yields a fixed number of frames without touching OpenCV.
type fakeSource struct {
	meta     video.Metadata
	frames   int
	read     int
	closes   int
	closeErr error
}

func (f *fakeSource) Metadata() video.Metadata { return f.meta }

func (f *fakeSource) Next() (*gocv.Mat, error) {
	if f.read >= f.frames {
		return nil, io.EOF
	}
	f.read++
	return &gocv.Mat{}, nil
}

func (f *fakeSource) Close() error {
	f.closes++
	return f.closeErr
}

type fakeSink struct {
	written  int
	closes   int
	writeErr error
	closeErr error
}

func (f *fakeSink) Write(gocv.Mat) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written++
	return nil
}

func (f *fakeSink) FramesWritten() int { return f.written }

func (f *fakeSink) Close() error {
	f.closes++
	return f.closeErr
}

// scriptedDetector answers per frame index.
type scriptedDetector struct {
	fn    func(index int) ([]models.FaceDetection, error)
	calls int
}

func (d *scriptedDetector) Detect(_ context.Context, _ *gocv.Mat) ([]models.FaceDetection, error) {
	i := d.calls
	d.calls++
	return d.fn(i)
}

func (d *scriptedDetector) Close() error { return nil }

type recordingAnnotator struct {
	calls      int
	detections int
}

func (a *recordingAnnotator) Annotate(_ *gocv.Mat, detections []models.FaceDetection) {
	a.calls++
	a.detections += len(detections)
}

func happyDetection() models.FaceDetection {
	return models.FaceDetection{
		Region:          models.Region{X: 10, Y: 10, Width: 50, Height: 50},
		DominantEmotion: "happy",
	}
}

func warnRecords(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var warns []map[string]interface{}
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var record map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		if record["level"] == "warn" {
			warns = append(warns, record)
		}
	}
	return warns
}

func TestRunTenFrameScenario(t *testing.T) {
	// Frames 3 and 7 fail detection; every other frame has one happy face.
	src := &fakeSource{meta: video.Metadata{FrameRate: 25, Width: 320, Height: 240, FrameCount: 10}, frames: 10}
	sink := &fakeSink{}
	det := &scriptedDetector{fn: func(i int) ([]models.FaceDetection, error) {
		if i == 3 || i == 7 {
			return nil, errors.New("simulated detector failure")
		}
		return []models.FaceDetection{happyDetection()}, nil
	}}
	ann := &recordingAnnotator{}

	var logBuf bytes.Buffer
	log := logging.NewWithWriter(&logBuf, zerolog.InfoLevel)

	r := NewRunner(det, ann, log, "job-1", nil)
	result, err := r.Run(context.Background(),
		func() (FrameSource, error) { return src, nil },
		func(video.Metadata) (FrameSink, error) { return sink, nil },
	)

	require.NoError(t, err)
	assert.Equal(t, StateDone, r.State())

	// Every frame is written, failed or not.
	assert.Equal(t, 10, sink.written)
	assert.Equal(t, 10, result.FramesProcessed)
	assert.Equal(t, 2, result.FramesFailed)

	// Histogram counts detections, not frames.
	assert.Equal(t, models.EmotionHistogram{"happy": 8}, result.Histogram)

	// The annotator ran only for the 8 successful frames.
	assert.Equal(t, 8, ann.calls)

	// Exactly two warnings, citing the failed frame indices.
	warns := warnRecords(t, &logBuf)
	require.Len(t, warns, 2)
	assert.Equal(t, float64(3), warns[0]["frame_index"])
	assert.Equal(t, float64(7), warns[1]["frame_index"])

	// Resources released.
	assert.GreaterOrEqual(t, src.closes, 1)
	assert.GreaterOrEqual(t, sink.closes, 1)
}

func TestRunNoFacesAnywhere(t *testing.T) {
	src := &fakeSource{meta: video.Metadata{FrameRate: 30, Width: 320, Height: 240, FrameCount: 5}, frames: 5}
	sink := &fakeSink{}
	det := &scriptedDetector{fn: func(int) ([]models.FaceDetection, error) {
		return nil, nil
	}}
	ann := &recordingAnnotator{}

	r := NewRunner(det, ann, logging.NewWithWriter(io.Discard, zerolog.InfoLevel), "job-2", nil)
	result, err := r.Run(context.Background(),
		func() (FrameSource, error) { return src, nil },
		func(video.Metadata) (FrameSink, error) { return sink, nil },
	)

	require.NoError(t, err)
	assert.Equal(t, 5, sink.written)
	assert.Empty(t, result.Histogram)
	// Nothing was drawn.
	assert.Equal(t, 0, ann.detections)
}

func TestRunMultipleFacesPerFrame(t *testing.T) {
	src := &fakeSource{meta: video.Metadata{FrameRate: 30, Width: 320, Height: 240, FrameCount: 4}, frames: 4}
	sink := &fakeSink{}
	det := &scriptedDetector{fn: func(i int) ([]models.FaceDetection, error) {
		if i%2 == 0 {
			return []models.FaceDetection{
				happyDetection(),
				{Region: models.Region{X: 100, Y: 10, Width: 40, Height: 40}, DominantEmotion: "sad"},
			}, nil
		}
		return []models.FaceDetection{}, nil
	}}

	r := NewRunner(det, &recordingAnnotator{}, logging.NewWithWriter(io.Discard, zerolog.InfoLevel), "job-3", nil)
	result, err := r.Run(context.Background(),
		func() (FrameSource, error) { return src, nil },
		func(video.Metadata) (FrameSink, error) { return sink, nil },
	)

	require.NoError(t, err)
	assert.Equal(t, int64(4), result.Histogram.Total())
	assert.Equal(t, models.EmotionHistogram{"happy": 2, "sad": 2}, result.Histogram)
}

func TestProgressSaturatesOnUndercount(t *testing.T) {
	// Container claims 5 frames but actually decodes 8.
	src := &fakeSource{meta: video.Metadata{FrameRate: 25, Width: 320, Height: 240, FrameCount: 5}, frames: 8}
	sink := &fakeSink{}
	det := &scriptedDetector{fn: func(int) ([]models.FaceDetection, error) { return nil, nil }}

	var progress []float64
	r := NewRunner(det, &recordingAnnotator{}, logging.NewWithWriter(io.Discard, zerolog.InfoLevel), "job-4",
		func(p float64) { progress = append(progress, p) })

	_, err := r.Run(context.Background(),
		func() (FrameSource, error) { return src, nil },
		func(video.Metadata) (FrameSink, error) { return sink, nil },
	)
	require.NoError(t, err)

	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1], "progress must be non-decreasing")
	}
	for _, p := range progress {
		assert.LessOrEqual(t, p, 1.0, "progress must never exceed 1.0")
	}
	assert.Equal(t, 1.0, progress[len(progress)-1], "progress must end at 1.0")
}

func TestProgressIndeterminateWithoutFrameCount(t *testing.T) {
	src := &fakeSource{meta: video.Metadata{FrameRate: 25, Width: 320, Height: 240, FrameCount: 0}, frames: 3}
	sink := &fakeSink{}
	det := &scriptedDetector{fn: func(int) ([]models.FaceDetection, error) { return nil, nil }}

	var progress []float64
	r := NewRunner(det, &recordingAnnotator{}, logging.NewWithWriter(io.Discard, zerolog.InfoLevel), "job-5",
		func(p float64) { progress = append(progress, p) })

	_, err := r.Run(context.Background(),
		func() (FrameSource, error) { return src, nil },
		func(video.Metadata) (FrameSink, error) { return sink, nil },
	)
	require.NoError(t, err)

	// No per-frame estimates; only the final completion signal.
	assert.Equal(t, []float64{1.0}, progress)
}

func TestCancellationAtFrameBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	src := &fakeSource{meta: video.Metadata{FrameRate: 25, Width: 320, Height: 240, FrameCount: 100}, frames: 100}
	sink := &fakeSink{}
	det := &scriptedDetector{fn: func(i int) ([]models.FaceDetection, error) {
		if i == 4 {
			cancel()
		}
		return []models.FaceDetection{happyDetection()}, nil
	}}

	r := NewRunner(det, &recordingAnnotator{}, logging.NewWithWriter(io.Discard, zerolog.InfoLevel), "job-6", nil)
	result, err := r.Run(ctx,
		func() (FrameSource, error) { return src, nil },
		func(video.Metadata) (FrameSink, error) { return sink, nil },
	)

	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, StateDone, r.State())

	// The in-flight frame was still written; no further frames were read.
	assert.Equal(t, 5, sink.written)
	assert.Equal(t, 5, src.read)

	// Both resources were still released.
	assert.GreaterOrEqual(t, src.closes, 1)
	assert.GreaterOrEqual(t, sink.closes, 1)
}

func TestRunFailsWhenSourceCannotOpen(t *testing.T) {
	det := &scriptedDetector{fn: func(int) ([]models.FaceDetection, error) { return nil, nil }}
	r := NewRunner(det, &recordingAnnotator{}, logging.NewWithWriter(io.Discard, zerolog.InfoLevel), "job-7", nil)

	_, err := r.Run(context.Background(),
		func() (FrameSource, error) { return nil, video.ErrSourceUnavailable },
		func(video.Metadata) (FrameSink, error) { return &fakeSink{}, nil },
	)

	assert.ErrorIs(t, err, video.ErrSourceUnavailable)
	assert.Equal(t, StateFailed, r.State())
}

func TestRunFailsWhenSinkCannotOpen(t *testing.T) {
	src := &fakeSource{meta: video.Metadata{FrameRate: 25, Width: 320, Height: 240, FrameCount: 10}, frames: 10}
	det := &scriptedDetector{fn: func(int) ([]models.FaceDetection, error) { return nil, nil }}
	r := NewRunner(det, &recordingAnnotator{}, logging.NewWithWriter(io.Discard, zerolog.InfoLevel), "job-8", nil)

	_, err := r.Run(context.Background(),
		func() (FrameSource, error) { return src, nil },
		func(video.Metadata) (FrameSink, error) { return nil, video.ErrSinkFailure },
	)

	assert.ErrorIs(t, err, video.ErrSinkFailure)
	assert.Equal(t, StateFailed, r.State())
	// Source must be released even though the sink never opened.
	assert.GreaterOrEqual(t, src.closes, 1)
}

func TestRunFailsOnSinkWriteError(t *testing.T) {
	src := &fakeSource{meta: video.Metadata{FrameRate: 25, Width: 320, Height: 240, FrameCount: 10}, frames: 10}
	sink := &fakeSink{writeErr: video.ErrSinkFailure}
	det := &scriptedDetector{fn: func(int) ([]models.FaceDetection, error) { return nil, nil }}

	r := NewRunner(det, &recordingAnnotator{}, logging.NewWithWriter(io.Discard, zerolog.InfoLevel), "job-9", nil)

	_, err := r.Run(context.Background(),
		func() (FrameSource, error) { return src, nil },
		func(video.Metadata) (FrameSink, error) { return sink, nil },
	)

	assert.ErrorIs(t, err, video.ErrSinkFailure)
	assert.Equal(t, StateFailed, r.State())
	assert.GreaterOrEqual(t, src.closes, 1)
	assert.GreaterOrEqual(t, sink.closes, 1)
}

func TestRunFailsWhenSinkCannotFinalize(t *testing.T) {
	src := &fakeSource{meta: video.Metadata{FrameRate: 25, Width: 320, Height: 240, FrameCount: 2}, frames: 2}
	sink := &fakeSink{closeErr: video.ErrSinkFailure}
	det := &scriptedDetector{fn: func(int) ([]models.FaceDetection, error) { return nil, nil }}

	r := NewRunner(det, &recordingAnnotator{}, logging.NewWithWriter(io.Discard, zerolog.InfoLevel), "job-10", nil)

	_, err := r.Run(context.Background(),
		func() (FrameSource, error) { return src, nil },
		func(video.Metadata) (FrameSink, error) { return sink, nil },
	)

	assert.ErrorIs(t, err, video.ErrSinkFailure)
	assert.Equal(t, StateFailed, r.State())
	assert.GreaterOrEqual(t, src.closes, 1)
}
