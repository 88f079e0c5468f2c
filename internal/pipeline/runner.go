package pipeline

import (
	"context"
	"errors"
	"io"

	"github.com/speaksense/speaksense/internal/detect"
	"github.com/speaksense/speaksense/internal/logging"
	"github.com/speaksense/speaksense/internal/metrics"
	"github.com/speaksense/speaksense/internal/video"
	"github.com/speaksense/speaksense/pkg/models"
	"gocv.io/x/gocv"
)

// State of a pipeline run.
type State int

const (
	StateIdle State = iota
	StateOpening
	StateStreaming
	StateFinalizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FrameSource yields decoded frames in order. The returned Mat is owned
// by the source and valid until the next call.
type FrameSource interface {
	Metadata() video.Metadata
	Next() (*gocv.Mat, error)
	Close() error
}

// FrameSink accumulates frames into an output container.
type FrameSink interface {
	Write(frame gocv.Mat) error
	FramesWritten() int
	Close() error
}

// Annotator draws detections onto a frame in place.
type Annotator interface {
	Annotate(frame *gocv.Mat, detections []models.FaceDetection)
}

// Result is what one completed run yields besides the output artifact.
type Result struct {
	Histogram       models.EmotionHistogram
	FramesProcessed int
	FramesFailed    int
	Cancelled       bool
}

// Runner drives one annotation run: source → detector → annotator → sink,
// one frame at a time, strictly in sequence. Per-frame detector failures
// are logged and skipped; the frame is still written unannotated. The
// run only fails while opening the source or sink, on a sink write, or
// while finalizing the sink.
type Runner struct {
	detector  detect.Detector
	annotator Annotator
	log       *logging.Logger
	jobID     string

	onProgress   func(float64)
	lastProgress float64
	state        State
}

// NewRunner creates a runner for one job. onProgress may be nil; when
// set, it receives monotonically non-decreasing values in [0, 1].
func NewRunner(detector detect.Detector, annotator Annotator, log *logging.Logger, jobID string, onProgress func(float64)) *Runner {
	return &Runner{
		detector:   detector,
		annotator:  annotator,
		log:        log,
		jobID:      jobID,
		onProgress: onProgress,
		state:      StateIdle,
	}
}

// State reports the run's current state.
func (r *Runner) State() State {
	return r.state
}

// Run executes the pipeline. openSink receives the source metadata so the
// output container matches the source frame rate and resolution. Source
// and sink are released on every exit path. Cancellation through ctx
// takes effect at frame boundaries only: the run stops reading and
// finalizes cleanly, returning a Result with Cancelled set.
func (r *Runner) Run(ctx context.Context, openSource func() (FrameSource, error), openSink func(video.Metadata) (FrameSink, error)) (*Result, error) {
	r.state = StateOpening

	src, err := openSource()
	if err != nil {
		r.state = StateFailed
		return nil, err
	}
	defer src.Close()

	meta := src.Metadata()

	sink, err := openSink(meta)
	if err != nil {
		r.state = StateFailed
		return nil, err
	}
	defer sink.Close()

	r.state = StateStreaming

	agg := NewAggregator()
	frameIndex := 0
	framesFailed := 0
	cancelled := false

	for {
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
		if cancelled {
			break
		}

		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Treat a mid-stream decode error like end of stream: the
			// decodable prefix is still finalized into a valid artifact.
			r.log.WithJobID(r.jobID).WithError(err).Warnf("decode stopped at frame %d", frameIndex)
			break
		}

		detections, derr := r.detector.Detect(ctx, frame)
		if derr != nil {
			framesFailed++
			metrics.DetectionFailuresTotal.Inc()
			r.log.LogDetectionFailure(r.jobID, frameIndex, derr)
		} else {
			r.annotator.Annotate(frame, detections)
			agg.Record(detections)
			for _, d := range detections {
				metrics.FacesDetectedTotal.WithLabelValues(d.Emotion()).Inc()
			}
		}

		// The frame is written whether or not detection succeeded:
		// output frame count always equals source frame count.
		if werr := sink.Write(*frame); werr != nil {
			r.state = StateFailed
			return nil, werr
		}

		metrics.FramesProcessedTotal.Inc()
		frameIndex++
		r.reportProgress(frameIndex, meta.FrameCount)
	}

	r.state = StateFinalizing

	if err := sink.Close(); err != nil {
		r.state = StateFailed
		return nil, err
	}
	if err := src.Close(); err != nil {
		r.log.WithJobID(r.jobID).WithError(err).Warn("failed to release source")
	}

	if !cancelled {
		r.report(1.0)
	}
	r.state = StateDone

	return &Result{
		Histogram:       agg.Snapshot(),
		FramesProcessed: frameIndex,
		FramesFailed:    framesFailed,
		Cancelled:       cancelled,
	}, nil
}

// reportProgress reports (processed / estimated count), saturating at 1.0
// when the container under-reported its frame count. A zero or negative
// estimate degrades to no intermediate reporting; the final 1.0 is still
// sent after finalizing.
func (r *Runner) reportProgress(processed, estimated int) {
	if estimated <= 0 {
		return
	}
	p := float64(processed) / float64(estimated)
	if p > 1.0 {
		p = 1.0
	}
	r.report(p)
}

func (r *Runner) report(p float64) {
	if r.onProgress == nil || p < r.lastProgress {
		return
	}
	r.lastProgress = p
	r.onProgress(p)
}
