package video

import (
	"errors"
	"fmt"
	"io"

	"gocv.io/x/gocv"
)

// ErrSourceUnavailable indicates the input video could not be opened or
// decoded. Fatal to a pipeline run.
var ErrSourceUnavailable = errors.New("video source unavailable")

// Metadata describes an opened container. FrameCount comes from container
// metadata and may be zero or wrong for some formats; it is a progress
// hint, never a correctness input.
type Metadata struct {
	FrameRate  float64
	Width      int
	Height     int
	FrameCount int
}

// Source yields decoded frames from a video container, in order. The
// frame buffer is owned by the Source and reused across reads.
type Source struct {
	path   string
	cap    *gocv.VideoCapture
	buf    gocv.Mat
	meta   Metadata
	closed bool
}

// OpenSource opens a video container for frame-by-frame reading.
func OpenSource(path string) (*Source, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, path)
	}

	meta := Metadata{
		FrameRate:  cap.Get(gocv.VideoCaptureFPS),
		Width:      int(cap.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(cap.Get(gocv.VideoCaptureFrameHeight)),
		FrameCount: int(cap.Get(gocv.VideoCaptureFrameCount)),
	}
	if meta.FrameRate <= 0 || meta.Width <= 0 || meta.Height <= 0 {
		cap.Close()
		return nil, fmt.Errorf("%w: %s: no decodable video stream", ErrSourceUnavailable, path)
	}

	return &Source{path: path, cap: cap, buf: gocv.NewMat(), meta: meta}, nil
}

// Metadata reports frame rate, dimensions and the estimated frame count.
func (s *Source) Metadata() Metadata {
	return s.meta
}

// Next reads the next frame. The returned Mat is owned by the Source and
// only valid until the following Next or Close call. Returns io.EOF when
// the stream ends.
func (s *Source) Next() (*gocv.Mat, error) {
	if ok := s.cap.Read(&s.buf); !ok || s.buf.Empty() {
		return nil, io.EOF
	}
	return &s.buf, nil
}

// Close releases the underlying capture and frame buffer. Safe to call
// more than once; the pipeline calls it on every exit path, including
// aborts.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.buf.Close(); err != nil {
		s.cap.Close()
		return err
	}
	return s.cap.Close()
}
