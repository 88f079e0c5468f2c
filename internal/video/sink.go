package video

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrSinkFailure indicates the output container could not be written or
// finalized. Fatal to a pipeline run.
var ErrSinkFailure = errors.New("video sink failure")

// Sink accumulates annotated frames into an output container at the
// source frame rate and resolution.
type Sink struct {
	path   string
	writer *gocv.VideoWriter
	frames int
	closed bool
}

// OpenSink opens an output container with the given fourcc codec at the
// source dimensions. Failing to open with the requested codec is fatal.
func OpenSink(path, fourcc string, fps float64, width, height int) (*Sink, error) {
	writer, err := gocv.VideoWriterFile(path, fourcc, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSinkFailure, path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("%w: %s: codec %q not available", ErrSinkFailure, path, fourcc)
	}

	return &Sink{path: path, writer: writer}, nil
}

// Write appends one frame to the output container.
func (k *Sink) Write(frame gocv.Mat) error {
	if err := k.writer.Write(frame); err != nil {
		return fmt.Errorf("%w: frame %d: %v", ErrSinkFailure, k.frames, err)
	}
	k.frames++
	return nil
}

// FramesWritten reports how many frames have been written so far.
func (k *Sink) FramesWritten() int {
	return k.frames
}

// Path returns the output artifact path.
func (k *Sink) Path() string {
	return k.path
}

// Close flushes and finalizes the container. Safe to call more than once.
func (k *Sink) Close() error {
	if k.closed {
		return nil
	}
	k.closed = true
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("%w: finalize %s: %v", ErrSinkFailure, k.path, err)
	}
	return nil
}
