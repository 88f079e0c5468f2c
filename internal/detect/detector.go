package detect

import (
	"context"

	"github.com/speaksense/speaksense/pkg/models"
	"gocv.io/x/gocv"
)

// Detector analyzes one frame and returns the detected faces, each tagged
// with its dominant emotion. A frame with no faces is a normal empty
// result, not an error. Implementations are opaque to the pipeline.
type Detector interface {
	Detect(ctx context.Context, frame *gocv.Mat) ([]models.FaceDetection, error)

	// Close releases any resources held by the detector.
	Close() error
}
