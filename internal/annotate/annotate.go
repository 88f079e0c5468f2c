package annotate

import (
	"image"

	"github.com/speaksense/speaksense/pkg/models"
	"gocv.io/x/gocv"
)

// Annotator draws face detections onto frames: a rectangle outline per
// face, color-coded by dominant emotion, with the label text just above
// the rectangle's top edge.
type Annotator struct {
	fontScale float64
	thickness int
}

// New creates an Annotator. Zero values fall back to the defaults the
// dashboard renders well at.
func New(fontScale float64, thickness int) *Annotator {
	if fontScale <= 0 {
		fontScale = 0.9
	}
	if thickness <= 0 {
		thickness = 2
	}
	return &Annotator{fontScale: fontScale, thickness: thickness}
}

// Annotate draws the detections onto the frame in place, in the order
// supplied. Overlapping boxes may collide visually; that is accepted.
// Regions partially or fully outside frame bounds are tolerated: OpenCV
// clips rectangle drawing to the frame.
func (a *Annotator) Annotate(frame *gocv.Mat, detections []models.FaceDetection) {
	for _, det := range detections {
		label := det.Emotion()
		c := ColorFor(label)
		r := det.Region

		rect := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
		gocv.Rectangle(frame, rect, c, a.thickness)

		// Label always sits above the top edge, even when that puts it
		// outside the frame; OpenCV clips it.
		org := image.Pt(r.X, r.Y-10)
		gocv.PutText(frame, label, org, gocv.FontHersheySimplex, a.fontScale, c, a.thickness)
	}
}
