package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/speaksense/speaksense/pkg/models"
	"gocv.io/x/gocv"
)

// HTTPDetector calls a facial-emotion analysis service over HTTP. The
// frame is posted JPEG-encoded to {baseURL}/analyze; the service answers
// with either a single detection object or an array of them, which is
// normalized to a list here, at the boundary.
type HTTPDetector struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDetector creates a detector client for the given service URL.
func NewHTTPDetector(baseURL string, timeout time.Duration) *HTTPDetector {
	return &HTTPDetector{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Detect encodes the frame and asks the service for face detections.
func (d *HTTPDetector) Detect(ctx context.Context, frame *gocv.Mat) ([]models.FaceDetection, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/analyze", bytes.NewReader(buf.GetBytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("detector %s: %s", resp.Status, string(body))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("detector read: %w", err)
	}

	return normalizeDetections(raw)
}

// Close implements Detector.
func (d *HTTPDetector) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

// normalizeDetections turns the service's heterogeneous return shape
// (single object vs. array) into a flat detection list. An empty body or
// empty array means no faces, which is a normal outcome.
func normalizeDetections(raw []byte) ([]models.FaceDetection, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var list []models.FaceDetection
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var single models.FaceDetection
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("malformed detector response: %w", err)
	}
	return []models.FaceDetection{single}, nil
}
