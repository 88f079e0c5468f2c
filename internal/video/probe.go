package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/speaksense/speaksense/pkg/models"
)

// Prober extracts container metadata through ffprobe. The API uses it to
// describe an uploaded or fetched video before any pipeline run; frame
// decoding itself goes through Source.
type Prober struct {
	ffprobePath string
}

// NewProber creates a new Prober
func NewProber(ffprobePath string) *Prober {
	return &Prober{ffprobePath: ffprobePath}
}

type probeOutput struct {
	Format  formatInfo   `json:"format"`
	Streams []streamInfo `json:"streams"`
}

type formatInfo struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

type streamInfo struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

// Probe runs ffprobe against a local file and returns the raw metadata.
func (p *Prober) Probe(ctx context.Context, inputPath string) (*probeOutput, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: ffprobe: %v, stderr: %s", ErrSourceUnavailable, err, stderr.String())
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	return &out, nil
}

// Describe fills a session's container metadata from a local file.
func (p *Prober) Describe(ctx context.Context, inputPath string, session *models.Session) error {
	out, err := p.Probe(ctx, inputPath)
	if err != nil {
		return err
	}

	if duration, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		session.Duration = duration
	}
	if size, err := strconv.ParseInt(out.Format.Size, 10, 64); err == nil {
		session.Size = size
	}

	for _, stream := range out.Streams {
		if stream.CodecType != "video" {
			continue
		}
		session.Width = stream.Width
		session.Height = stream.Height
		session.Codec = stream.CodecName
		session.FrameRate = parseFrameRate(stream.AvgFrameRate)
		return nil
	}

	return fmt.Errorf("%w: %s: no video stream", ErrSourceUnavailable, inputPath)
}

// parseFrameRate parses ffprobe rational rates like "30000/1001".
func parseFrameRate(rate string) float64 {
	parts := strings.Split(rate, "/")
	if len(parts) != 2 {
		return 0
	}
	num, _ := strconv.ParseFloat(parts[0], 64)
	den, _ := strconv.ParseFloat(parts[1], 64)
	if den == 0 {
		return 0
	}
	return num / den
}
