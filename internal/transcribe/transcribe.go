package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	openai "github.com/sashabaranov/go-openai"
	"github.com/speaksense/speaksense/internal/config"
	"github.com/speaksense/speaksense/pkg/models"
)

// ErrTranscription indicates the speech-to-text step failed outright:
// unsupported codec, unreadable file, or a model-side failure. Fatal to
// the transcription flow only; the annotation pipeline is unaffected.
var ErrTranscription = errors.New("transcription failed")

// Engine produces a timestamped transcript for a local video file. A
// silent track yields an empty segment list, not an error.
type Engine interface {
	Transcribe(ctx context.Context, videoPath string) (models.TranscriptSegments, string, error)
}

// Whisper transcribes through a Whisper-family model. The audio track is
// first pulled out of the container with ffmpeg as 16 kHz mono PCM, the
// format the model expects.
type Whisper struct {
	client *openai.Client
	cfg    config.TranscribeConfig
}

// NewWhisper creates a Whisper transcription engine.
func NewWhisper(cfg config.TranscribeConfig) *Whisper {
	return &Whisper{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
	}
}

// Transcribe extracts the audio track and transcribes it. Returns the
// chronological, non-overlapping segments and the detected language.
func (w *Whisper) Transcribe(ctx context.Context, videoPath string) (models.TranscriptSegments, string, error) {
	tempDir, err := os.MkdirTemp("", "speaksense-audio-")
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	defer os.RemoveAll(tempDir)

	audioPath := filepath.Join(tempDir, "audio.wav")
	if err := w.extractAudio(ctx, videoPath, audioPath); err != nil {
		return nil, "", err
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.cfg.Model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	segments := make(models.TranscriptSegments, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, models.TranscriptSegment{
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}

	return segments, resp.Language, nil
}

// extractAudio pulls the audio track out of the container as 16 kHz mono
// PCM wav.
func (w *Whisper) extractAudio(ctx context.Context, videoPath, audioPath string) error {
	args := []string{
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprintf("%d", w.cfg.SampleRate),
		"-ac", "1",
		"-y",
		audioPath,
	}

	cmd := exec.CommandContext(ctx, w.cfg.FFmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: audio extraction: %v, stderr: %s", ErrTranscription, err, stderr.String())
	}

	return nil
}
