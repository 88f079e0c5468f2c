package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/speaksense/speaksense/internal/config"
	"github.com/speaksense/speaksense/internal/metrics"
)

// ErrFetch indicates the remote video could not be downloaded: bad URL,
// geo-restricted content, or the downloader binary failing.
var ErrFetch = errors.New("video fetch failed")

// Fetcher downloads remote videos through yt-dlp and recodes them into a
// single target container so the rest of the system sees one format.
type Fetcher struct {
	cfg config.FetchConfig
}

// New creates a Fetcher.
func New(cfg config.FetchConfig) *Fetcher {
	return &Fetcher{cfg: cfg}
}

// Fetch downloads the video at url into the configured output directory
// and returns the local path of the downloaded file.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := os.MkdirAll(f.cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}

	outputPath := filepath.Join(f.cfg.OutputDir, uuid.New().String()+"."+f.cfg.TargetFormat)

	runCtx := ctx
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	args := []string{
		"--no-playlist",
		"--recode-video", f.cfg.TargetFormat,
		"-o", outputPath,
		url,
	}

	cmd := exec.CommandContext(runCtx, f.cfg.YTDLPPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		metrics.RecordFetch("failed")
		return "", fmt.Errorf("%w: %v, stderr: %s", ErrFetch, err, stderr.String())
	}

	if _, err := os.Stat(outputPath); err != nil {
		metrics.RecordFetch("failed")
		return "", fmt.Errorf("%w: downloader produced no output", ErrFetch)
	}

	metrics.RecordFetch("completed")
	return outputPath, nil
}
