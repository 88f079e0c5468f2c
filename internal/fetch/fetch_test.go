package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/speaksense/speaksense/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchFailsWithMissingBinary(t *testing.T) {
	f := New(config.FetchConfig{
		YTDLPPath:    "/nonexistent/yt-dlp",
		OutputDir:    t.TempDir(),
		Timeout:      5 * time.Second,
		TargetFormat: "mp4",
	})

	path, err := f.Fetch(context.Background(), "https://example.com/video")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.Empty(t, path)
}

func TestFetchFailsWhenOutputMissing(t *testing.T) {
	// `true` exits 0 without producing a file.
	f := New(config.FetchConfig{
		YTDLPPath:    "true",
		OutputDir:    t.TempDir(),
		TargetFormat: "mp4",
	})

	path, err := f.Fetch(context.Background(), "https://example.com/video")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.Empty(t, path)
}
