package transcribe

import (
	"fmt"
	"strings"

	"github.com/speaksense/speaksense/pkg/models"
)

// FormatSegments renders a transcript as one timestamped line per
// segment. An empty transcript renders to an empty string.
func FormatSegments(segments models.TranscriptSegments) string {
	if len(segments) == 0 {
		return ""
	}

	var b strings.Builder
	for _, s := range segments {
		fmt.Fprintf(&b, "[%.2fs - %.2fs]: %s\n", s.Start, s.End, strings.TrimSpace(s.Text))
	}
	return b.String()
}
