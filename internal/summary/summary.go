package summary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/speaksense/speaksense/internal/annotate"
	"github.com/speaksense/speaksense/pkg/models"
)

// Bar is one bar of the dashboard's emotion distribution chart.
type Bar struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
	Color string `json:"color"`
}

// Chart builds bar-chart data from a histogram, one bar per observed
// label, colored from the emotion color table. Bars are sorted by count
// descending, ties broken by label, so the chart is stable across
// requests.
func Chart(h models.EmotionHistogram) []Bar {
	bars := make([]Bar, 0, len(h))
	for label, count := range h {
		bars = append(bars, Bar{
			Label: label,
			Count: count,
			Color: annotate.HexColorFor(label),
		})
	}

	sort.Slice(bars, func(i, j int) bool {
		if bars[i].Count != bars[j].Count {
			return bars[i].Count > bars[j].Count
		}
		return bars[i].Label < bars[j].Label
	})

	return bars
}

// Text renders a short natural-language summary enumerating each emotion
// and its occurrence count.
func Text(h models.EmotionHistogram) string {
	var b strings.Builder
	b.WriteString("The detected emotions show the following patterns:\n")

	if len(h) == 0 {
		b.WriteString("No emotion was detected.\n")
		return b.String()
	}

	for _, bar := range Chart(h) {
		times := "times"
		if bar.Count == 1 {
			times = "time"
		}
		fmt.Fprintf(&b, "- The emotion %q was detected %d %s.\n", bar.Label, bar.Count, times)
	}

	return b.String()
}
