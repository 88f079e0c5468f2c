package annotate

import (
	"image/color"

	"github.com/speaksense/speaksense/pkg/models"
)

// EmotionColors maps each emotion label to its display color. Immutable,
// process-wide. Labels missing from the table fall back to the "Unknown"
// entry.
var EmotionColors = map[string]color.RGBA{
	"happy":              {G: 255, A: 255},                 // green
	"sad":                {B: 255, A: 255},                 // blue
	"angry":              {R: 255, A: 255},                 // red
	"surprise":           {R: 255, G: 255, A: 255},         // yellow
	"fear":               {R: 128, B: 128, A: 255},         // purple
	"neutral":            {R: 255, G: 255, B: 255, A: 255}, // white
	"disgust":            {G: 128, A: 255},                 // dark green
	models.UnknownEmotion: {R: 128, G: 128, B: 128, A: 255}, // gray
}

// ColorFor returns the display color for a label, falling back to the
// "Unknown" entry for labels not in the table.
func ColorFor(label string) color.RGBA {
	if c, ok := EmotionColors[label]; ok {
		return c
	}
	return EmotionColors[models.UnknownEmotion]
}

// HexColorFor returns the display color as a #rrggbb string, for chart
// rendering on the dashboard.
func HexColorFor(label string) string {
	c := ColorFor(label)
	const hexdigits = "0123456789abcdef"
	out := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []uint8{c.R, c.G, c.B} {
		out[1+i*2] = hexdigits[v>>4]
		out[2+i*2] = hexdigits[v&0x0f]
	}
	return string(out)
}
