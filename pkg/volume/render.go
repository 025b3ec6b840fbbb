package volume

import (
	"image/color"
	"math"
)

var LineColor = color.RGBA{R: 255, G: 127, B: 0, A: 255}

type Canvas interface {
	Width() int
	Height() int
	Fill(color.RGBA)
	Line(x0, y0, x1, y1 int, c color.RGBA)
}

// Snapshot is the state needed to draw the volume view once.
type Snapshot struct {
	Volume    float64
	MaxVolume float64
	History   []float64

	// Preceding is the sample right before History, used as start of the
	// first segment.
	Preceding    float64
	HasPreceding bool
}

// Background returns the background color for the given volume relative to
// the maximum volume ever seen.
func Background(volume, maxVolume float64) color.RGBA {
	normalized := 0.0
	if maxVolume > 0 {
		normalized = volume / maxVolume
	}
	relativeBrightness := math.Max(0.3, normalized)

	var blue, rest uint8
	if relativeBrightness >= 0.5 {
		blue = 255
		rest = channel(2 * 255 * (relativeBrightness - 0.5))
	} else {
		blue = channel(255 * (relativeBrightness - 0.2) / 0.3)
	}
	return color.RGBA{R: rest, G: rest, B: blue, A: 255}
}

func channel(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// GraphY maps a sample to its vertical position on a canvas of the given
// height.
func GraphY(sample, maxVolume float64, height int) int {
	margin := float64(height) * 0.1
	graphHeight := float64(height) - 2*margin
	rel := 0.0
	if maxVolume > 0 {
		rel = sample / maxVolume
	}
	return int(margin + graphHeight - rel*graphHeight)
}

// Render draws the volume view of the Analyzer onto the canvas.
func (this *Analyzer) Render(c Canvas) {
	width := c.Width()
	if width < 0 {
		width = 0
	}
	this.Snapshot(width).Render(c)
}

func (this Snapshot) Render(c Canvas) {
	height := c.Height()
	c.Fill(Background(this.Volume, this.MaxVolume))

	if len(this.History) == 0 {
		return
	}

	yPrev := GraphY(this.History[0], this.MaxVolume, height)
	if this.HasPreceding {
		yPrev = GraphY(this.Preceding, this.MaxVolume, height)
	}
	for x, sample := range this.History {
		y := GraphY(sample, this.MaxVolume, height)
		xPrev := x - 1
		if x == 0 {
			xPrev = 0
		}
		c.Line(xPrev, yPrev, x, y, LineColor)
		yPrev = y
	}
}
