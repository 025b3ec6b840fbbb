package volume

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
)

// ImageCanvas draws onto an in-memory RGBA image.
type ImageCanvas struct {
	*image.RGBA
}

func NewImageCanvas(width, height int) *ImageCanvas {
	return &ImageCanvas{image.NewRGBA(image.Rect(0, 0, width, height))}
}

func (this *ImageCanvas) Width() int {
	return this.Bounds().Dx()
}

func (this *ImageCanvas) Height() int {
	return this.Bounds().Dy()
}

func (this *ImageCanvas) Fill(c color.RGBA) {
	draw.Draw(this.RGBA, this.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// Line draws using Bresenham; points outside the image are clipped.
func (this *ImageCanvas) Line(x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if (image.Point{X: x0, Y: y0}).In(this.Bounds()) {
			this.SetRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (this *ImageCanvas) EncodePNG(w io.Writer) error {
	return png.Encode(w, this.RGBA)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
