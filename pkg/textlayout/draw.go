package textlayout

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// DrawText draws a single line with its top-left corner at (x, y)
func DrawText(dst draw.Image, text string, x, y int, face font.Face, fill color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fill),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

// DrawStroked draws text outlined by width pixels in stroke, then the fill on top
func DrawStroked(dst draw.Image, text string, x, y int, face font.Face, fill, stroke color.Color, width int) {
	for dx := -width; dx <= width; dx++ {
		for dy := -width; dy <= width; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			DrawText(dst, text, x+dx, y+dy, face, stroke)
		}
	}
	DrawText(dst, text, x, y, face, fill)
}

// DrawLines draws lines top-down starting at (x, y), lineHeight pixels apart
func DrawLines(dst draw.Image, lines []string, x, y, lineHeight int, face font.Face, fill color.Color) {
	for i, line := range lines {
		DrawText(dst, line, x, y+i*lineHeight, face, fill)
	}
}

// TextBounds is the box a line occupies when drawn at (x, y)
func TextBounds(face font.Face, text string, x, y int) image.Rectangle {
	return image.Rect(x, y, x+Measure(face, text), y+LineHeight(face))
}
