package slides

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"portfolio-slides/slide-service/pkg/textlayout"
)

// Pin geometry in pixels
const (
	pinWidth        = 40
	pinHeight       = 50
	pinPoint        = 12
	pinHole         = 6
	pinHighlight    = 4
	pinShadowOffset = 3
	pinOutline      = 2
)

// Label box geometry
const (
	labelPadX     = 24
	labelPadY     = 12
	labelFontSize = 32
	labelStroke   = 1
	labelOffsetX  = 40
	labelOffsetY  = 10
	labelFlipUp   = 20
)

var (
	pinYellow = color.RGBA{R: 255, G: 215, B: 0, A: 255}
	pinShadow = color.RGBA{R: 50, G: 50, B: 50, A: 120}
	pinGray   = color.RGBA{R: 100, G: 100, B: 100, A: 255}
)

// pinBounds is the area covered by a teardrop pin anchored at pt, shadow included
func pinBounds(pt image.Point) image.Rectangle {
	top := pt.Y - pinHeight/2
	return image.Rect(pt.X-pinWidth/2, top-pinHeight/5, pt.X+pinWidth/2+pinShadowOffset, pt.Y+pinPoint+pinShadowOffset)
}

// drawPin paints a teardrop marker: a shadow, a yellow head with a black outline
// that narrows to a point, and a hole with a gray highlight
func drawPin(dst *image.RGBA, pt image.Point) {
	dc := gg.NewContextForRGBA(dst)
	cx, cy := float64(pt.X), float64(pt.Y)
	top := cy - pinHeight/2
	rx, ry := float64(pinWidth)/2, float64(pinHeight)/5

	teardrop := func(dx, dy float64) {
		dc.DrawEllipse(cx+dx, top+dy, rx, ry)
		dc.MoveTo(cx-rx+dx, top+ry+dy)
		dc.LineTo(cx+rx+dx, top+ry+dy)
		dc.LineTo(cx+dx, cy+pinPoint+dy)
		dc.ClosePath()
	}

	dc.SetColor(pinShadow)
	teardrop(pinShadowOffset, pinShadowOffset)
	dc.Fill()

	dc.SetColor(pinYellow)
	teardrop(0, 0)
	dc.Fill()

	dc.SetColor(color.Black)
	dc.SetLineWidth(pinOutline)
	dc.DrawEllipse(cx, top, rx, ry)
	dc.Stroke()
	dc.MoveTo(cx-rx, top+ry)
	dc.LineTo(cx, cy+pinPoint)
	dc.LineTo(cx+rx, top+ry)
	dc.Stroke()

	dc.DrawCircle(cx, top, pinHole)
	dc.Fill()
	dc.SetColor(pinGray)
	dc.DrawCircle(cx, top, pinHighlight)
	dc.Fill()
}

// label is a placed location label
type label struct {
	Text string
	Box  image.Rectangle
	Face font.Face
}

// placeLabel positions the label box beside the pin: to the right and slightly
// above, flipped left when it would cross the map's right edge, moved up when it
// would cross the bottom, then clamped inside the map
func placeLabel(fonts *textlayout.FontSet, text string, pt image.Point, region image.Rectangle) label {
	face := fonts.Face(labelFontSize, true)
	w := textlayout.Measure(face, text) + 2*labelStroke + 2*labelPadX
	h := textlayout.LineHeight(face) + 2*labelStroke + 2*labelPadY

	x, y := pt.X+labelOffsetX, pt.Y-labelOffsetY
	if x+w > region.Max.X {
		x = pt.X - w - labelOffsetX
	}
	if y+h > region.Max.Y {
		y = pt.Y - h - labelFlipUp
	}
	x = clamp(x, region.Min.X, region.Max.X-w)
	y = clamp(y, region.Min.Y, region.Max.Y-h)

	return label{Text: text, Box: image.Rect(x, y, x+w, y+h), Face: face}
}

func drawLabel(dst *image.RGBA, l label) {
	dc := gg.NewContextForRGBA(dst)
	dc.SetColor(pinYellow)
	dc.DrawRectangle(float64(l.Box.Min.X), float64(l.Box.Min.Y), float64(l.Box.Dx()), float64(l.Box.Dy()))
	dc.Fill()

	textlayout.DrawStroked(dst, l.Text, l.Box.Min.X+labelPadX+labelStroke, l.Box.Min.Y+labelPadY+labelStroke,
		l.Face, color.Black, color.Black, labelStroke)
}

// clamp keeps v in [lo, hi]; lo wins when the range is empty
func clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
