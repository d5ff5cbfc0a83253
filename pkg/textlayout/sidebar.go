package textlayout

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

var (
	stageFill   = color.NRGBA{A: 255}
	stageStroke = color.NRGBA{R: 50, G: 50, B: 50, A: 255}
)

const stageStrokeWidth = 2

// Envelope is the space reserved for the rotated stage text on the left sidebar
type Envelope struct {
	SidebarWidth int
	Margin       int
	AnchorY      int
	MaxHeight    int
	MinX         int
	Padding      int
	MinScale     float64
}

// DefaultEnvelope matches the 1920x1080 portfolio template
func DefaultEnvelope() Envelope {
	return Envelope{
		SidebarWidth: 200,
		Margin:       20,
		AnchorY:      80,
		MaxHeight:    1080 - 280,
		MinX:         10,
		Padding:      100,
		MinScale:     0.5,
	}
}

// FormatStage drops commas and extra spaces: "SEED Q2, 2024" becomes "SEED Q2 2024"
func FormatStage(stage string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(stage, ",", " ")), " ")
}

// StageFontSize shrinks long stage strings so they stay inside the sidebar
func StageFontSize(text string) float64 {
	switch n := len([]rune(text)); {
	case n > 18:
		return 30
	case n > 14:
		return 34
	default:
		return 40
	}
}

// RenderRotated draws stroked text on a padded transparent canvas, trims it to the
// painted pixels and rotates it 90 degrees clockwise
func RenderRotated(fs *FontSet, text string, size float64, padding int) *image.NRGBA {
	face := fs.Face(size, true)
	w := Measure(face, text) + 2*padding
	h := LineHeight(face) + 2*padding
	canvas := image.NewNRGBA(image.Rect(0, 0, max(w, 300), max(h, 500)))

	DrawStroked(canvas, text, padding, padding, face, stageFill, stageStroke, stageStrokeWidth)

	bounds := alphaBounds(canvas)
	if bounds.Empty() {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	return imaging.Rotate270(imaging.Crop(canvas, bounds))
}

// DrawRotatedSidebar formats the stage, renders it vertically and pastes it inside
// the envelope. It returns the rectangle painted on dst.
func DrawRotatedSidebar(dst draw.Image, stage string, fs *FontSet, env Envelope) image.Rectangle {
	text := FormatStage(stage)
	if text == "" {
		return image.Rectangle{}
	}

	rotated := RenderRotated(fs, text, StageFontSize(text), env.Padding)
	w, h := rotated.Bounds().Dx(), rotated.Bounds().Dy()
	if w == 0 || h == 0 {
		return image.Rectangle{}
	}

	maxW := env.SidebarWidth - env.Margin
	scale := math.Min(1, math.Min(float64(maxW)/float64(w), float64(env.MaxHeight)/float64(h)))
	if scale < env.MinScale {
		scale = env.MinScale
	}
	if scale < 1 {
		w = max(1, int(math.Round(float64(w)*scale)))
		h = max(1, int(math.Round(float64(h)*scale)))
		rotated = imaging.Resize(rotated, w, h, imaging.Lanczos)
	}

	x := env.SidebarWidth - w - env.Margin
	if x < env.MinX {
		x = env.MinX
	}
	rect := image.Rect(x, env.AnchorY, x+w, env.AnchorY+h)
	draw.Draw(dst, rect, rotated, image.Point{}, draw.Over)
	return rect
}

func alphaBounds(img *image.NRGBA) image.Rectangle {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := b.Min.X; x < b.Max.X; x++ {
			if row[(x-b.Min.X)*4+3] == 0 {
				continue
			}
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
