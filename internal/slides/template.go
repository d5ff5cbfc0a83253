package slides

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Canonical slide size in pixels
const (
	SlideWidth  = 1920
	SlideHeight = 1080
)

// TemplateSource locates the background image, either on disk or in memory.
// Data wins over Path.
type TemplateSource struct {
	Path string
	Data []byte
}

// LoadTemplate decodes the template and returns a working copy at the canonical size
func LoadTemplate(src TemplateSource) (*image.RGBA, error) {
	data := src.Data
	if len(data) == 0 {
		if src.Path == "" {
			return nil, fmt.Errorf("no template configured: %w", ErrTemplateUnavailable)
		}
		if strings.EqualFold(filepath.Ext(src.Path), ".pdf") {
			return nil, fmt.Errorf("%s: %w", src.Path, ErrUnsupportedTemplate)
		}
		var err error
		if data, err = os.ReadFile(src.Path); err != nil {
			return nil, fmt.Errorf("failed to read template %s: %v: %w", src.Path, err, ErrTemplateUnavailable)
		}
	}
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return nil, ErrUnsupportedTemplate
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode template: %v: %w", err, ErrTemplateUnavailable)
	}
	if b := img.Bounds(); b.Dx() != SlideWidth || b.Dy() != SlideHeight {
		img = imaging.Resize(img, SlideWidth, SlideHeight, imaging.Lanczos)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, SlideWidth, SlideHeight))
	draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Src)
	return canvas, nil
}

// decodeImage decodes PNG or JPEG bytes
func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

var (
	defaultHeaderColor = color.RGBA{R: 255, G: 140, B: 0, A: 255}
	defaultBodyColor   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// brightnessContrast is the minimum brightness gap between a text color and the
// dominant color of its region
const brightnessContrast = 40

// SampleTextColor picks the text color already used by the template inside r:
// the most common color whose brightness differs from the dominant color by more
// than the contrast threshold. Regions without one get orange near the top of the
// slide and white elsewhere.
func SampleTextColor(img image.Image, r image.Rectangle) color.RGBA {
	fallback := defaultBodyColor
	if r.Min.Y < 200 {
		fallback = defaultHeaderColor
	}

	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return fallback
	}

	counts := make(map[color.RGBA]int)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			counts[color.RGBA{R: uint8(cr >> 8), G: uint8(cg >> 8), B: uint8(cb >> 8), A: 255}]++
		}
	}

	dominant, _ := mostCommon(counts, func(color.RGBA) bool { return true })
	bg := brightness(dominant)
	text, ok := mostCommon(counts, func(c color.RGBA) bool {
		d := brightness(c) - bg
		return d > brightnessContrast || d < -brightnessContrast
	})
	if !ok {
		return fallback
	}
	return text
}

// mostCommon returns the highest-count color accepted by keep. Ties go to the
// lexically smallest color so the result does not depend on map order.
func mostCommon(counts map[color.RGBA]int, keep func(color.RGBA) bool) (color.RGBA, bool) {
	var (
		best  color.RGBA
		count int
	)
	for c, n := range counts {
		if !keep(c) {
			continue
		}
		if n > count || (n == count && less(c, best)) {
			best, count = c, n
		}
	}
	return best, count > 0
}

func less(a, b color.RGBA) bool {
	if a.R != b.R {
		return a.R < b.R
	}
	if a.G != b.G {
		return a.G < b.G
	}
	return a.B < b.B
}

func brightness(c color.RGBA) int {
	return (int(c.R) + int(c.G) + int(c.B)) / 3
}
