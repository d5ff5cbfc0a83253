package mapdetect

import (
	"image"

	"github.com/disintegration/imaging"
)

// CanvasWidth and CanvasHeight are the template size the fallback rectangle is expressed in
const (
	CanvasWidth  = 1920
	CanvasHeight = 1080
)

// FallbackRegion is used when the outline color cannot be found
var FallbackRegion = image.Rect(1250, 110, 1250+620, 110+450)

// ColorRange classifies a pixel as map outline
type ColorRange struct {
	MinR, MaxR uint8
	MinG, MaxG uint8
	MinB, MaxB uint8
	// MinRBSpread is the minimum R-B difference, which keeps the hue warm
	MinRBSpread int
}

// Match reports whether the pixel falls inside the range
func (c ColorRange) Match(r, g, b, a uint8) bool {
	if a == 0 {
		return false
	}
	return r >= c.MinR && r <= c.MaxR &&
		g >= c.MinG && g <= c.MaxG &&
		b >= c.MinB && b <= c.MaxB &&
		int(r)-int(b) >= c.MinRBSpread
}

// Options tunes detection. ROI bounds are fractions of the image size.
type Options struct {
	ROIMinX, ROIMaxX float64
	ROIMinY, ROIMaxY float64
	Outline          ColorRange
	Margin           int
	MinPixels        int
	Fallback         image.Rectangle
}

// DefaultOptions returns the options tuned for the slide template
func DefaultOptions() Options {
	return Options{
		ROIMinX: 0.55,
		ROIMaxX: 0.99,
		ROIMinY: 0.02,
		ROIMaxY: 0.45,
		Outline: ColorRange{
			MinR: 200, MaxR: 255,
			MinG: 100, MaxG: 190,
			MinB: 0, MaxB: 110,
			MinRBSpread: 110,
		},
		Margin:    10,
		MinPixels: 200,
		Fallback:  FallbackRegion,
	}
}

// Detect returns the map bounding box using the default options
func Detect(img image.Image) image.Rectangle {
	region, _ := DetectWithOptions(img, DefaultOptions())
	return region
}

// DetectWithOptions scans the region of interest for outline pixels. ok is false
// when too few pixels matched and the fallback rectangle was returned.
func DetectWithOptions(img image.Image, opts Options) (image.Rectangle, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return scaleFallback(opts.Fallback, w, h), false
	}

	x0 := int(opts.ROIMinX * float64(w))
	x1 := int(opts.ROIMaxX * float64(w))
	y0 := int(opts.ROIMinY * float64(h))
	y1 := int(opts.ROIMaxY * float64(h))

	roi := imaging.Crop(img, image.Rect(b.Min.X+x0, b.Min.Y+y0, b.Min.X+x1, b.Min.Y+y1))
	rw, rh := roi.Bounds().Dx(), roi.Bounds().Dy()

	minX, minY := rw, rh
	maxX, maxY := -1, -1
	count := 0
	for y := 0; y < rh; y++ {
		row := roi.Pix[y*roi.Stride : y*roi.Stride+rw*4]
		for x := 0; x < rw; x++ {
			p := row[x*4 : x*4+4 : x*4+4]
			if !opts.Outline.Match(p[0], p[1], p[2], p[3]) {
				continue
			}
			count++
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if count < opts.MinPixels {
		return scaleFallback(opts.Fallback, w, h), false
	}

	region := image.Rect(
		x0+minX-opts.Margin,
		y0+minY-opts.Margin,
		x0+maxX+1+opts.Margin,
		y0+maxY+1+opts.Margin,
	)
	return region.Intersect(image.Rect(0, 0, w, h)), true
}

// scaleFallback expresses the canvas fallback rectangle in the image's own size
func scaleFallback(r image.Rectangle, w, h int) image.Rectangle {
	if w == CanvasWidth && h == CanvasHeight || w == 0 || h == 0 {
		return r
	}
	sx := float64(w) / CanvasWidth
	sy := float64(h) / CanvasHeight
	return image.Rect(
		int(float64(r.Min.X)*sx),
		int(float64(r.Min.Y)*sy),
		int(float64(r.Max.X)*sx),
		int(float64(r.Max.Y)*sy),
	)
}
