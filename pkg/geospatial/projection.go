package geospatial

import (
	"image"
	"math"

	"github.com/paulmach/orb"
)

// Padding is the fraction of the map region kept empty on each edge.
// The top is larger because the artwork leaves room above the northern border.
type Padding struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// DefaultPadding returns the tuned padding for the slide template map
func DefaultPadding() Padding {
	return Padding{Top: 0.12, Bottom: 0.06, Left: 0.05, Right: 0.05}
}

// inset places a non-contiguous state into a sub-box of the inner map rectangle,
// expressed as fractions of that rectangle
type inset struct {
	bounds                 orb.Bound
	minX, maxX, minY, maxY float64
}

var defaultInsets = []inset{
	{bounds: AlaskaBounds, minX: 0.00, maxX: 0.22, minY: 0.72, maxY: 1.00},
	{bounds: HawaiiBounds, minX: 0.22, maxX: 0.36, minY: 0.84, maxY: 1.00},
}

// Projection is an equirectangular lat/lon to pixel mapping
type Projection struct {
	Bounds  orb.Bound `json:"-"`
	Padding Padding   `json:"padding"`
	// Insets draws Alaska and Hawaii in lower-left boxes instead of clamping them
	Insets bool `json:"insets"`
}

// NewProjection returns the contiguous-US projection with insets enabled
func NewProjection() Projection {
	return Projection{
		Bounds:  ContiguousBounds,
		Padding: DefaultPadding(),
		Insets:  true,
	}
}

// Inner returns the padded rectangle every projected point is clamped to
func (p Projection) Inner(region image.Rectangle) image.Rectangle {
	left, top, right, bottom := p.innerF(region)
	return image.Rect(int(math.Ceil(left)), int(math.Ceil(top)), int(math.Floor(right))+1, int(math.Floor(bottom))+1)
}

func (p Projection) innerF(region image.Rectangle) (left, top, right, bottom float64) {
	w := float64(region.Dx())
	h := float64(region.Dy())
	left = float64(region.Min.X) + w*p.Padding.Left
	right = float64(region.Max.X) - w*p.Padding.Right
	top = float64(region.Min.Y) + h*p.Padding.Top
	bottom = float64(region.Max.Y) - h*p.Padding.Bottom
	return left, top, right, bottom
}

// Project maps a point into region. The result always lies inside Inner(region).
func (p Projection) Project(pt GeoPoint, region image.Rectangle) image.Point {
	left, top, right, bottom := p.innerF(region)
	iw := right - left
	ih := bottom - top

	var fx, fy float64
	projected := false
	if p.Insets {
		for _, in := range defaultInsets {
			if in.bounds.Contains(pt.Point()) {
				ux, uy := unit(in.bounds, pt)
				fx = in.minX + ux*(in.maxX-in.minX)
				fy = in.minY + uy*(in.maxY-in.minY)
				projected = true
				break
			}
		}
	}
	if !projected {
		fx, fy = unit(p.Bounds, pt)
	}

	x := clampF(left+fx*iw, left, right)
	y := clampF(top+fy*ih, top, bottom)

	// round, then keep the integer pixel inside the padded rectangle
	px := clampI(int(math.Round(x)), int(math.Ceil(left)), int(math.Floor(right)))
	py := clampI(int(math.Round(y)), int(math.Ceil(top)), int(math.Floor(bottom)))
	return image.Pt(px, py)
}

// unit returns the position of pt inside b as fractions, x west to east and y north to south
func unit(b orb.Bound, pt GeoPoint) (float64, float64) {
	ux := (pt.Lon - b.Min.Lon()) / (b.Max.Lon() - b.Min.Lon())
	uy := (b.Max.Lat() - pt.Lat) / (b.Max.Lat() - b.Min.Lat())
	return ux, uy
}

func clampF(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampI(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
