package bgremove

import (
	"context"
	"errors"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// ErrNoPlausibleTolerance is returned when no tolerance removed a believable area
var ErrNoPlausibleTolerance = errors.New("flood fill found no plausible background")

// FloodFillOptions tunes the deterministic tier
type FloodFillOptions struct {
	Tolerances     []float64
	TargetFraction float64
	MinFraction    float64
	MaxFraction    float64
	// Feather is the sigma of the alpha blur, 0 disables it
	Feather float64
}

// DefaultFloodFillOptions returns the tuned flood fill parameters
func DefaultFloodFillOptions() FloodFillOptions {
	return FloodFillOptions{
		Tolerances:     []float64{12, 20, 30, 42, 56, 72},
		TargetFraction: 0.30,
		MinFraction:    0.03,
		MaxFraction:    0.90,
		Feather:        1.5,
	}
}

// FloodFill removes every pixel reachable from the border through colors close to
// the sampled background
type FloodFill struct {
	opts FloodFillOptions
}

// NewFloodFill creates the flood fill tier
func NewFloodFill(opts FloodFillOptions) *FloodFill {
	return &FloodFill{opts: opts}
}

func (f *FloodFill) Name() string { return "floodfill" }

// Remove implements Tier
func (f *FloodFill) Remove(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w < 3 || h < 3 {
		return nil, errors.New("image too small for flood fill")
	}

	bg := sampleBackground(src)
	gray := isGrayscale(src)
	dist := func(i int) float64 {
		p := src.Pix[i : i+3 : i+3]
		if gray {
			return math.Abs(luma(p[0], p[1], p[2]) - luma(bg[0], bg[1], bg[2]))
		}
		d := math.Abs(float64(p[0]) - float64(bg[0]))
		d = math.Max(d, math.Abs(float64(p[1])-float64(bg[1])))
		return math.Max(d, math.Abs(float64(p[2])-float64(bg[2])))
	}

	var (
		bestMask []bool
		bestDiff = math.Inf(1)
	)
	total := float64(w * h)
	for _, tol := range f.opts.Tolerances {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mask, removed := fill(src, tol, dist)
		frac := float64(removed) / total
		if frac < f.opts.MinFraction || frac > f.opts.MaxFraction {
			continue
		}
		if diff := math.Abs(frac - f.opts.TargetFraction); diff < bestDiff {
			bestDiff = diff
			bestMask = mask
		}
	}
	if bestMask == nil {
		return nil, ErrNoPlausibleTolerance
	}

	for i, removed := range bestMask {
		if removed {
			src.Pix[i*4+3] = 0
		}
	}
	return Feather(src, f.opts.Feather), nil
}

// fill runs an 8-connected fill seeded from every border pixel within tolerance
func fill(img *image.NRGBA, tol float64, dist func(i int) float64) ([]bool, int) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	mask := make([]bool, w*h)
	queue := make([]int, 0, 2*(w+h))

	pixel := func(idx int) int {
		x, y := idx%w, idx/w
		return y*img.Stride + x*4
	}
	push := func(idx int) {
		if mask[idx] || dist(pixel(idx)) > tol {
			return
		}
		mask[idx] = true
		queue = append(queue, idx)
	}

	for x := 0; x < w; x++ {
		push(x)
		push((h-1)*w + x)
	}
	for y := 1; y < h-1; y++ {
		push(y * w)
		push(y*w + w - 1)
	}

	for len(queue) > 0 {
		idx := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		x, y := idx%w, idx/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				push(ny*w + nx)
			}
		}
	}

	removed := 0
	for _, m := range mask {
		if m {
			removed++
		}
	}
	return mask, removed
}

// sampleBackground takes the per-channel median of the four corners and the
// four border midpoints
func sampleBackground(img *image.NRGBA) [3]uint8 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	points := []image.Point{
		{0, 0}, {w - 1, 0}, {0, h - 1}, {w - 1, h - 1},
		{w / 2, 0}, {w / 2, h - 1}, {0, h / 2}, {w - 1, h / 2},
	}

	var channels [3][]int
	for _, pt := range points {
		i := pt.Y*img.Stride + pt.X*4
		for c := 0; c < 3; c++ {
			channels[c] = append(channels[c], int(img.Pix[i+c]))
		}
	}

	var out [3]uint8
	for c := 0; c < 3; c++ {
		sort.Ints(channels[c])
		n := len(channels[c])
		out[c] = uint8((channels[c][n/2-1] + channels[c][n/2]) / 2)
	}
	return out
}

// isGrayscale samples the image and reports whether channels never diverge
func isGrayscale(img *image.NRGBA) bool {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	step := max(1, (w*h)/4096)
	for idx := 0; idx < w*h; idx += step {
		x, y := idx%w, idx/w
		p := img.Pix[y*img.Stride+x*4 : y*img.Stride+x*4+3]
		if absDiff(p[0], p[1]) > 8 || absDiff(p[1], p[2]) > 8 {
			return false
		}
	}
	return true
}

func luma(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
