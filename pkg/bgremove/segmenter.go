package bgremove

import (
	"context"
	"errors"
	"image"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// ErrLowContrast is returned when subject and background colors cannot be separated
var ErrLowContrast = errors.New("subject and background colors are too similar")

// Segmenter is the local foreground segmentation tier. It builds a background color
// model from the border and a subject model from a central ellipse, refines both
// with a few assignment passes in CIE-Lab, and keeps the largest subject component.
type Segmenter struct {
	workSize   int
	iterations int
	minDist    float64
}

// NewSegmenter creates the local tier
func NewSegmenter() *Segmenter {
	return &Segmenter{
		workSize:   256,
		iterations: 3,
		minDist:    0.08,
	}
}

func (s *Segmenter) Name() string { return "local" }

// Remove implements Tier
func (s *Segmenter) Remove(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w < 8 || h < 8 {
		return nil, errors.New("image too small for segmentation")
	}

	work := src
	if w > s.workSize || h > s.workSize {
		work = imaging.Fit(src, s.workSize, s.workSize, imaging.Box)
	}
	ww, wh := work.Bounds().Dx(), work.Bounds().Dy()

	labs := make([]colorful.Color, ww*wh)
	for y := 0; y < wh; y++ {
		for x := 0; x < ww; x++ {
			i := y*work.Stride + x*4
			labs[y*ww+x] = labColor(work.Pix[i], work.Pix[i+1], work.Pix[i+2])
		}
	}

	border := max(1, min(ww, wh)/50)
	var bgSeed, fgSeed []int
	cx, cy := float64(ww)/2, float64(wh)/2
	rx, ry := float64(ww)*0.25, float64(wh)*0.35
	for y := 0; y < wh; y++ {
		for x := 0; x < ww; x++ {
			idx := y*ww + x
			if x < border || y < border || x >= ww-border || y >= wh-border {
				bgSeed = append(bgSeed, idx)
				continue
			}
			dx, dy := (float64(x)-cx)/rx, (float64(y)-cy)/ry
			if dx*dx+dy*dy <= 1 {
				fgSeed = append(fgSeed, idx)
			}
		}
	}

	bgMean := meanLab(labs, bgSeed)
	fgMean := meanLab(labs, fgSeed)

	fg := make([]bool, len(labs))
	for iter := 0; iter < s.iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if bgMean.DistanceLab(fgMean) < s.minDist {
			return nil, ErrLowContrast
		}
		var fgIdx, bgIdx []int
		for i, c := range labs {
			fg[i] = c.DistanceLab(fgMean) < c.DistanceLab(bgMean)
			if fg[i] {
				fgIdx = append(fgIdx, i)
			} else {
				bgIdx = append(bgIdx, i)
			}
		}
		if len(fgIdx) == 0 || len(bgIdx) == 0 {
			return nil, ErrLowContrast
		}
		fgMean = meanLab(labs, fgIdx)
		bgMean = meanLab(labs, bgIdx)
	}

	fg = largestComponent(fg, ww, wh)

	mask := image.NewGray(image.Rect(0, 0, ww, wh))
	for i, on := range fg {
		if on {
			mask.Pix[(i/ww)*mask.Stride+i%ww] = 255
		}
	}
	full := imaging.Resize(mask, w, h, imaging.Linear)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := full.Pix[y*full.Stride+x*4]
			i := y*src.Stride + x*4 + 3
			src.Pix[i] = uint8(uint16(src.Pix[i]) * uint16(a) / 255)
		}
	}
	return src, nil
}

func labColor(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// meanLab averages colors in Lab space and returns the result as a color
func meanLab(labs []colorful.Color, idx []int) colorful.Color {
	if len(idx) == 0 {
		return colorful.Color{}
	}
	var sl, sa, sb float64
	for _, i := range idx {
		l, a, b := labs[i].Lab()
		sl += l
		sa += a
		sb += b
	}
	n := float64(len(idx))
	return colorful.Lab(sl/n, sa/n, sb/n)
}

// largestComponent keeps only the biggest 4-connected true region
func largestComponent(mask []bool, w, h int) []bool {
	label := make([]int, len(mask))
	best, bestSize := 0, 0
	next := 1
	stack := make([]int, 0, 1024)

	for start, on := range mask {
		if !on || label[start] != 0 {
			continue
		}
		size := 0
		label[start] = next
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			x, y := idx%w, idx/w
			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				if n[0] < 0 || n[1] < 0 || n[0] >= w || n[1] >= h {
					continue
				}
				ni := n[1]*w + n[0]
				if mask[ni] && label[ni] == 0 {
					label[ni] = next
					stack = append(stack, ni)
				}
			}
		}
		if size > bestSize {
			best, bestSize = next, size
		}
		next++
	}

	out := make([]bool, len(mask))
	for i, l := range label {
		out[i] = l == best && best != 0
	}
	return out
}
