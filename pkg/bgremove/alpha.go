package bgremove

import (
	"image"

	"github.com/disintegration/imaging"
)

// Plausibility thresholds for a cutout's alpha channel
const (
	maxOpaqueFraction      = 0.98
	maxTransparentFraction = 0.95
)

// AlphaStats returns the fraction of fully opaque and fully transparent pixels
func AlphaStats(img *image.NRGBA) (opaque, transparent float64) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	total := w * h
	if total == 0 {
		return 0, 0
	}

	var nOpaque, nTransparent int
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			switch row[x*4+3] {
			case 255:
				nOpaque++
			case 0:
				nTransparent++
			}
		}
	}
	return float64(nOpaque) / float64(total), float64(nTransparent) / float64(total)
}

// Plausible rejects cutouts that kept essentially everything or nothing
func Plausible(img *image.NRGBA) bool {
	opaque, transparent := AlphaStats(img)
	return opaque <= maxOpaqueFraction && transparent <= maxTransparentFraction
}

// Feather softens the cutout edge by blurring the alpha channel only
func Feather(img *image.NRGBA, sigma float64) *image.NRGBA {
	if sigma <= 0 {
		return img
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	mask := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mask.Pix[y*mask.Stride+x] = img.Pix[y*img.Stride+x*4+3]
		}
	}
	blurred := imaging.Blur(mask, sigma)

	out := imaging.Clone(img)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[y*out.Stride+x*4+3] = blurred.Pix[y*blurred.Stride+x*4]
		}
	}
	return out
}

// Grayscale converts to luminance while keeping the alpha channel
func Grayscale(img image.Image) *image.NRGBA {
	return imaging.Grayscale(img)
}

// Opaque returns an NRGBA copy with every pixel fully opaque
func Opaque(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
	}
	return out
}
