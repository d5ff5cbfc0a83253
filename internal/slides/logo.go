package slides

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

const (
	logoSize   = 110
	logoCanvas = 130
	logoInset  = (logoCanvas - logoSize) / 2
	logoRight  = 170
	logoTop    = 10
)

// logoOrigin is the top-left corner of the logo canvas on a slide of width w
func logoOrigin(w int) image.Point {
	return image.Pt(w-logoRight, logoTop)
}

// circularLogo center-crops the logo to a square, centers it on a transparent
// canvas and masks the canvas with an inscribed ellipse
func circularLogo(img image.Image) image.Image {
	square := imaging.Fill(img, logoSize, logoSize, imaging.Center, imaging.Lanczos)
	canvas := imaging.New(logoCanvas, logoCanvas, image.Transparent)
	canvas = imaging.Paste(canvas, square, image.Pt(logoInset, logoInset))

	dc := gg.NewContext(logoCanvas, logoCanvas)
	dc.DrawEllipse(logoCanvas/2, logoCanvas/2, logoCanvas/2, logoCanvas/2)
	dc.Clip()
	dc.DrawImage(canvas, 0, 0)
	return dc.Image()
}
