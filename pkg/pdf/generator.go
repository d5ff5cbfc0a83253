package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"regexp"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ErrNoPages is returned when a document would have no pages
var ErrNoPages = errors.New("pdf has no pages")

// Options configures raster PDF generation
type Options struct {
	// DPI maps image pixels to points; 96 turns 1920x1080 into 1440x810 pt
	DPI          float64   `json:"dpi"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	CreationDate time.Time `json:"creation_date"`
}

// DefaultOptions returns options with a fixed creation date so identical input
// produces identical bytes
func DefaultOptions() Options {
	return Options{
		DPI:          96,
		Author:       "Portfolio Slide Service",
		CreationDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Generator writes images as full-bleed PDF pages
type Generator struct {
	options Options
}

// NewGenerator creates a generator
func NewGenerator(opts Options) *Generator {
	if opts.DPI <= 0 {
		opts.DPI = 96
	}
	return &Generator{options: opts}
}

// PageSize converts a pixel size to points
func (g *Generator) PageSize(b image.Rectangle) gofpdf.SizeType {
	k := 72 / g.options.DPI
	return gofpdf.SizeType{Wd: float64(b.Dx()) * k, Ht: float64(b.Dy()) * k}
}

// SinglePage renders one image as a one-page PDF
func (g *Generator) SinglePage(img image.Image) ([]byte, error) {
	return g.MultiPage([]image.Image{img})
}

// MultiPage renders each image as its own page, in order. Pages take the size of
// their image; the first page sets the document default.
func (g *Generator) MultiPage(pages []image.Image) ([]byte, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	first := g.PageSize(pages[0].Bounds())
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           first,
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.SetCreationDate(g.options.CreationDate)
	doc.SetCatalogSort(true)
	if g.options.Title != "" {
		doc.SetTitle(g.options.Title, true)
	}
	if g.options.Author != "" {
		doc.SetAuthor(g.options.Author, true)
	}

	opt := gofpdf.ImageOptions{ImageType: "PNG"}
	for i, page := range pages {
		var encoded bytes.Buffer
		if err := png.Encode(&encoded, Flatten(page, color.White)); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", i+1, err)
		}

		size := g.PageSize(page.Bounds())
		if size == first {
			doc.AddPage()
		} else {
			doc.AddPageFormat("P", size)
		}

		name := "page-" + strconv.Itoa(i+1)
		doc.RegisterImageOptionsReader(name, opt, &encoded)
		doc.ImageOptions(name, 0, 0, size.Wd, size.Ht, false, opt, 0, "")
		if doc.Err() {
			return nil, fmt.Errorf("failed to render page %d: %w", i+1, doc.Error())
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Flatten composites img onto an opaque background
func Flatten(img image.Image, bg color.Color) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

var (
	pageObject = regexp.MustCompile(`/Type /Page[^s]`)
	mediaBox   = regexp.MustCompile(`/MediaBox \[0 0 ([\d.]+) ([\d.]+)\]`)
)

// PageCount counts page objects in a PDF written by this package
func PageCount(data []byte) int {
	return len(pageObject.FindAll(data, -1))
}

// MediaBox returns the first media box in the file, in points. For documents whose
// pages share one size this is the page size.
func MediaBox(data []byte) (width, height float64, ok bool) {
	m := mediaBox.FindSubmatch(data)
	if m == nil {
		return 0, 0, false
	}
	width, err1 := strconv.ParseFloat(string(m[1]), 64)
	height, err2 := strconv.ParseFloat(string(m[2]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return width, height, true
}
