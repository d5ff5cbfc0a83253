package pptx

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"strings"

	ppt "github.com/VantageDataChat/GoPPT"
)

// PixelsPerInch maps slide pixels onto the presentation's inch grid
const PixelsPerInch = 96

// ErrEmptyDocument is returned for a document without width or height
var ErrEmptyDocument = errors.New("presentation has no size")

// ShapeKind is the geometry of a vector shape
type ShapeKind string

const (
	ShapeRectangle ShapeKind = "rect"
	ShapeEllipse   ShapeKind = "ellipse"
)

// TextBox is an editable text frame. Coordinates and FontSize are in pixels.
type TextBox struct {
	Name     string
	Text     string
	X, Y     int
	W, H     int
	FontSize int
	Bold     bool
	Font     string
	Color    color.Color
	Rotation int
}

// Picture is a PNG placed at a pixel rectangle
type Picture struct {
	Name string
	PNG  []byte
	X, Y int
	W, H int
}

// Shape is a filled vector shape with optional text
type Shape struct {
	Name string
	Kind ShapeKind
	X, Y int
	W, H int
	Fill color.Color
	Text string
}

// Document is one slide in pixel space. Background is a full-slide PNG drawn first;
// pictures, shapes and text boxes follow in that z-order.
type Document struct {
	Title      string
	Width      int
	Height     int
	Background []byte
	Pictures   []Picture
	Shapes     []Shape
	TextBoxes  []TextBox
}

// Px converts slide pixels to EMU
func Px(px int) int64 {
	return ppt.Inch(float64(px) / PixelsPerInch)
}

// Points converts a pixel font size to points
func Points(px int) int {
	return px * 72 / PixelsPerInch
}

// Hex returns c as the ARGB string GoPPT expects
func Hex(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("%02X%02X%02X%02X", n.A, n.R, n.G, n.B)
}

// Export writes doc as a single-slide PPTX
func Export(doc Document) ([]byte, error) {
	if doc.Width <= 0 || doc.Height <= 0 {
		return nil, ErrEmptyDocument
	}

	p := ppt.New()
	p.GetLayout().SetCustomLayout(Px(doc.Width), Px(doc.Height))
	props := p.GetDocumentProperties()
	props.Title = doc.Title
	props.Creator = "Portfolio Slide Service"

	slide := p.GetActiveSlide()
	if len(doc.Background) > 0 {
		bg := slide.CreateDrawingShape()
		bg.SetImageData(doc.Background, "image/png")
		bg.SetName("Background")
		bg.SetPosition(0, 0)
		bg.SetSize(Px(doc.Width), Px(doc.Height))
	}

	for _, pic := range doc.Pictures {
		if len(pic.PNG) == 0 {
			continue
		}
		d := slide.CreateDrawingShape()
		d.SetImageData(pic.PNG, "image/png")
		d.SetName(pic.Name)
		d.SetPosition(Px(pic.X), Px(pic.Y))
		d.SetSize(Px(pic.W), Px(pic.H))
	}

	for _, s := range doc.Shapes {
		a := slide.CreateAutoShape()
		a.SetAutoShapeType(ppt.AutoShapeType(s.Kind))
		a.SetName(s.Name)
		a.SetPosition(Px(s.X), Px(s.Y))
		a.SetSize(Px(s.W), Px(s.H))
		if s.Fill != nil {
			a.SetSolidFill(ppt.NewColor(Hex(s.Fill)))
		}
		if s.Text != "" {
			a.SetText(s.Text)
		}
	}

	for _, tb := range doc.TextBoxes {
		if strings.TrimSpace(tb.Text) == "" {
			continue
		}
		addTextBox(slide, tb)
	}

	var buf bytes.Buffer
	if err := p.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write presentation: %w", err)
	}
	return buf.Bytes(), nil
}

func addTextBox(slide *ppt.Slide, tb TextBox) {
	rt := slide.CreateRichTextShape()
	rt.SetName(tb.Name)
	rt.SetPosition(Px(tb.X), Px(tb.Y))
	rt.SetSize(Px(tb.W), Px(tb.H))
	rt.SetWordWrap(true)
	if tb.Rotation != 0 {
		rt.SetRotation(tb.Rotation)
	}

	for i, line := range strings.Split(tb.Text, "\n") {
		var run *ppt.TextRun
		if i == 0 {
			run = rt.CreateTextRun(line)
		} else {
			run = rt.CreateParagraph().CreateTextRun(line)
		}
		f := run.GetFont().SetSize(max(1, Points(tb.FontSize))).SetBold(tb.Bold)
		if tb.Font != "" {
			f.SetName(tb.Font)
		}
		if tb.Color != nil {
			f.SetColor(ppt.NewColor(Hex(tb.Color)))
		}
	}
}

// Summary describes a presentation read back from bytes
type Summary struct {
	Slides    int
	TextBoxes int
	Pictures  int
	Shapes    int
	Text      string
}

// Inspect parses a PPTX and counts the shapes on its first slide
func Inspect(data []byte) (Summary, error) {
	p, err := ppt.ReadFrom(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read presentation: %w", err)
	}

	sum := Summary{Slides: p.GetSlideCount()}
	if sum.Slides == 0 {
		return sum, nil
	}
	slide, err := p.GetSlide(0)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read slide: %w", err)
	}
	for _, sh := range slide.GetShapes() {
		switch sh.(type) {
		case *ppt.RichTextShape:
			sum.TextBoxes++
		case *ppt.DrawingShape:
			sum.Pictures++
		case *ppt.AutoShape:
			sum.Shapes++
		}
	}
	sum.Text = slide.ExtractText()
	return sum, nil
}
