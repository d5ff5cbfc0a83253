package pptx

import (
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, imaging.New(w, h, color.NRGBA{R: 42, G: 42, B: 42, A: 255})))
	return buf.Bytes()
}

func TestExportRoundTrip(t *testing.T) {
	doc := Document{
		Title:      "Acme",
		Width:      1920,
		Height:     1080,
		Background: pngBytes(t, 64, 36),
		Pictures: []Picture{
			{Name: "Logo", PNG: pngBytes(t, 8, 8), X: 1750, Y: 10, W: 130, H: 130},
			{Name: "Empty"},
		},
		Shapes: []Shape{
			{Name: "Pin", Kind: ShapeEllipse, X: 1500, Y: 300, W: 40, H: 50, Fill: color.RGBA{R: 255, G: 215, A: 255}},
			{Name: "Pin Label", Kind: ShapeRectangle, X: 1540, Y: 290, W: 200, H: 60, Fill: color.RGBA{R: 255, G: 215, A: 255}, Text: "Los Angeles"},
		},
		TextBoxes: []TextBox{
			{Name: "Company Name", Text: "ACME", X: 270, Y: 120, W: 900, H: 200, FontSize: 180, Bold: true, Color: color.RGBA{R: 255, G: 140, A: 255}},
			{Name: "Founders", Text: "Jane Doe\nJohn Roe", X: 320, Y: 415, W: 300, H: 210, FontSize: 28},
			{Name: "Blank", Text: "  "},
		},
	}

	data, err := Export(doc)
	require.NoError(t, err)

	sum, err := Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Slides)
	assert.Equal(t, 2, sum.Pictures)
	assert.Equal(t, 2, sum.Shapes)
	assert.Equal(t, 2, sum.TextBoxes)
	assert.Contains(t, sum.Text, "ACME")
	assert.Contains(t, sum.Text, "John Roe")
}

func TestExportRejectsEmptyDocument(t *testing.T) {
	_, err := Export(Document{})
	assert.True(t, errors.Is(err, ErrEmptyDocument))
}

func TestUnitConversions(t *testing.T) {
	assert.Equal(t, int64(914400), Px(96))
	assert.Equal(t, 135, Points(180))
	assert.Equal(t, "FFFF8C00", Hex(color.RGBA{R: 255, G: 140, A: 255}))
}
