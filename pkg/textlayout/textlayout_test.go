package textlayout

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFonts() *FontSet {
	return NewFontSet(FontConfig{SkipSystem: true})
}

func TestFontSetFallsBackToEmbedded(t *testing.T) {
	fs := NewFontSet(FontConfig{RegularPaths: []string{"/does/not/exist.ttf"}, SkipSystem: true})

	assert.Equal(t, "goregular", fs.Source(false))
	assert.Equal(t, "gobold", fs.Source(true))
	assert.Greater(t, Measure(fs.Face(40, false), "ACME"), Measure(fs.Face(20, false), "ACME"))
}

func TestWrapNeverExceedsWidth(t *testing.T) {
	face := testFonts().Face(32, false)
	text := "Serial founders building infrastructure for distributed energy markets across " +
		"the western United States, previously at Tesla and SunPower, backed by top-tier angels."

	for _, width := range []int{150, 300, 700} {
		lines := Wrap(text, face, width, 0)
		require.NotEmpty(t, lines)
		for _, line := range lines {
			assert.LessOrEqual(t, Measure(face, line), width, "line %q at width %d", line, width)
		}
		if width >= 300 {
			assert.Equal(t, strings.Join(strings.Fields(text), " "), strings.Join(lines, " "))
		}
	}
}

func TestWrapBreaksOverlongWord(t *testing.T) {
	face := testFonts().Face(28, false)
	word := strings.Repeat("W", 40)

	lines := Wrap(word, face, 200, 0)

	require.Greater(t, len(lines), 1)
	assert.Equal(t, word, strings.Join(lines, ""))
	for _, line := range lines {
		assert.LessOrEqual(t, Measure(face, line), 200)
	}
}

func TestWrapTruncatesToMaxLines(t *testing.T) {
	face := testFonts().Face(28, false)
	text := strings.Repeat("lorem ipsum dolor ", 60)

	assert.Len(t, Wrap(text, face, 300, 10), 10)
	assert.Empty(t, Wrap("   ", face, 300, 10))
}

func TestWrapItemsKeepsOneItemPerLine(t *testing.T) {
	face := testFonts().Face(28, false)

	lines := WrapItems([]string{"Jane Doe", "John Roe"}, face, 300, 6)

	assert.Equal(t, []string{"Jane Doe", "John Roe"}, lines)
}

func TestFitFontSizeKeepsShortTextAtBase(t *testing.T) {
	size := FitFontSize(testFonts(), "ACME", FitOptions{Base: 180, Min: 72, StartX: 270, LimitX: 1210, Stroke: 3, Bold: true})
	assert.Equal(t, 180.0, size)
}

func TestFitFontSizeShrinksOverlappingText(t *testing.T) {
	fs := testFonts()
	opts := FitOptions{Base: 180, Min: 72, StartX: 270, LimitX: 1210, Stroke: 3, Bold: true}
	text := "EXTRAORDINARY"

	require.GreaterOrEqual(t, opts.StartX+Measure(fs.Face(opts.Base, true), text), opts.LimitX)

	size := FitFontSize(fs, text, opts)

	assert.Less(t, size, opts.Base)
	assert.GreaterOrEqual(t, size, opts.Min)
	assert.Less(t, opts.StartX+Measure(fs.Face(size, true), text)+opts.Stroke, opts.LimitX)
}

func TestFitFontSizeStopsAtFloor(t *testing.T) {
	size := FitFontSize(testFonts(), strings.Repeat("WIDE", 20), FitOptions{Base: 180, Min: 72, StartX: 270, LimitX: 1210, Bold: true})
	assert.Equal(t, 72.0, size)
}

func TestDrawStrokedPaintsOutline(t *testing.T) {
	dst := imaging.New(400, 100, color.NRGBA{A: 255})
	face := testFonts().Face(48, true)

	DrawStroked(dst, "HI", 10, 10, face, color.NRGBA{R: 255, G: 140, A: 255}, color.NRGBA{R: 200, G: 80, B: 30, A: 255}, 3)

	var fill, stroke int
	for i := 0; i < len(dst.Pix); i += 4 {
		switch {
		case dst.Pix[i] == 255 && dst.Pix[i+1] == 140:
			fill++
		case dst.Pix[i] == 200 && dst.Pix[i+1] == 80:
			stroke++
		}
	}
	assert.Positive(t, fill)
	assert.Positive(t, stroke)
	assert.True(t, TextBounds(face, "HI", 10, 10).In(dst.Bounds()))
}

func TestFormatStage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SEED Q2, 2024", "SEED Q2 2024"},
		{"PRE-SEED  Q4,2023", "PRE-SEED Q4 2023"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatStage(tt.in))
	}
}

func TestStageFontSize(t *testing.T) {
	assert.Equal(t, 40.0, StageFontSize("SEED Q2 2024"))
	assert.Equal(t, 34.0, StageFontSize("PRE-SEED Q2 2024"))
	assert.Equal(t, 30.0, StageFontSize("SERIES A EXT Q2 2024"))
}

func TestRenderRotatedIsVertical(t *testing.T) {
	out := RenderRotated(testFonts(), "SEED Q2 2024", 40, 100)

	assert.Greater(t, out.Bounds().Dy(), out.Bounds().Dx())
}

func TestDrawRotatedSidebarStaysInEnvelope(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 1920, 1080))
	env := DefaultEnvelope()

	rect := DrawRotatedSidebar(dst, "SEED Q2, 2024", testFonts(), env)

	require.False(t, rect.Empty())
	assert.GreaterOrEqual(t, rect.Min.X, env.MinX)
	assert.LessOrEqual(t, rect.Max.X, env.SidebarWidth-env.Margin)
	assert.Equal(t, env.AnchorY, rect.Min.Y)
	assert.LessOrEqual(t, rect.Dy(), env.MaxHeight)

	var painted int
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if dst.RGBAAt(x, y).A > 0 {
				painted++
			}
		}
	}
	assert.Positive(t, painted)
	assert.True(t, DrawRotatedSidebar(dst, " , ", testFonts(), env).Empty())
}
