package slides

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/image/font"

	"portfolio-slides/slide-service/pkg/bgremove"
	"portfolio-slides/slide-service/pkg/geospatial"
	"portfolio-slides/slide-service/pkg/mapdetect"
	"portfolio-slides/slide-service/pkg/pdf"
	"portfolio-slides/slide-service/pkg/pptx"
	"portfolio-slides/slide-service/pkg/textlayout"
)

// Layout constants of the portfolio template, in template pixels
const (
	nameX         = 270
	nameY         = 120
	nameBaseSize  = 180
	nameMinSize   = 72
	nameStroke    = 3
	nameMapMargin = 40

	bodySize       = 28
	bodyLineHeight = 35
	foundersX      = 320
	investorsX     = 650
	peopleY        = 415
	peopleRegionW  = 600
	peopleRegionH  = 100
	foundersWidth  = investorsX - foundersX - 20
	investorsWidth = 560
	peopleMaxLines = 6

	backgroundX          = 320
	backgroundY          = 650
	backgroundWidth      = 700
	backgroundSize       = 32
	backgroundLineHeight = 36
	backgroundMaxLines   = 10
	backgroundRegionH    = 200

	headshotAreaW = 550
	headshotAreaH = 500
	headshotGap   = 30
	// headshot area position relative to the map region
	headshotDX = -15
	headshotDY = -70
)

var (
	nameFill    = color.RGBA{R: 255, G: 140, B: 0, A: 255}
	nameOutline = color.RGBA{R: 200, G: 80, B: 30, A: 255}
)

// SlideBackground is the color transparent template areas flatten onto
var SlideBackground = color.RGBA{R: 42, G: 42, B: 42, A: 255}

// Overlay step names reported in RenderedSlide.Degraded
const (
	StepName        = "company_name"
	StepLogo        = "logo"
	StepMapImage    = "map_image"
	StepPin         = "location_pin"
	StepFounders    = "founders"
	StepCoInvestors = "co_investors"
	StepBackground  = "background"
	StepHeadshots   = "headshots"
	StepSidebar     = "sidebar"
)

// TemplateStrategy composites company data over a raster template
type TemplateStrategy struct {
	template   TemplateSource
	fonts      *textlayout.FontSet
	resolver   *geospatial.Resolver
	projection geospatial.Projection
	remover    *bgremove.Remover
	generator  *pdf.Generator
	detect     mapdetect.Options
	envelope   textlayout.Envelope
	logger     *zap.Logger
}

// TemplateOptions carries the collaborators of the template strategy. Nil fields
// get offline defaults: table-only geocoding, local background removal and the
// system or embedded fonts.
type TemplateOptions struct {
	Template   TemplateSource
	Fonts      *textlayout.FontSet
	Resolver   *geospatial.Resolver
	Remover    *bgremove.Remover
	Generator  *pdf.Generator
	Detect     *mapdetect.Options
	Envelope   *textlayout.Envelope
	Projection *geospatial.Projection
}

// NewTemplateStrategy creates the raster overlay strategy
func NewTemplateStrategy(opts TemplateOptions, logger *zap.Logger) *TemplateStrategy {
	s := &TemplateStrategy{
		template:   opts.Template,
		fonts:      opts.Fonts,
		resolver:   opts.Resolver,
		projection: geospatial.NewProjection(),
		remover:    opts.Remover,
		generator:  opts.Generator,
		detect:     mapdetect.DefaultOptions(),
		envelope:   textlayout.DefaultEnvelope(),
		logger:     logger,
	}
	if s.fonts == nil {
		s.fonts = textlayout.NewFontSet(textlayout.FontConfig{})
	}
	if s.resolver == nil {
		s.resolver = geospatial.NewResolver(nil, logger)
	}
	if s.remover == nil {
		s.remover = bgremove.NewDefaultRemover(nil, logger)
	}
	if s.generator == nil {
		s.generator = pdf.NewGenerator(pdf.DefaultOptions())
	}
	if opts.Detect != nil {
		s.detect = *opts.Detect
	}
	if opts.Envelope != nil {
		s.envelope = *opts.Envelope
	}
	if opts.Projection != nil {
		s.projection = *opts.Projection
	}
	return s
}

// Name implements Strategy
func (s *TemplateStrategy) Name() string { return "template" }

// Composition is the result of the overlay pipeline before encoding
type Composition struct {
	// Canvas holds everything drawn; in editable mode only the template and map image
	Canvas    *image.RGBA
	MapRegion image.Rectangle
	MapFound  bool
	Pin       image.Point
	PinSource geospatial.Source
	Label     image.Rectangle
	// Editable receives the shapes that editable mode places instead of drawing
	Editable pptx.Document
	Degraded []string
}

type overlay struct {
	ctx      context.Context
	in       Input
	editable bool
	pristine *image.RGBA
	out      *Composition
}

type overlayStep struct {
	name string
	run  func(o *overlay) error
}

// Render runs the overlay pipeline. Only an unusable template or a missing name fail;
// every other step degrades on error.
func (s *TemplateStrategy) Render(ctx context.Context, in Input) (*Composition, error) {
	if err := in.Company.Validate(); err != nil {
		return nil, err
	}

	canvas, err := LoadTemplate(s.template)
	if err != nil {
		return nil, err
	}
	region, found := mapdetect.DetectWithOptions(canvas, s.detect)
	if !found {
		s.logger.Debug("Map outline not detected, using fallback region",
			zap.Stringer("region", region))
	}

	o := &overlay{
		ctx:      ctx,
		in:       in,
		editable: in.Format == FormatPPTX,
		pristine: cloneRGBA(canvas),
		out: &Composition{
			Canvas:    canvas,
			MapRegion: region,
			MapFound:  found,
			Editable: pptx.Document{
				Title:  in.Company.Name,
				Width:  SlideWidth,
				Height: SlideHeight,
			},
		},
	}

	steps := []overlayStep{
		{StepName, s.drawName},
		{StepLogo, s.drawLogo},
		{StepMapImage, s.drawMapImage},
		{StepPin, s.drawPin},
		{StepFounders, s.drawFounders},
		{StepCoInvestors, s.drawCoInvestors},
		{StepBackground, s.drawBackground},
		{StepHeadshots, s.drawHeadshots},
		{StepSidebar, s.drawSidebar},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.runStep(o, step)
	}
	return o.out, nil
}

func (s *TemplateStrategy) runStep(o *overlay, step overlayStep) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return step.run(o)
	}()
	if err != nil {
		s.logger.Warn("Overlay step failed, continuing without it",
			zap.String("step", step.name),
			zap.String("company", o.in.Company.Name),
			zap.Error(err))
		o.out.Degraded = append(o.out.Degraded, step.name)
	}
}

// Compose implements Strategy
func (s *TemplateStrategy) Compose(ctx context.Context, in Input) (*RenderedSlide, error) {
	if in.Format == "" {
		in.Format = FormatPDF
	}
	comp, err := s.Render(ctx, in)
	if err != nil {
		return nil, err
	}

	flat := pdf.Flatten(comp.Canvas, SlideBackground)
	slide := &RenderedSlide{
		Format:   in.Format,
		Width:    SlideWidth,
		Height:   SlideHeight,
		Degraded: comp.Degraded,
	}

	switch in.Format {
	case FormatPDF:
		slide.Data, err = s.generator.SinglePage(flat)
		if err != nil {
			return nil, fmt.Errorf("failed to encode slide pdf: %w", err)
		}
		if slide.Preview, err = encodePNG(flat); err != nil {
			return nil, fmt.Errorf("failed to encode slide preview: %w", err)
		}
	case FormatPPTX:
		doc := comp.Editable
		if doc.Background, err = encodePNG(flat); err != nil {
			return nil, fmt.Errorf("failed to encode slide background: %w", err)
		}
		slide.Data, err = pptx.Export(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode slide pptx: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, in.Format)
	}

	s.logger.Info("Composed slide",
		zap.String("company", in.Company.Name),
		zap.String("format", string(in.Format)),
		zap.Int("bytes", len(slide.Data)),
		zap.Strings("degraded", slide.Degraded))
	return slide, nil
}

func (s *TemplateStrategy) drawName(o *overlay) error {
	text := o.in.Company.DisplayName()
	size := textlayout.FitFontSize(s.fonts, text, textlayout.FitOptions{
		Base:   nameBaseSize,
		Min:    nameMinSize,
		StartX: nameX,
		LimitX: o.out.MapRegion.Min.X - nameMapMargin,
		Stroke: nameStroke,
		Bold:   true,
	})
	face := s.fonts.Face(size, true)

	if o.editable {
		o.out.Editable.TextBoxes = append(o.out.Editable.TextBoxes, pptx.TextBox{
			Name:     StepName,
			Text:     text,
			X:        nameX,
			Y:        nameY,
			W:        textlayout.Measure(face, text) + 2*nameStroke,
			H:        textlayout.LineHeight(face) + 2*nameStroke,
			FontSize: int(size),
			Bold:     true,
			Color:    nameFill,
		})
		return nil
	}
	textlayout.DrawStroked(o.out.Canvas, text, nameX, nameY, face, nameFill, nameOutline, nameStroke)
	return nil
}

func (s *TemplateStrategy) drawLogo(o *overlay) error {
	if len(o.in.Logo) == 0 {
		return nil
	}
	img, err := decodeImage(o.in.Logo)
	if err != nil {
		return fmt.Errorf("failed to load logo: %w", err)
	}
	logo := circularLogo(img)
	at := logoOrigin(SlideWidth)

	if o.editable {
		data, err := encodePNG(logo)
		if err != nil {
			return err
		}
		o.out.Editable.Pictures = append(o.out.Editable.Pictures, pptx.Picture{
			Name: StepLogo, PNG: data, X: at.X, Y: at.Y, W: logoCanvas, H: logoCanvas,
		})
		return nil
	}
	draw.Draw(o.out.Canvas, image.Rectangle{Min: at, Max: at.Add(image.Pt(logoCanvas, logoCanvas))}, logo, image.Point{}, draw.Over)
	return nil
}

// drawMapImage pastes a pre-rendered map into the map region. It is part of the
// background in both modes.
func (s *TemplateStrategy) drawMapImage(o *overlay) error {
	if len(o.in.MapImage) == 0 {
		return nil
	}
	img, err := decodeImage(o.in.MapImage)
	if err != nil {
		return fmt.Errorf("failed to load map image: %w", err)
	}
	r := o.out.MapRegion
	fitted := imaging.Resize(img, r.Dx(), r.Dy(), imaging.Lanczos)
	draw.Draw(o.out.Canvas, r, fitted, image.Point{}, draw.Over)
	return nil
}

func (s *TemplateStrategy) drawPin(o *overlay) error {
	city := o.in.Company.City()
	res := s.resolver.ResolveWithSource(o.ctx, o.in.Company.Place())
	pt := s.projection.Project(res.Point, o.out.MapRegion)
	lbl := placeLabel(s.fonts, city, pt, o.out.MapRegion)

	o.out.Pin = pt
	o.out.PinSource = res.Source
	o.out.Label = lbl.Box

	if o.editable {
		b := pinBounds(pt)
		o.out.Editable.Shapes = append(o.out.Editable.Shapes,
			pptx.Shape{Name: StepPin, Kind: pptx.ShapeEllipse, X: b.Min.X, Y: b.Min.Y, W: pinWidth, H: pinHeight, Fill: pinYellow},
			pptx.Shape{Name: "location_label", Kind: pptx.ShapeRectangle, X: lbl.Box.Min.X, Y: lbl.Box.Min.Y,
				W: lbl.Box.Dx(), H: lbl.Box.Dy(), Fill: pinYellow, Text: city},
		)
		return nil
	}
	drawPin(o.out.Canvas, pt)
	drawLabel(o.out.Canvas, lbl)
	return nil
}

func (s *TemplateStrategy) drawFounders(o *overlay) error {
	return s.drawPeople(o, StepFounders, o.in.Company.Founders, foundersX, foundersWidth)
}

func (s *TemplateStrategy) drawCoInvestors(o *overlay) error {
	return s.drawPeople(o, StepCoInvestors, o.in.Company.CoInvestors, investorsX, investorsWidth)
}

// drawPeople writes one name per line in the template's own text color
func (s *TemplateStrategy) drawPeople(o *overlay, name string, people []string, x, width int) error {
	if len(people) == 0 {
		return nil
	}
	face := s.fonts.Face(bodySize, false)
	lines := textlayout.WrapItems(people, face, width, peopleMaxLines)
	fill := SampleTextColor(o.pristine, image.Rect(x, peopleY, x+peopleRegionW, peopleY+peopleRegionH))
	return s.placeLines(o, name, lines, x, peopleY, width, bodyLineHeight, bodySize, face, fill)
}

func (s *TemplateStrategy) drawBackground(o *overlay) error {
	text := o.in.Company.Text()
	if text == "" {
		return nil
	}
	face := s.fonts.Face(backgroundSize, false)
	lines := textlayout.Wrap(text, face, backgroundWidth, backgroundMaxLines)
	fill := SampleTextColor(o.pristine, image.Rect(backgroundX, backgroundY, backgroundX+backgroundWidth, backgroundY+backgroundRegionH))
	return s.placeLines(o, StepBackground, lines, backgroundX, backgroundY, backgroundWidth, backgroundLineHeight, backgroundSize, face, fill)
}

func (s *TemplateStrategy) placeLines(o *overlay, name string, lines []string, x, y, width, lineHeight int, size float64, face font.Face, fill color.Color) error {
	if len(lines) == 0 {
		return nil
	}
	if o.editable {
		o.out.Editable.TextBoxes = append(o.out.Editable.TextBoxes, pptx.TextBox{
			Name:     name,
			Text:     strings.Join(lines, "\n"),
			X:        x,
			Y:        y,
			W:        width,
			H:        lineHeight * len(lines),
			FontSize: int(size),
			Color:    fill,
		})
		return nil
	}
	textlayout.DrawLines(o.out.Canvas, lines, x, y, lineHeight, face, fill)
	return nil
}

// HeadshotArea is the box headshots are fitted into, anchored below the map region
// and kept inside the slide
func HeadshotArea(region image.Rectangle) image.Rectangle {
	x := clamp(region.Min.X+headshotDX, 0, SlideWidth-headshotAreaW)
	y := clamp(region.Max.Y+headshotDY, 0, SlideHeight-headshotAreaH)
	return image.Rect(x, y, x+headshotAreaW, y+headshotAreaH)
}

// headshotSlots splits the area into n side-by-side columns separated by the gap
func headshotSlots(area image.Rectangle, n int) []image.Rectangle {
	if n <= 0 {
		return nil
	}
	w := (area.Dx() - headshotGap*(n-1)) / n
	slots := make([]image.Rectangle, n)
	for i := range slots {
		x := area.Min.X + i*(w+headshotGap)
		slots[i] = image.Rect(x, area.Min.Y, x+w, area.Max.Y)
	}
	return slots
}

// drawHeadshots removes backgrounds, converts to grayscale and centers each
// headshot in its slot. Up to two are placed.
func (s *TemplateStrategy) drawHeadshots(o *overlay) error {
	shots := o.in.Headshots
	if len(shots) > 2 {
		shots = shots[:2]
	}
	if len(shots) == 0 {
		return nil
	}

	slots := headshotSlots(HeadshotArea(o.out.MapRegion), len(shots))
	var failed int
	for i, data := range shots {
		if len(data) == 0 {
			continue
		}
		img, err := decodeImage(data)
		if err != nil {
			s.logger.Warn("Skipping undecodable headshot", zap.Int("index", i), zap.Error(err))
			failed++
			continue
		}
		res := s.remover.ProcessHeadshot(o.ctx, img)
		fitted := imaging.Fit(res.Image, slots[i].Dx(), slots[i].Dy(), imaging.Lanczos)
		fb := fitted.Bounds()
		at := image.Pt(
			slots[i].Min.X+(slots[i].Dx()-fb.Dx())/2,
			slots[i].Min.Y+(slots[i].Dy()-fb.Dy())/2,
		)

		s.logger.Debug("Placed headshot",
			zap.Int("index", i),
			zap.String("tier", res.Tier),
			zap.Stringer("at", at))

		if o.editable {
			png, err := encodePNG(fitted)
			if err != nil {
				return err
			}
			o.out.Editable.Pictures = append(o.out.Editable.Pictures, pptx.Picture{
				Name: fmt.Sprintf("headshot_%d", i+1), PNG: png,
				X: at.X, Y: at.Y, W: fb.Dx(), H: fb.Dy(),
			})
			continue
		}
		draw.Draw(o.out.Canvas, fb.Sub(fb.Min).Add(at), fitted, fb.Min, draw.Over)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d headshots could not be decoded", failed, len(shots))
	}
	return nil
}

func (s *TemplateStrategy) drawSidebar(o *overlay) error {
	stage := o.in.Company.Stage()
	if o.editable {
		text := textlayout.FormatStage(stage)
		size := textlayout.StageFontSize(text)
		face := s.fonts.Face(size, true)
		w := textlayout.Measure(face, text)
		h := textlayout.LineHeight(face)
		// a box rotated about its center; place it so the rotated text fills the sidebar
		cx := s.envelope.SidebarWidth / 2
		cy := s.envelope.AnchorY + w/2
		o.out.Editable.TextBoxes = append(o.out.Editable.TextBoxes, pptx.TextBox{
			Name:     StepSidebar,
			Text:     text,
			X:        cx - w/2,
			Y:        cy - h/2,
			W:        w,
			H:        h,
			FontSize: int(size),
			Bold:     true,
			Color:    color.Black,
			Rotation: 270,
		})
		return nil
	}
	textlayout.DrawRotatedSidebar(o.out.Canvas, stage, s.fonts, s.envelope)
	return nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
