package textlayout

// FitOptions bounds a single line of text that must end before LimitX
type FitOptions struct {
	Base   float64
	Min    float64
	StartX int
	LimitX int
	Stroke int
	Bold   bool
}

// FitFontSize returns the largest size, at most Base, at which text drawn from
// StartX (plus stroke) ends strictly left of LimitX. The size never drops below Min,
// so very long text may still overflow at the floor.
func FitFontSize(fs *FontSet, text string, opts FitOptions) float64 {
	if opts.Min <= 0 || opts.Min > opts.Base {
		opts.Min = opts.Base
	}

	fits := func(size float64) (bool, int) {
		w := Measure(fs.Face(size, opts.Bold), text)
		return opts.StartX+w+opts.Stroke < opts.LimitX, w
	}

	ok, width := fits(opts.Base)
	if ok || width == 0 {
		return opts.Base
	}

	available := float64(opts.LimitX - opts.StartX - opts.Stroke - 1)
	size := opts.Base * available / float64(width)
	if size < opts.Min {
		size = opts.Min
	}
	if size > opts.Base {
		size = opts.Base
	}

	// hinting and kerning make width nonlinear in size
	for size > opts.Min {
		if ok, _ := fits(size); ok {
			return size
		}
		size -= 2
	}
	return opts.Min
}
