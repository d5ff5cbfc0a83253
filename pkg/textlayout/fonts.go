package textlayout

import (
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// system font paths tried after the configured ones
var (
	systemRegular = []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
		"/System/Library/Fonts/Supplemental/Arial.ttf",
		"/Library/Fonts/Arial.ttf",
	}
	systemBold = []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		"/usr/share/fonts/truetype/liberation/LiberationSans-Bold.ttf",
		"/System/Library/Fonts/Supplemental/Arial Bold.ttf",
		"/Library/Fonts/Arial Bold.ttf",
	}
)

// FontConfig lists font files to try before the system and embedded fonts
type FontConfig struct {
	RegularPaths []string `json:"regular_paths" yaml:"regular_paths"`
	BoldPaths    []string `json:"bold_paths" yaml:"bold_paths"`
	// SkipSystem ignores installed fonts so output does not depend on the host
	SkipSystem bool `json:"skip_system" yaml:"skip_system"`
}

// FontSet resolves faces through an ordered candidate list ending in the embedded
// Go fonts and, if even those fail to parse, the basic bitmap face
type FontSet struct {
	regular *opentype.Font
	bold    *opentype.Font
	sources map[bool]string
}

// NewFontSet loads the first readable candidate for each weight
func NewFontSet(cfg FontConfig) *FontSet {
	regularPaths := cfg.RegularPaths
	boldPaths := cfg.BoldPaths
	if !cfg.SkipSystem {
		regularPaths = append(append([]string{}, regularPaths...), systemRegular...)
		boldPaths = append(append([]string{}, boldPaths...), systemBold...)
	}

	fs := &FontSet{sources: make(map[bool]string)}
	fs.regular, fs.sources[false] = loadFirst(regularPaths, goregular.TTF, "goregular")
	fs.bold, fs.sources[true] = loadFirst(boldPaths, gobold.TTF, "gobold")
	return fs
}

func loadFirst(paths []string, embedded []byte, embeddedName string) (*opentype.Font, string) {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if f, err := opentype.Parse(data); err == nil {
			return f, path
		}
	}
	if f, err := opentype.Parse(embedded); err == nil {
		return f, embeddedName
	}
	return nil, "basicfont"
}

// Source returns the file or embedded font backing a weight
func (fs *FontSet) Source(bold bool) string {
	return fs.sources[bold]
}

// Face returns a new face at size pixels. Faces are not safe for concurrent use, so
// each caller gets its own.
func (fs *FontSet) Face(size float64, bold bool) font.Face {
	f := fs.regular
	if bold {
		f = fs.bold
	}
	if f == nil {
		return basicfont.Face7x13
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}
