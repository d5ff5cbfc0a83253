package slides

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingName is returned when a company has no name to render
	ErrMissingName = errors.New("company name is required")
	// ErrTemplateUnavailable is returned when the slide template cannot be opened or decoded
	ErrTemplateUnavailable = errors.New("slide template unavailable")
	// ErrUnsupportedTemplate is returned for template formats that cannot be rasterized
	ErrUnsupportedTemplate = errors.New("unsupported template format")
	// ErrUnsupportedFormat is returned when a strategy cannot produce the requested output
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrUnknownStrategy is returned when no strategy is registered under a name
	ErrUnknownStrategy = errors.New("unknown composition strategy")
)

// Format is the encoding of a rendered slide
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatPPTX Format = "pptx"
)

// ParseFormat maps a user-supplied format name, defaulting to PDF
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pdf":
		return FormatPDF, nil
	case "pptx":
		return FormatPPTX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Extension returns the file extension including the dot
func (f Format) Extension() string {
	return "." + string(f)
}

// Stage defaults used when neither an explicit stage nor its parts are given
const (
	DefaultRound    = "PRE-SEED"
	DefaultQuarter  = "Q2"
	DefaultYear     = "2024"
	DefaultLocation = "Los Angeles"
)

// NameList is a list of people or firms that also accepts a single
// comma-separated string when decoded
type NameList []string

// ParseNameList splits s on commas and newlines, trims and drops empties
func ParseNameList(s string) NameList {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' })
	out := make(NameList, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func cleanNames(items []string) NameList {
	out := make(NameList, 0, len(items))
	for _, item := range items {
		out = append(out, ParseNameList(item)...)
	}
	return out
}

// UnmarshalJSON accepts either a string or an array of strings
func (n *NameList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = ParseNameList(s)
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("name list must be a string or an array of strings: %w", err)
	}
	*n = cleanNames(items)
	return nil
}

// UnmarshalYAML accepts either a scalar or a sequence
func (n *NameList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*n = ParseNameList(value.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*n = cleanNames(items)
		return nil
	default:
		return fmt.Errorf("line %d: name list must be a string or a list", value.Line)
	}
}

// CompanyRecord is everything known about a portfolio company that feeds a slide
type CompanyRecord struct {
	Name            string   `json:"name" yaml:"name"`
	Founders        NameList `json:"founders,omitempty" yaml:"founders,omitempty"`
	CoInvestors     NameList `json:"co_investors,omitempty" yaml:"co_investors,omitempty"`
	Background      string   `json:"background,omitempty" yaml:"background,omitempty"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	Address         string   `json:"address,omitempty" yaml:"address,omitempty"`
	Location        string   `json:"location,omitempty" yaml:"location,omitempty"`
	InvestmentStage string   `json:"investment_stage,omitempty" yaml:"investment_stage,omitempty"`
	InvestmentRound string   `json:"investment_round,omitempty" yaml:"investment_round,omitempty"`
	Quarter         string   `json:"quarter,omitempty" yaml:"quarter,omitempty"`
	Year            string   `json:"year,omitempty" yaml:"year,omitempty"`

	// Carried through to the workspace record
	Website           string `json:"website,omitempty" yaml:"website,omitempty"`
	Birthday          string `json:"birthday,omitempty" yaml:"birthday,omitempty"`
	InvestmentDate    string `json:"investment_date,omitempty" yaml:"investment_date,omitempty"`
	NumberOfEmployees *int   `json:"number_of_employees,omitempty" yaml:"number_of_employees,omitempty"`
	FirstTimeFounder  *bool  `json:"first_time_founder,omitempty" yaml:"first_time_founder,omitempty"`
	InvestmentMemo    string `json:"investment_memo,omitempty" yaml:"investment_memo,omitempty"`
	NotionPageID      string `json:"notion_page_id,omitempty" yaml:"notion_page_id,omitempty"`
}

// Validate checks the only required field
func (c CompanyRecord) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrMissingName
	}
	return nil
}

// DisplayName is the uppercased slide title
func (c CompanyRecord) DisplayName() string {
	return strings.ToUpper(strings.TrimSpace(c.Name))
}

// Text is the free-text paragraph: background, else description
func (c CompanyRecord) Text() string {
	if s := strings.TrimSpace(c.Background); s != "" {
		return s
	}
	return strings.TrimSpace(c.Description)
}

// Place is the full location string: address, else location, else the default city
func (c CompanyRecord) Place() string {
	for _, s := range []string{c.Address, c.Location} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return DefaultLocation
}

// City is the token of Place before the first comma
func (c CompanyRecord) City() string {
	place := c.Place()
	if i := strings.Index(place, ","); i >= 0 {
		place = place[:i]
	}
	if place = strings.TrimSpace(place); place == "" {
		return DefaultLocation
	}
	return place
}

// Stage is the investment stage line, built as "ROUND QUARTER, YEAR" when not given
func (c CompanyRecord) Stage() string {
	if s := strings.TrimSpace(c.InvestmentStage); s != "" {
		return s
	}
	round := orDefault(c.InvestmentRound, DefaultRound)
	quarter := orDefault(c.Quarter, DefaultQuarter)
	year := orDefault(c.Year, DefaultYear)
	return fmt.Sprintf("%s %s, %s", strings.ToUpper(round), strings.ToUpper(quarter), year)
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

var unsafeFilename = regexp.MustCompile(`[<>:"/\\|?*]`)

// maxFilenameBytes is the common file system limit for one path element
const maxFilenameBytes = 255

// SanitizeFilename replaces characters that are invalid in file names and caps the length
func SanitizeFilename(name string) string {
	name = unsafeFilename.ReplaceAllString(strings.TrimSpace(name), "_")
	if len(name) > maxFilenameBytes {
		cut := maxFilenameBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name
}

// SlideFilename is the stored name of a company's slide, e.g. "Acme_Robotics_slide.pdf"
func SlideFilename(company string, format Format) string {
	name := strings.ReplaceAll(strings.TrimSpace(company), " ", "_") + "_slide" + format.Extension()
	return SanitizeFilename(name)
}

// Slug normalizes a company name into a stable key: lowercase runs of letters
// and digits, in any script, joined by dashes. A name with no letters or digits
// is keyed by a hash of the trimmed name.
func Slug(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	gap := false
	for _, r := range strings.ToLower(name) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			gap = true
			continue
		}
		if gap && b.Len() > 0 {
			b.WriteByte('-')
		}
		gap = false
		b.WriteRune(r)
	}
	if b.Len() == 0 && name != "" {
		sum := sha256.Sum256([]byte(name))
		return "company-" + hex.EncodeToString(sum[:4])
	}
	return b.String()
}

// RenderedSlide is one encoded slide
type RenderedSlide struct {
	Format Format `json:"format"`
	Data   []byte `json:"-"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	// Degraded names the overlay steps that were skipped
	Degraded []string `json:"degraded,omitempty"`
	// Preview is the flattened raster as PNG, set by strategies that draw the slide themselves
	Preview []byte `json:"-"`
}

// Input is one composition request
type Input struct {
	Company   CompanyRecord
	Headshots [][]byte
	Logo      []byte
	MapImage  []byte
	Format    Format
}
