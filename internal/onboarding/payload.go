package onboarding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"portfolio-slides/slide-service/internal/slides"
	"portfolio-slides/slide-service/pkg/retry"
)

// flatPrefix marks company fields in flattened automation payloads
const flatPrefix = "company_data__"

// top-level keys of a flat payload that are not company fields
var metadataKeys = map[string]bool{
	"headshot_url":        true,
	"logo_url":            true,
	"notion_page_id":      true,
	"notion_created_time": true,
	"notion_last_edited":  true,
	"status":              true,
	"format":              true,
	"strategy":            true,
}

// company fields that arrive as numbers or booleans from some sources
var stringFields = []string{"name", "year", "quarter", "investment_round", "investment_stage", "address", "location", "background", "description", "website", "birthday", "investment_date", "investment_memo"}

// ImageRef is an image given inline or by URL
type ImageRef struct {
	Data []byte
	URL  string
}

// Request is a parsed onboarding payload
type Request struct {
	Company      slides.CompanyRecord
	Headshots    []ImageRef
	Logo         *ImageRef
	NotionPageID string
	Format       slides.Format
	Strategy     string
}

// ParsePayload accepts the nested form {"company_data": {...}} or the flat form
// {"company_data__name": ...}. In the flat form remaining top-level keys are
// company fields too, except known metadata.
func ParsePayload(data []byte) (*Request, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}

	company, ok := raw["company_data"].(map[string]any)
	if !ok {
		company = make(map[string]any)
		for k, v := range raw {
			switch {
			case strings.HasPrefix(k, flatPrefix):
				company[strings.TrimPrefix(k, flatPrefix)] = v
			case k == "company_data", metadataKeys[k]:
			default:
				company[k] = v
			}
		}
	}

	record, err := decodeCompany(company)
	if err != nil {
		return nil, err
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	req := &Request{Company: record}
	req.NotionPageID = firstString(raw["notion_page_id"], company["notion_page_id"])
	if req.NotionPageID != "" {
		req.Company.NotionPageID = req.NotionPageID
	}
	if req.Format, err = slides.ParseFormat(firstString(raw["format"])); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	req.Strategy = firstString(raw["strategy"])

	if ref, err := firstImage(raw["headshot"], raw["headshot_url"], company["headshot"], company["headshot_url"]); err != nil {
		return nil, fmt.Errorf("%w: headshot: %v", ErrInvalidPayload, err)
	} else if ref != nil {
		req.Headshots = append(req.Headshots, *ref)
	}
	for _, list := range []any{raw["headshots"], company["headshots"], raw["headshot_urls"], company["headshot_urls"]} {
		items, _ := list.([]any)
		for i, item := range items {
			ref, err := imageRef(item)
			if err != nil {
				return nil, fmt.Errorf("%w: headshots[%d]: %v", ErrInvalidPayload, i, err)
			}
			if ref != nil {
				req.Headshots = append(req.Headshots, *ref)
			}
		}
	}

	if req.Logo, err = firstImage(raw["logo"], raw["logo_url"], company["logo"], company["logo_url"]); err != nil {
		return nil, fmt.Errorf("%w: logo: %v", ErrInvalidPayload, err)
	}
	return req, nil
}

// decodeCompany normalizes loosely typed values and decodes them into a record
func decodeCompany(fields map[string]any) (slides.CompanyRecord, error) {
	normalized := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case "headshot", "headshot_url", "headshots", "headshot_urls", "logo", "logo_url":
			continue
		}
		normalized[k] = v
	}
	for _, k := range stringFields {
		if v, ok := normalized[k]; ok {
			normalized[k] = stringify(v)
		}
	}
	if v, ok := normalized["number_of_employees"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(stringify(v))); err == nil {
			normalized["number_of_employees"] = n
		} else {
			delete(normalized, "number_of_employees")
		}
	}
	if v, ok := normalized["first_time_founder"]; ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(stringify(v))); err == nil {
			normalized["first_time_founder"] = b
		} else {
			delete(normalized, "first_time_founder")
		}
	}

	encoded, err := json.Marshal(normalized)
	if err != nil {
		return slides.CompanyRecord{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	var record slides.CompanyRecord
	if err := json.Unmarshal(encoded, &record); err != nil {
		return slides.CompanyRecord{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return record, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func firstString(values ...any) string {
	for _, v := range values {
		if s := strings.TrimSpace(stringify(v)); s != "" {
			return s
		}
	}
	return ""
}

func firstImage(values ...any) (*ImageRef, error) {
	for _, v := range values {
		ref, err := imageRef(v)
		if err != nil || ref != nil {
			return ref, err
		}
	}
	return nil, nil
}

// imageRef reads a URL, a data URI or bare base64
func imageRef(v any) (*ImageRef, error) {
	s, ok := v.(string)
	if !ok {
		return nil, nil
	}
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, nil
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return &ImageRef{URL: s}, nil
	case strings.HasPrefix(s, "data:"):
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); err != nil {
			return nil, errors.New("image is neither a URL nor base64")
		}
	}
	return &ImageRef{Data: data}, nil
}

// Placeholder image size and color for missing uploads
const placeholderSize = 400

var placeholderGray = color.NRGBA{R: 200, G: 200, B: 200, A: 255}

// Placeholder returns a flat gray PNG used when an image is missing
func Placeholder() []byte {
	var buf bytes.Buffer
	// encoding an in-memory NRGBA cannot fail
	_ = png.Encode(&buf, imaging.New(placeholderSize, placeholderSize, placeholderGray))
	return buf.Bytes()
}

// ImageFetcher downloads images referenced by URL
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher downloads over HTTP with the shared retry policy
type HTTPFetcher struct {
	client *http.Client
	policy retry.Policy
	logger *zap.Logger
}

// NewHTTPFetcher creates a fetcher with the given timeout
func NewHTTPFetcher(timeout time.Duration, logger *zap.Logger) *HTTPFetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		policy: retry.DefaultPolicy(),
		logger: logger,
	}
}

// Fetch implements ImageFetcher
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return retry.DoRequest(ctx, f.client, f.logger, "fetch image", f.policy, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}

// SetRetryPolicy overrides the default retry policy
func (f *HTTPFetcher) SetRetryPolicy(p retry.Policy) {
	f.policy = p
}
