package geospatial

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"portfolio-slides/slide-service/pkg/retry"
)

// ErrNotFound is returned when the geocoding service has no match
var ErrNotFound = errors.New("location not found")

// Geocoder resolves a free-form place name to a point
type Geocoder interface {
	Geocode(ctx context.Context, query string) (GeoPoint, error)
}

// NominatimClient queries a Nominatim-compatible search API restricted to the US
type NominatimClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	policy     retry.Policy
	logger     *zap.Logger
}

// NominatimConfig configures the geocoding client
type NominatimConfig struct {
	BaseURL   string        `json:"base_url"`
	UserAgent string        `json:"user_agent"`
	Timeout   time.Duration `json:"timeout"`
}

// NewNominatimClient creates a geocoding client
func NewNominatimClient(cfg NominatimConfig, logger *zap.Logger) *NominatimClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "portfolio-slide-service/1.0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &NominatimClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		policy:     retry.DefaultPolicy(),
		logger:     logger,
	}
}

// SetRetryPolicy overrides the default retry policy
func (c *NominatimClient) SetRetryPolicy(p retry.Policy) {
	c.policy = p
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode returns the first US match for query
func (c *NominatimClient) Geocode(ctx context.Context, query string) (GeoPoint, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("countrycodes", "us")
	params.Set("format", "json")
	params.Set("limit", "1")
	endpoint := c.baseURL + "/search?" + params.Encode()

	body, err := retry.DoRequest(ctx, c.httpClient, c.logger, "geocode", c.policy, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return GeoPoint{}, err
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return GeoPoint{}, fmt.Errorf("failed to decode geocode response: %w", err)
	}
	if len(results) == 0 {
		return GeoPoint{}, ErrNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("failed to parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("failed to parse longitude: %w", err)
	}
	return GeoPoint{Lat: lat, Lon: lon}, nil
}
