package bgremove

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"portfolio-slides/slide-service/pkg/retry"
)

// ErrNoAPIKey is returned when the API tier is asked to run without credentials
var ErrNoAPIKey = errors.New("background removal API key not configured")

// APIConfig configures the remove.bg-compatible client
type APIConfig struct {
	APIKey  string        `json:"api_key"`
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// APIClient is the external background-removal tier.
// Contract: POST {base}/v1.0/removebg, multipart image_file, size=auto, X-Api-Key header,
// PNG with alpha in the response body.
type APIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	logger     *zap.Logger
}

// NewAPIClient creates the API tier
func NewAPIClient(cfg APIConfig, logger *zap.Logger) *APIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.remove.bg"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &APIClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		policy:     retry.DefaultPolicy(),
		logger:     logger,
	}
}

// SetRetryPolicy overrides the default retry policy
func (c *APIClient) SetRetryPolicy(p retry.Policy) {
	c.policy = p
}

func (c *APIClient) Name() string { return "api" }

// Remove implements Tier
func (c *APIClient) Remove(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	var encoded bytes.Buffer
	if err := png.Encode(&encoded, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	body, err := retry.DoRequest(ctx, c.httpClient, c.logger, "remove background", c.policy, func(ctx context.Context) (*http.Request, error) {
		var form bytes.Buffer
		mw := multipart.NewWriter(&form)
		part, err := mw.CreateFormFile("image_file", "headshot.png")
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(encoded.Bytes()); err != nil {
			return nil, err
		}
		if err := mw.WriteField("size", "auto"); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1.0/removebg", &form)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("X-Api-Key", c.apiKey)
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	out, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to decode cutout: %w", err)
	}
	return imaging.Clone(out), nil
}
