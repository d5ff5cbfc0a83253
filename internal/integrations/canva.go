package integrations

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"portfolio-slides/slide-service/pkg/retry"
)

var (
	// ErrJobFailed is returned when an asynchronous Canva job ends in failure
	ErrJobFailed = errors.New("canva job failed")
	// ErrJobTimeout is returned when a job is still running after the last poll
	ErrJobTimeout = errors.New("canva job did not finish in time")
)

// CanvaConfig configures the hosted template client
type CanvaConfig struct {
	APIKey       string        `json:"api_key"`
	TemplateID   string        `json:"template_id"`
	BaseURL      string        `json:"base_url"`
	Timeout      time.Duration `json:"timeout"`
	PollInterval time.Duration `json:"poll_interval"`
	MaxPolls     int           `json:"max_polls"`
}

// AutofillField is one data field of a brand template, either text or an uploaded asset
type AutofillField struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	AssetID string `json:"asset_id,omitempty"`
}

// TextField builds a text autofill value
func TextField(s string) AutofillField { return AutofillField{Type: "text", Text: s} }

// ImageField builds an image autofill value
func ImageField(assetID string) AutofillField { return AutofillField{Type: "image", AssetID: assetID} }

// CanvaClient drives the Canva Connect REST API: asset upload, brand template
// autofill and PDF export, each an asynchronous job polled until it settles
type CanvaClient struct {
	apiClient
	templateID   string
	pollInterval time.Duration
	maxPolls     int
}

// NewCanvaClient creates a Canva client
func NewCanvaClient(cfg CanvaConfig, logger *zap.Logger) *CanvaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.canva.com/rest"
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxPolls == 0 {
		cfg.MaxPolls = 30
	}
	return &CanvaClient{
		apiClient:    newAPIClient("canva", cfg.BaseURL, cfg.APIKey, cfg.Timeout, logger),
		templateID:   cfg.TemplateID,
		pollInterval: cfg.PollInterval,
		maxPolls:     cfg.MaxPolls,
	}
}

// TemplateID returns the configured brand template
func (c *CanvaClient) TemplateID() string {
	return c.templateID
}

type canvaJob struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Asset *struct {
		ID string `json:"id"`
	} `json:"asset,omitempty"`
	Result *struct {
		Design struct {
			ID string `json:"id"`
		} `json:"design"`
	} `json:"result,omitempty"`
	URLs []string `json:"urls,omitempty"`
}

type canvaJobResponse struct {
	Job canvaJob `json:"job"`
}

// UploadAsset uploads an image and returns its asset ID
func (c *CanvaClient) UploadAsset(ctx context.Context, name string, data []byte) (string, error) {
	meta, err := json.Marshal(map[string]string{"name_base64": base64.StdEncoding.EncodeToString([]byte(name))})
	if err != nil {
		return "", fmt.Errorf("failed to encode asset metadata: %w", err)
	}
	header := map[string]string{
		"Content-Type":          "application/octet-stream",
		"Asset-Upload-Metadata": string(meta),
	}

	body, err := c.do(ctx, "upload asset", http.MethodPost, "/v1/asset-uploads", header, func() (io.Reader, error) {
		return bytes.NewReader(data), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload asset %s: %w", name, err)
	}

	var resp canvaJobResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode asset upload: %w", err)
	}
	job, err := c.await(ctx, "asset upload", "/v1/asset-uploads/", resp.Job)
	if err != nil {
		return "", err
	}
	if job.Asset == nil || job.Asset.ID == "" {
		return "", fmt.Errorf("asset upload %s: %w", job.ID, ErrJobFailed)
	}
	return job.Asset.ID, nil
}

// Autofill creates a design from the brand template with data filled in and
// returns the new design ID
func (c *CanvaClient) Autofill(ctx context.Context, title string, data map[string]AutofillField) (string, error) {
	if c.templateID == "" {
		return "", fmt.Errorf("canva template id: %w", ErrNotConfigured)
	}

	req := map[string]any{
		"brand_template_id": c.templateID,
		"title":             title,
		"data":              data,
	}
	var resp canvaJobResponse
	if err := c.doJSON(ctx, "autofill", http.MethodPost, "/v1/autofills", req, &resp); err != nil {
		return "", fmt.Errorf("failed to start autofill: %w", err)
	}

	job, err := c.await(ctx, "autofill", "/v1/autofills/", resp.Job)
	if err != nil {
		return "", err
	}
	if job.Result == nil || job.Result.Design.ID == "" {
		return "", fmt.Errorf("autofill %s returned no design: %w", job.ID, ErrJobFailed)
	}

	c.logger.Info("Created Canva design from template",
		zap.String("template_id", c.templateID),
		zap.String("design_id", job.Result.Design.ID))
	return job.Result.Design.ID, nil
}

// ExportPDF exports a design and downloads the resulting PDF
func (c *CanvaClient) ExportPDF(ctx context.Context, designID string) ([]byte, error) {
	req := map[string]any{
		"design_id": designID,
		"format":    map[string]string{"type": "pdf"},
	}
	var resp canvaJobResponse
	if err := c.doJSON(ctx, "export", http.MethodPost, "/v1/exports", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to start export: %w", err)
	}

	job, err := c.await(ctx, "export", "/v1/exports/", resp.Job)
	if err != nil {
		return nil, err
	}
	if len(job.URLs) == 0 {
		return nil, fmt.Errorf("export %s returned no urls: %w", job.ID, ErrJobFailed)
	}

	// export URLs are pre-signed, so no bearer token
	pdf, err := retry.DoRequest(ctx, c.httpClient, c.logger, "canva download", c.policy, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, job.URLs[0], nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download export: %w", err)
	}
	return pdf, nil
}

// await polls a job until it succeeds or fails, at most maxPolls times
func (c *CanvaClient) await(ctx context.Context, kind, path string, job canvaJob) (canvaJob, error) {
	for poll := 0; ; poll++ {
		switch job.Status {
		case "success":
			return job, nil
		case "failed":
			msg := "unknown error"
			if job.Error != nil {
				msg = job.Error.Code + ": " + job.Error.Message
			}
			return job, fmt.Errorf("%s %s (%s): %w", kind, job.ID, msg, ErrJobFailed)
		}

		if poll >= c.maxPolls {
			return job, fmt.Errorf("%s %s after %d polls: %w", kind, job.ID, poll, ErrJobTimeout)
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		var resp canvaJobResponse
		if err := c.doJSON(ctx, "poll "+kind, http.MethodGet, path+job.ID, nil, &resp); err != nil {
			return job, fmt.Errorf("failed to poll %s %s: %w", kind, job.ID, err)
		}
		job = resp.Job
	}
}
