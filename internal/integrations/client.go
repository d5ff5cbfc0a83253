package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"portfolio-slides/slide-service/pkg/retry"
)

// ErrNotConfigured is returned when a client is called without its credentials
var ErrNotConfigured = errors.New("integration not configured")

// apiClient holds what every collaborator client shares: base URL, bearer token,
// HTTP client and retry policy
type apiClient struct {
	name       string
	baseURL    string
	token      string
	headers    map[string]string
	httpClient *http.Client
	policy     retry.Policy
	logger     *zap.Logger
}

func newAPIClient(name, baseURL, token string, timeout time.Duration, logger *zap.Logger) apiClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return apiClient{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		headers:    make(map[string]string),
		httpClient: &http.Client{Timeout: timeout},
		policy:     retry.DefaultPolicy(),
		logger:     logger,
	}
}

// SetRetryPolicy overrides the default retry policy
func (c *apiClient) SetRetryPolicy(p retry.Policy) {
	c.policy = p
}

// do sends a request whose body is rebuilt for every attempt and returns the response body.
// header carries per-request values such as Content-Type.
func (c *apiClient) do(ctx context.Context, op, method, path string, header map[string]string, body func() (io.Reader, error)) ([]byte, error) {
	if c.token == "" {
		return nil, fmt.Errorf("%s %s: %w", c.name, op, ErrNotConfigured)
	}

	endpoint := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		endpoint = c.baseURL + path
	}

	return retry.DoRequest(ctx, c.httpClient, c.logger, c.name+" "+op, c.policy, func(ctx context.Context) (*http.Request, error) {
		var r io.Reader
		if body != nil {
			var err error
			if r, err = body(); err != nil {
				return nil, err
			}
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, r)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}
		for k, v := range header {
			req.Header.Set(k, v)
		}
		return req, nil
	})
}

// doJSON marshals in (when non-nil) and decodes the response into out (when non-nil)
func (c *apiClient) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var (
		payload []byte
		header  map[string]string
	)
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		header = map[string]string{"Content-Type": "application/json"}
	}

	resp, err := c.do(ctx, op, method, path, header, func() (io.Reader, error) {
		if payload == nil {
			return nil, nil
		}
		return bytes.NewReader(payload), nil
	})
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}
