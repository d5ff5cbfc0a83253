package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"portfolio-slides/slide-service/pkg/retry"
)

// ErrDocSendAuth is returned when DocSend answers with its HTML login page
var ErrDocSendAuth = errors.New("docsend authentication failed, check the API key")

// DocSendConfig configures the deck-sharing client
type DocSendConfig struct {
	APIKey       string        `json:"api_key"`
	MasterDeckID string        `json:"master_deck_id"`
	BaseURL      string        `json:"base_url"`
	Timeout      time.Duration `json:"timeout"`
}

// DocSendClient uploads slides as shareable documents.
// Contract: POST {base}/documents (multipart file, name) answers 201 {"id","link"};
// PUT {base}/documents/{id} (multipart file) answers 200 or 201 {"id","link"}.
type DocSendClient struct {
	apiClient
	masterDeckID string
}

// Document is an uploaded DocSend document
type Document struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}

// NewDocSendClient creates a DocSend client
func NewDocSendClient(cfg DocSendConfig, logger *zap.Logger) *DocSendClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.docsend.com"
	}
	return &DocSendClient{
		apiClient:    newAPIClient("docsend", cfg.BaseURL, cfg.APIKey, cfg.Timeout, logger),
		masterDeckID: cfg.MasterDeckID,
	}
}

// MasterDeckID returns the configured master deck document
func (c *DocSendClient) MasterDeckID() string {
	return c.masterDeckID
}

// UploadDocument uploads a PDF as a new document named name
func (c *DocSendClient) UploadDocument(ctx context.Context, name string, pdf []byte) (Document, error) {
	doc, err := c.send(ctx, "upload", http.MethodPost, "/documents", name+".pdf", name, pdf)
	if err != nil {
		return Document{}, fmt.Errorf("failed to upload %s to docsend: %w", name, err)
	}
	c.logger.Info("Uploaded slide to DocSend",
		zap.String("name", name),
		zap.String("link", doc.Link))
	return doc, nil
}

// UpdateDocument replaces the content of an existing document, keeping its link
func (c *DocSendClient) UpdateDocument(ctx context.Context, id string, pdf []byte) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("docsend document id: %w", ErrNotConfigured)
	}
	doc, err := c.send(ctx, "update", http.MethodPut, "/documents/"+id, "portfolio_master.pdf", "", pdf)
	if err != nil {
		return Document{}, fmt.Errorf("failed to update docsend document %s: %w", id, err)
	}
	return doc, nil
}

func (c *DocSendClient) send(ctx context.Context, op, method, path, filename, name string, pdf []byte) (Document, error) {
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Document{}, fmt.Errorf("failed to build form: %w", err)
	}
	if _, err := part.Write(pdf); err != nil {
		return Document{}, fmt.Errorf("failed to build form: %w", err)
	}
	if name != "" {
		if err := mw.WriteField("name", name); err != nil {
			return Document{}, fmt.Errorf("failed to build form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return Document{}, fmt.Errorf("failed to build form: %w", err)
	}
	payload := form.Bytes()
	header := map[string]string{"Content-Type": mw.FormDataContentType()}

	body, err := c.do(ctx, op, method, path, header, func() (io.Reader, error) {
		return bytes.NewReader(payload), nil
	})
	if err != nil {
		var statusErr *retry.StatusError
		if errors.As(err, &statusErr) && looksLikeHTML(statusErr.Body) {
			return Document{}, ErrDocSendAuth
		}
		return Document{}, err
	}
	if looksLikeHTML(string(body)) {
		return Document{}, ErrDocSendAuth
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to decode docsend response: %w", err)
	}
	return doc, nil
}

func looksLikeHTML(body string) bool {
	s := strings.ToLower(strings.TrimSpace(body))
	return strings.HasPrefix(s, "<!doctype html") || strings.HasPrefix(s, "<html")
}
