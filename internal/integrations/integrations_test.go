package integrations

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio-slides/slide-service/pkg/retry"
)

var fastRetry = retry.Policy{Attempts: 3, Backoff: time.Millisecond}

func decodeJSON(t *testing.T, r *http.Request) map[string]any {
	var body map[string]any
	assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestNotionCreateCompanyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/pages", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, NotionVersion, r.Header.Get("Notion-Version"))

		body := decodeJSON(t, r)
		parent, _ := body["parent"].(map[string]any)
		assert.Equal(t, "db-1", parent["database_id"])
		props, _ := body["properties"].(map[string]any)
		assert.Contains(t, props, "Name")
		assert.Contains(t, props, "Co-Investors")
		assert.NotContains(t, props, "Website")

		json.NewEncoder(w).Encode(map[string]string{"id": "page-1"})
	}))
	defer server.Close()

	client := NewNotionClient(NotionConfig{APIKey: "secret", DatabaseID: "db-1", BaseURL: server.URL}, zap.NewNop())
	id, err := client.CreateCompanyPage(context.Background(), CompanyPage{Name: "Acme", CoInvestors: []string{"Fund A"}})

	require.NoError(t, err)
	assert.Equal(t, "page-1", id)
}

func TestNotionPropertiesOptionalFields(t *testing.T) {
	employees := 12
	founder := true
	props := CompanyPage{Name: "Acme", NumberOfEmployees: &employees, FirstTimeFounder: &founder, Website: "https://acme.test"}.Properties()

	assert.Equal(t, map[string]any{"number": 12}, props["Number of Employees"])
	assert.Equal(t, map[string]any{"checkbox": true}, props["First Time Founder"])
	assert.Equal(t, map[string]any{"url": "https://acme.test"}, props["Website"])
	assert.NotContains(t, props, "Birthday")
}

func TestNotionFindCompanyByName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/databases/db-1/query", r.URL.Path)
		body := decodeJSON(t, r)
		filter, _ := body["filter"].(map[string]any)
		title, _ := filter["title"].(map[string]any)

		results := []map[string]string{}
		if title["equals"] == "Acme" {
			results = append(results, map[string]string{"id": "page-7"})
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	defer server.Close()

	client := NewNotionClient(NotionConfig{APIKey: "secret", DatabaseID: "db-1", BaseURL: server.URL}, zap.NewNop())

	id, err := client.FindCompanyByName(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, "page-7", id)

	_, err = client.FindCompanyByName(context.Background(), "Globex")
	assert.True(t, errors.Is(err, ErrCompanyNotFound))
}

func TestNotionUpdateCompanyRecord(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/pages/page-1", r.URL.Path)
		props, _ := decodeJSON(t, r)["properties"].(map[string]any)
		assert.Contains(t, props, "Google Drive Link")
		assert.Contains(t, props, "Status")
		assert.NotContains(t, props, "DocSend Link")
		w.Write([]byte(`{"id":"page-1"}`))
	}))
	defer server.Close()

	client := NewNotionClient(NotionConfig{APIKey: "secret", BaseURL: server.URL}, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, client.UpdateCompanyRecord(ctx, "page-1", "https://drive/x", "", "Completed"))
	require.NoError(t, client.UpdateCompanyRecord(ctx, "page-1", "", "", ""))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNotionCreateCompanyFolderAddsSections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeJSON(t, r)
		children, _ := body["children"].([]any)
		assert.Len(t, children, 3)
		w.Write([]byte(`{"id":"folder-1"}`))
	}))
	defer server.Close()

	client := NewNotionClient(NotionConfig{APIKey: "secret", DatabaseID: "db-1", BaseURL: server.URL}, zap.NewNop())
	id, err := client.CreateCompanyFolder(context.Background(), "Acme")

	require.NoError(t, err)
	assert.Equal(t, "folder-1", id)
}

func TestNotionAppendNote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/blocks/page-1/children", r.URL.Path)
		children, _ := decodeJSON(t, r)["children"].([]any)
		assert.Len(t, children, 2)
		w.Write([]byte(`{"results":[{"id":"block-1"}]}`))
	}))
	defer server.Close()

	client := NewNotionClient(NotionConfig{APIKey: "secret", BaseURL: server.URL}, zap.NewNop())
	assert.NoError(t, client.AppendNote(context.Background(), "page-1", "Intro call", "Discussed the seed round"))
}

func TestNotionWithoutKey(t *testing.T) {
	client := NewNotionClient(NotionConfig{DatabaseID: "db-1"}, zap.NewNop())
	_, err := client.CreateCompanyPage(context.Background(), CompanyPage{Name: "Acme"})
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestDocSendUploadRetriesTransientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "/documents", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Acme Portfolio Slide", r.FormValue("name"))
		f, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(f)
			assert.Equal(t, "%PDF-1.3", string(data))
			assert.Equal(t, "Acme Portfolio Slide.pdf", header.Filename)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"doc-1","link":"https://docsend.com/view/abc"}`))
	}))
	defer server.Close()

	client := NewDocSendClient(DocSendConfig{APIKey: "secret", BaseURL: server.URL}, zap.NewNop())
	client.SetRetryPolicy(fastRetry)

	doc, err := client.UploadDocument(context.Background(), "Acme Portfolio Slide", []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, "https://docsend.com/view/abc", doc.Link)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDocSendDetectsLoginPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("<!DOCTYPE html><html><body>Sign in</body></html>"))
	}))
	defer server.Close()

	client := NewDocSendClient(DocSendConfig{APIKey: "bad", BaseURL: server.URL}, zap.NewNop())
	client.SetRetryPolicy(fastRetry)

	_, err := client.UpdateDocument(context.Background(), "master", []byte("%PDF"))
	assert.True(t, errors.Is(err, ErrDocSendAuth))
}

func TestDocSendDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad file"}`))
	}))
	defer server.Close()

	client := NewDocSendClient(DocSendConfig{APIKey: "secret", BaseURL: server.URL}, zap.NewNop())
	client.SetRetryPolicy(fastRetry)

	_, err := client.UploadDocument(context.Background(), "Acme", []byte("%PDF"))
	var statusErr *retry.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func newCanvaServer(t *testing.T, exportPolls *int32) *httptest.Server {
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/v1/asset-uploads", func(w http.ResponseWriter, r *http.Request) {
		var meta map[string]string
		assert.NoError(t, json.Unmarshal([]byte(r.Header.Get("Asset-Upload-Metadata")), &meta))
		name, _ := base64.StdEncoding.DecodeString(meta["name_base64"])
		assert.Equal(t, "logo.png", string(name))
		w.Write([]byte(`{"job":{"id":"up-1","status":"in_progress"}}`))
	})
	mux.HandleFunc("/v1/asset-uploads/up-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"job":{"id":"up-1","status":"success","asset":{"id":"asset-1"}}}`))
	})
	mux.HandleFunc("/v1/autofills", func(w http.ResponseWriter, r *http.Request) {
		body := decodeJSON(t, r)
		assert.Equal(t, "tmpl-1", body["brand_template_id"])
		data, _ := body["data"].(map[string]any)
		logo, _ := data["logo"].(map[string]any)
		assert.Equal(t, "asset-1", logo["asset_id"])
		w.Write([]byte(`{"job":{"id":"af-1","status":"success","result":{"type":"create_design","design":{"id":"design-1"}}}}`))
	})
	mux.HandleFunc("/v1/exports", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"job":{"id":"ex-1","status":"in_progress"}}`))
	})
	mux.HandleFunc("/v1/exports/ex-1", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(exportPolls, 1) < 3 {
			w.Write([]byte(`{"job":{"id":"ex-1","status":"in_progress"}}`))
			return
		}
		w.Write([]byte(`{"job":{"id":"ex-1","status":"success","urls":["` + server.URL + `/download/ex-1.pdf"]}}`))
	})
	mux.HandleFunc("/download/ex-1.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.7 canva"))
	})

	server = httptest.NewServer(mux)
	return server
}

func TestCanvaAutofillAndExport(t *testing.T) {
	var polls int32
	server := newCanvaServer(t, &polls)
	defer server.Close()

	client := NewCanvaClient(CanvaConfig{
		APIKey:       "secret",
		TemplateID:   "tmpl-1",
		BaseURL:      server.URL,
		PollInterval: time.Millisecond,
	}, zap.NewNop())
	ctx := context.Background()

	assetID, err := client.UploadAsset(ctx, "logo.png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "asset-1", assetID)

	designID, err := client.Autofill(ctx, "Acme", map[string]AutofillField{
		"company_name": TextField("ACME"),
		"logo":         ImageField(assetID),
	})
	require.NoError(t, err)
	assert.Equal(t, "design-1", designID)

	pdf, err := client.ExportPDF(ctx, designID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 canva", string(pdf))
	assert.Equal(t, int32(3), atomic.LoadInt32(&polls))
}

func TestCanvaExportGivesUpAfterMaxPolls(t *testing.T) {
	var polls int32
	server := newCanvaServer(t, &polls)
	defer server.Close()

	client := NewCanvaClient(CanvaConfig{
		APIKey:       "secret",
		TemplateID:   "tmpl-1",
		BaseURL:      server.URL,
		PollInterval: time.Millisecond,
		MaxPolls:     2,
	}, zap.NewNop())

	_, err := client.ExportPDF(context.Background(), "design-1")
	assert.True(t, errors.Is(err, ErrJobTimeout))
	assert.Equal(t, int32(2), atomic.LoadInt32(&polls))
}

func TestCanvaFailedJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"job":{"id":"af-9","status":"failed","error":{"code":"autofill_error","message":"missing field"}}}`))
	}))
	defer server.Close()

	client := NewCanvaClient(CanvaConfig{APIKey: "secret", TemplateID: "tmpl-1", BaseURL: server.URL}, zap.NewNop())
	_, err := client.Autofill(context.Background(), "Acme", nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrJobFailed))
	assert.Contains(t, err.Error(), "missing field")
}
