package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	f, err := store.Upload(ctx, "Acme.pdf", []byte("v1"))
	require.NoError(t, err)
	assert.Equal(t, "Acme.pdf", f.Name)

	_, err = store.Overwrite(ctx, f.ID, []byte("v2"))
	require.NoError(t, err)

	data, err := store.Download(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
	assert.Equal(t, 1, store.Len())

	_, err = store.Download(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = store.Overwrite(ctx, "missing", nil)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, store.Delete(ctx, f.ID))
	assert.Equal(t, 0, store.Len())
	assert.True(t, errors.Is(store.Delete(ctx, f.ID), ErrNotFound))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("deck.pdf"))
	assert.Equal(t, "image/png", ContentType("slide.png"))
	assert.Equal(t, "application/octet-stream", ContentType("manifest"))
}

// fakeS3 is a path-style object store good enough for PutObject, GetObject and DeleteObject
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = data
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Write(data)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3StoreUploadAndDownload(t *testing.T) {
	fake := &fakeS3{objects: make(map[string][]byte)}
	server := httptest.NewServer(fake)
	defer server.Close()

	awsCfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("key", "secret", ""),
		HTTPClient:  server.Client(),
	}
	store := NewS3StoreFromConfig(awsCfg, S3Config{Bucket: "slides", Prefix: "portfolio", Endpoint: server.URL}, zap.NewNop())
	ctx := context.Background()

	f, err := store.Upload(ctx, "Acme.pdf", []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, "portfolio/Acme.pdf", f.ID)
	assert.Contains(t, f.Link, "X-Amz-Signature")
	assert.Contains(t, fake.objects, "/slides/portfolio/Acme.pdf")

	_, err = store.Overwrite(ctx, f.ID, []byte("%PDF-1.4"))
	require.NoError(t, err)

	data, err := store.Download(ctx, f.ID)
	require.NoError(t, err)
	assert.Contains(t, string(data), "%PDF-1.4")

	_, err = store.Download(ctx, "portfolio/none.pdf")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, store.Delete(ctx, f.ID))
	assert.NotContains(t, fake.objects, "/slides/portfolio/Acme.pdf")
}

func TestDriveStoreUploadSharesFile(t *testing.T) {
	var (
		mu          sync.Mutex
		shared      []string
		content     = map[string]string{}
		uploadCalls int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasSuffix(r.URL.Path, "/permissions"):
			shared = append(shared, r.URL.Path)
			json.NewEncoder(w).Encode(map[string]string{"id": "anyoneWithLink"})
		case r.Method == http.MethodGet && r.URL.Query().Get("alt") == "media":
			w.Header().Set("Content-Type", "application/pdf")
			io.WriteString(w, content["file-1"])
		default:
			uploadCalls++
			body, _ := io.ReadAll(r.Body)
			content["file-1"] = string(body)
			json.NewEncoder(w).Encode(map[string]string{
				"id":          "file-1",
				"name":        "Acme.pdf",
				"webViewLink": "https://drive.google.com/file/d/file-1/view",
			})
		}
	}))
	defer server.Close()

	ctx := context.Background()
	store, err := NewDriveStore(ctx, DriveConfig{FolderID: "folder", ShareWithLink: true}, zap.NewNop(),
		option.WithEndpoint(server.URL+"/drive/v3/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(server.Client()))
	require.NoError(t, err)

	f, err := store.Upload(ctx, "Acme.pdf", []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, "file-1", f.ID)
	assert.Equal(t, "https://drive.google.com/file/d/file-1/view", f.Link)
	assert.Len(t, shared, 1)

	_, err = store.Overwrite(ctx, f.ID, []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, 2, uploadCalls)

	data, err := store.Download(ctx, f.ID)
	require.NoError(t, err)
	assert.Contains(t, string(data), "%PDF-1.4")
}
