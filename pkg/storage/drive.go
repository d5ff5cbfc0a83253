package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DriveConfig configures the Google Drive backend
type DriveConfig struct {
	FolderID        string `json:"folder_id"`
	CredentialsJSON string `json:"credentials_json"`
	// ShareWithLink grants anyone-with-the-link read access after upload
	ShareWithLink bool `json:"share_with_link"`
}

// DriveStore keeps files in a Drive folder
type DriveStore struct {
	service *drive.Service
	cfg     DriveConfig
	logger  *zap.Logger
}

// NewDriveStore authenticates with a service account key. Extra client options
// are appended after the credentials.
func NewDriveStore(ctx context.Context, cfg DriveConfig, logger *zap.Logger, opts ...option.ClientOption) (*DriveStore, error) {
	if cfg.CredentialsJSON != "" {
		opts = append([]option.ClientOption{option.WithCredentialsJSON([]byte(cfg.CredentialsJSON))}, opts...)
	}

	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &DriveStore{
		service: service,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Upload creates a file in the configured folder and returns its web view link
func (s *DriveStore) Upload(ctx context.Context, name string, data []byte) (File, error) {
	meta := &drive.File{Name: name}
	if s.cfg.FolderID != "" {
		meta.Parents = []string{s.cfg.FolderID}
	}

	created, err := s.service.Files.Create(meta).
		Media(bytes.NewReader(data), googleapi.ContentType(ContentType(name))).
		Fields("id, name, webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return File{}, fmt.Errorf("failed to upload %s to drive: %w", name, err)
	}

	if s.cfg.ShareWithLink {
		if err := s.share(ctx, created.Id); err != nil {
			return File{}, err
		}
	}

	s.logger.Info("Uploaded file to Google Drive",
		zap.String("file_id", created.Id),
		zap.String("name", name))
	return File{ID: created.Id, Name: created.Name, Link: created.WebViewLink}, nil
}

// Overwrite uploads new content for an existing file, keeping its ID and link
func (s *DriveStore) Overwrite(ctx context.Context, id string, data []byte) (File, error) {
	updated, err := s.service.Files.Update(id, &drive.File{}).
		Media(bytes.NewReader(data)).
		Fields("id, name, webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		if isNotFound(err) {
			return File{}, fmt.Errorf("failed to overwrite %s: %w", id, ErrNotFound)
		}
		return File{}, fmt.Errorf("failed to overwrite %s: %w", id, err)
	}
	return File{ID: updated.Id, Name: updated.Name, Link: updated.WebViewLink}, nil
}

func (s *DriveStore) Download(ctx context.Context, id string) ([]byte, error) {
	resp, err := s.service.Files.Get(id).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("failed to download %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download %s: %w", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}
	return data, nil
}

func (s *DriveStore) Delete(ctx context.Context, id string) error {
	err := s.service.Files.Delete(id).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("failed to delete %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	return nil
}

func (s *DriveStore) share(ctx context.Context, id string) error {
	_, err := s.service.Permissions.Create(id, &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to share %s: %w", id, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
