package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3Config configures the S3 backend
type S3Config struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	Endpoint  string `json:"endpoint"` // S3-compatible endpoints (MinIO, LocalStack)
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	// LinkExpiry is the lifetime of presigned links; SigV4 caps it at 7 days
	LinkExpiry time.Duration `json:"link_expiry"`
}

// S3Store keeps files as objects under Prefix and shares them by presigned URL
type S3Store struct {
	client    *s3.Client
	uploader  *manager.Uploader
	presigner *s3.PresignClient
	cfg       S3Config
	logger    *zap.Logger
}

// NewS3Store loads the default AWS credential chain, with static keys taking
// precedence when configured
func NewS3Store(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3StoreFromConfig(awsCfg, cfg, logger), nil
}

// NewS3StoreFromConfig builds the store from an existing AWS config
func NewS3StoreFromConfig(awsCfg aws.Config, cfg S3Config, logger *zap.Logger) *S3Store {
	if cfg.LinkExpiry <= 0 || cfg.LinkExpiry > 7*24*time.Hour {
		cfg.LinkExpiry = 7 * 24 * time.Hour
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{
		client:    client,
		uploader:  manager.NewUploader(client),
		presigner: s3.NewPresignClient(client),
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *S3Store) key(name string) string {
	if s.cfg.Prefix == "" {
		return name
	}
	return path.Join(strings.Trim(s.cfg.Prefix, "/"), name)
}

// Upload stores data under the prefixed name; the object key is the file ID
func (s *S3Store) Upload(ctx context.Context, name string, data []byte) (File, error) {
	key := s.key(name)
	if err := s.put(ctx, key, data); err != nil {
		return File{}, err
	}

	link, err := s.presign(ctx, key)
	if err != nil {
		return File{}, err
	}

	s.logger.Info("Uploaded file to S3",
		zap.String("bucket", s.cfg.Bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)))
	return File{ID: key, Name: path.Base(key), Link: link}, nil
}

// Overwrite replaces the object at id
func (s *S3Store) Overwrite(ctx context.Context, id string, data []byte) (File, error) {
	if err := s.put(ctx, id, data); err != nil {
		return File{}, err
	}
	link, err := s.presign(ctx, id)
	if err != nil {
		return File{}, err
	}
	return File{ID: id, Name: path.Base(id), Link: link}, nil
}

func (s *S3Store) Download(ctx context.Context, id string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("failed to download %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download %s: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}
	return data, nil
}

// Delete removes the object at id; S3 does not report missing keys
func (s *S3Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	return nil
}

func (s *S3Store) put(ctx context.Context, key string, data []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentType(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) presign(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.LinkExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}
