package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"VideoPipeline-server/apperr"
	"VideoPipeline-server/config"
	"VideoPipeline-server/logging"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BlobStore is the object storage collaborator.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	PutFile(ctx context.Context, key, localPath, contentType string) (string, error)
}

// ObjectKey builds projects/{projectId}/{category}/{filename}.
func ObjectKey(projectID, category, filename string) string {
	return path.Join("projects", projectID, category, filename)
}

// ContentTypeFor guesses a content type from the key's extension.
func ContentTypeFor(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".fcpxml", ".xml":
		return "application/xml"
	case ".edl", ".txt":
		return "text/plain; charset=utf-8"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}

// NewBlobStore builds the configured backend.
func NewBlobStore(cfg *config.Config, logger logging.Logger) (BlobStore, error) {
	switch cfg.Storage.Backend {
	case "filesystem":
		return NewFileStore(cfg.Storage.BasePath, cfg.Storage.BaseURL)
	default:
		return NewMinIOStore(cfg, logger)
	}
}

// MinIOStore uploads to a bucket and hands out presigned GET URLs.
type MinIOStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	logger logging.Logger

	mu           sync.Mutex
	bucketExists bool
}

func NewMinIOStore(cfg *config.Config, logger logging.Logger) (*MinIOStore, error) {
	m := cfg.MinIO
	client, err := minio.New(m.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(m.AccessKey, m.SecretKey, ""),
		Secure: m.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio init: %w", err)
	}
	return &MinIOStore{
		client: client,
		bucket: m.Bucket,
		expiry: time.Duration(m.ExpiryHour) * time.Hour,
		logger: logger.With().Str("component", "blob").Logger(),
	}, nil
}

func (s *MinIOStore) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bucketExists {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		s.logger.Info().Str("bucket", s.bucket).Msg("bucket created")
	}
	s.bucketExists = true
	return nil
}

func (s *MinIOStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", apperr.Wrap(apperr.ErrUpload, "blob", "put", key, err)
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", apperr.Wrap(apperr.ErrUpload, "blob", "put", key, err)
	}
	return s.presign(ctx, key)
}

func (s *MinIOStore) PutFile(ctx context.Context, key, localPath, contentType string) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", apperr.Wrap(apperr.ErrUpload, "blob", "put file", key, err)
	}
	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", apperr.Wrap(apperr.ErrUpload, "blob", "put file", key, err)
	}
	return s.presign(ctx, key)
}

func (s *MinIOStore) presign(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, url.Values{})
	if err != nil {
		return "", apperr.Wrap(apperr.ErrUpload, "blob", "presign", key, err)
	}
	s.logger.Debug().Str("key", key).Msg("object uploaded")
	return u.String(), nil
}

// FileStore keeps objects on the local filesystem for development and tests.
type FileStore struct {
	basePath string
	baseURL  string
}

func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: abs, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FileStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, cleanKey, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", apperr.Wrap(apperr.ErrUpload, "blob", "write", key, err)
	}
	return s.urlFor(cleanKey, full), nil
}

func (s *FileStore) PutFile(ctx context.Context, key, localPath, contentType string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrUpload, "blob", "read source", localPath, err)
	}
	return s.Put(ctx, key, data, contentType)
}

func (s *FileStore) resolve(key string) (string, string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", "", apperr.Wrap(apperr.ErrUpload, "blob", "key", key, err)
	}
	full := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", "", apperr.Wrap(apperr.ErrUpload, "blob", "mkdir", key, err)
	}
	return full, cleanKey, nil
}

func (s *FileStore) urlFor(cleanKey, full string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + cleanKey
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(full)}).String()
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimLeft(strings.TrimPrefix(key, "./"), "/")
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("invalid key")
	}
	return cleaned, nil
}
