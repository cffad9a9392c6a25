// Package gcs provides a Google Cloud Storage implementation of
// store.ObjectStore.
package gcs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/phrazzld/scry-avatars/internal/platform/logger"
	"github.com/phrazzld/scry-avatars/internal/store"
	"google.golang.org/api/option"
)

// DefaultPublicBaseURL is the public host for objects in world-readable buckets.
const DefaultPublicBaseURL = "https://storage.googleapis.com"

// Config configures the GCS object store.
type Config struct {
	Bucket string
	// PublicBaseURL overrides the URL prefix returned by PublicURL, for
	// example a CDN in front of the bucket.
	PublicBaseURL string
	CacheControl  string
}

// writerFunc opens a writer for one object.
type writerFunc func(ctx context.Context, path, contentType string) io.WriteCloser

// ObjectStore implements store.ObjectStore on a GCS bucket.
type ObjectStore struct {
	config    Config
	newWriter writerFunc
	logger    *slog.Logger
}

var _ store.ObjectStore = (*ObjectStore)(nil)

// NewClient creates a storage client. A non-empty endpoint points the client
// at an emulator and disables authentication.
func NewClient(ctx context.Context, endpoint string) (*storage.Client, error) {
	var opts []option.ClientOption
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

// NewObjectStore creates an ObjectStore writing to config.Bucket.
func NewObjectStore(client *storage.Client, config Config, logger *slog.Logger) *ObjectStore {
	s := &ObjectStore{
		config: config,
		logger: logger.With(slog.String("component", "gcs_object_store")),
	}
	s.newWriter = func(ctx context.Context, path, contentType string) io.WriteCloser {
		w := client.Bucket(config.Bucket).Object(path).NewWriter(ctx)
		w.ContentType = contentType
		w.CacheControl = config.CacheControl
		return w
	}
	return s
}

// Upload writes data to the object at path, replacing any existing object.
func (s *ObjectStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	w := s.newWriter(ctx, path, contentType)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return s.uploadError(log, path, err)
	}
	// The object is only committed once Close succeeds.
	if err := w.Close(); err != nil {
		return s.uploadError(log, path, err)
	}

	log.Debug("uploaded object",
		slog.String("bucket", s.config.Bucket),
		slog.String("path", path),
		slog.Int("bytes", len(data)))
	return nil
}

func (s *ObjectStore) uploadError(log *slog.Logger, path string, err error) error {
	log.Error("failed to upload object",
		slog.String("bucket", s.config.Bucket),
		slog.String("path", path),
		slog.String("error", err.Error()))
	return store.NewStoreError("avatar", "upload",
		fmt.Sprintf("gs://%s/%s", s.config.Bucket, path),
		fmt.Errorf("%w: %v", store.ErrUploadFailed, err))
}

// PublicURL returns the public URL of the object at path.
func (s *ObjectStore) PublicURL(path string) string {
	escaped := url.PathEscape(path)
	if s.config.PublicBaseURL != "" {
		return strings.TrimRight(s.config.PublicBaseURL, "/") + "/" + escaped
	}
	return DefaultPublicBaseURL + "/" + s.config.Bucket + "/" + escaped
}
