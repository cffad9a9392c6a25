// Package filestore provides a filesystem implementation of store.ObjectStore
// on top of afero, for local development and single-node deployments.
package filestore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/phrazzld/scry-avatars/internal/platform/logger"
	"github.com/phrazzld/scry-avatars/internal/store"
	"github.com/spf13/afero"
)

// ObjectStore stores objects as files under a root directory.
type ObjectStore struct {
	fs            afero.Fs
	root          string
	publicBaseURL string
	logger        *slog.Logger
}

var _ store.ObjectStore = (*ObjectStore)(nil)

// NewObjectStore creates the root directory if needed and returns a store
// whose public URLs are publicBaseURL joined with the object path.
func NewObjectStore(fs afero.Fs, root, publicBaseURL string, logger *slog.Logger) (*ObjectStore, error) {
	exists, err := afero.DirExists(fs, root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat storage directory %s: %w", root, err)
	}
	if !exists {
		if err := fs.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", root, err)
		}
	}
	return &ObjectStore{
		fs:            fs,
		root:          root,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger.With(slog.String("component", "file_object_store")),
	}, nil
}

// Upload writes data to path through a temporary file and a rename, so
// readers never observe a partially written avatar.
func (s *ObjectStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := validatePath(path); err != nil {
		return store.NewStoreError("avatar", "upload", "invalid object path", err)
	}
	target := filepath.Join(s.root, path)

	tmp, err := afero.TempFile(s.fs, s.root, ".upload-*")
	if err != nil {
		return s.uploadError(log, path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return s.uploadError(log, path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return s.uploadError(log, path, err)
	}
	if err := s.fs.Rename(tmpName, target); err != nil {
		_ = s.fs.Remove(tmpName)
		return s.uploadError(log, path, err)
	}

	log.Debug("stored object",
		slog.String("path", target),
		slog.String("content_type", contentType),
		slog.Int("bytes", len(data)))
	return nil
}

func (s *ObjectStore) uploadError(log *slog.Logger, path string, err error) error {
	log.Error("failed to store object",
		slog.String("path", path),
		slog.String("error", err.Error()))
	return store.NewStoreError("avatar", "upload", path, fmt.Errorf("%w: %v", store.ErrUploadFailed, err))
}

// PublicURL returns the URL under which Handler serves path.
func (s *ObjectStore) PublicURL(path string) string {
	return s.publicBaseURL + "/" + url.PathEscape(path)
}

// Handler serves stored objects read-only. Mount it under the path of the
// public base URL with the prefix stripped.
func (s *ObjectStore) Handler() http.Handler {
	return http.FileServer(afero.NewHttpFs(s.fs).Dir(s.root))
}

func validatePath(path string) error {
	if path == "" || path == "." || path == ".." {
		return fmt.Errorf("%w: empty or relative path %q", store.ErrInvalidEntity, path)
	}
	if strings.ContainsAny(path, `/\`) || filepath.Base(path) != path {
		return fmt.Errorf("%w: path %q must be a single file name", store.ErrInvalidEntity, path)
	}
	if strings.HasPrefix(path, ".") {
		return fmt.Errorf("%w: hidden path %q", store.ErrInvalidEntity, path)
	}
	return nil
}
