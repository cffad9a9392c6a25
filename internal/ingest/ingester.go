// Package ingest runs the avatar ingestion pipeline for a single task attempt:
// source validation, fetch, image validation, optimization, upload and the
// profile update.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/scry-avatars/internal/domain"
	"github.com/phrazzld/scry-avatars/internal/fetch"
	"github.com/phrazzld/scry-avatars/internal/imagepipe"
	"github.com/phrazzld/scry-avatars/internal/platform/logger"
	"github.com/phrazzld/scry-avatars/internal/redact"
	"github.com/phrazzld/scry-avatars/internal/store"
	"github.com/phrazzld/scry-avatars/internal/task"
)

// SourceValidator allow-lists and normalizes a source URL.
type SourceValidator interface {
	Validate(raw string) (*url.URL, error)
}

// Fetcher downloads a source image.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) (*fetch.Response, error)
}

// Optimizer resizes and re-encodes image bytes.
type Optimizer interface {
	Optimize(ctx context.Context, data []byte, opts imagepipe.Options) (*imagepipe.Result, error)
}

// Config holds the image limits and output options used for every task.
type Config struct {
	Limits  imagepipe.Limits
	Options imagepipe.Options
}

// DefaultConfig returns the standard limits and 128x128 WebP output.
func DefaultConfig() Config {
	return Config{
		Limits:  imagepipe.DefaultLimits(),
		Options: imagepipe.DefaultOptions(),
	}
}

// Ingester implements task.Processor.
type Ingester struct {
	validator SourceValidator
	fetcher   Fetcher
	optimizer Optimizer
	objects   store.ObjectStore
	profiles  store.ProfileStore
	config    Config
	now       func() time.Time
	logger    *slog.Logger
}

var _ task.Processor = (*Ingester)(nil)

// NewIngester creates an Ingester.
func NewIngester(
	validator SourceValidator,
	fetcher Fetcher,
	optimizer Optimizer,
	objects store.ObjectStore,
	profiles store.ProfileStore,
	config Config,
	logger *slog.Logger,
) *Ingester {
	return &Ingester{
		validator: validator,
		fetcher:   fetcher,
		optimizer: optimizer,
		objects:   objects,
		profiles:  profiles,
		config:    config,
		now:       time.Now,
		logger:    logger.With("component", "ingester"),
	}
}

// Process runs one attempt for t. Every failure is a domain.IngestError
// identifying the step that failed.
func (i *Ingester) Process(ctx context.Context, t task.AvatarTask) error {
	log := logger.FromContextOrDefault(ctx, i.logger)

	source, err := i.validator.Validate(t.SourceURL)
	if err != nil {
		return asIngestError(domain.KindInvalidSource, "source rejected", err)
	}

	resp, err := i.fetcher.Fetch(ctx, source)
	if err != nil {
		return asIngestError(domain.KindFetchHTTPError, "fetch failed", err)
	}

	meta, err := i.config.Limits.Validate(resp.Body)
	if err != nil {
		return asIngestError(domain.KindInvalidImage, "image rejected", err)
	}
	log.Debug("source image validated",
		slog.String("format", string(meta.Format)),
		slog.Int("width", meta.Width),
		slog.Int("height", meta.Height),
		slog.Bool("has_alpha", meta.HasAlpha),
		slog.Bool("is_animated", meta.IsAnimated))

	result, err := i.optimizer.Optimize(ctx, resp.Body, i.config.Options)
	if err != nil {
		return asIngestError(domain.KindOptimizationError, "optimization failed", err)
	}

	path, err := ObjectPath(t.UserID, result.Format)
	if err != nil {
		return domain.NewIngestError(domain.KindStorageError, "invalid object path", err)
	}
	if err := i.objects.Upload(ctx, path, result.Bytes, result.ContentType()); err != nil {
		return asIngestError(domain.KindStorageError, "upload failed", err)
	}

	updatedAt := i.now().UTC()
	profile, err := domain.NewAvatarProfile(t.UserID, cacheBusted(i.objects.PublicURL(path), updatedAt), updatedAt)
	if err != nil {
		return domain.NewIngestError(domain.KindProfileUpdateError, "invalid profile", err)
	}
	if err := i.profiles.UpsertProfile(ctx, profile); err != nil {
		return asIngestError(domain.KindProfileUpdateError, "profile update failed", err)
	}

	log.Info("avatar ingested",
		slog.String("source", redact.URL(source.String())),
		slog.String("path", path),
		slog.Int("original_size", result.OriginalSize),
		slog.Int("size", result.Size),
		slog.Int("quality", result.Quality),
		slog.Float64("compression_ratio", result.CompressionRatio))

	return nil
}

// ObjectPath returns the storage path "{userID}.{ext}" for format.
func ObjectPath(userID string, format imagepipe.Format) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", domain.ErrEmptyUserID
	}
	return fmt.Sprintf("%s.%s", url.PathEscape(userID), format.Extension()), nil
}

// cacheBusted appends a version parameter so clients refetch an overwritten
// object.
func cacheBusted(publicURL string, at time.Time) string {
	u, err := url.Parse(publicURL)
	if err != nil {
		return publicURL
	}
	q := u.Query()
	q.Set("v", strconv.FormatInt(at.Unix(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// asIngestError returns err unchanged if it already carries a kind, otherwise
// wraps it with the kind of the failing step.
func asIngestError(kind domain.ErrorKind, message string, err error) error {
	var ie *domain.IngestError
	if errors.As(err, &ie) {
		return err
	}
	return domain.NewIngestError(kind, message, err)
}
